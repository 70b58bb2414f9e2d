// Package redis connects to Redis with retries and exposes a health check.
//
// Redis is optional for the billing service: it backs the abuse guard's
// velocity window when several instances share traffic. With an empty
// REDIS_URL the service runs with in-process stores.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	check := redis.Healthcheck(client)
package redis
