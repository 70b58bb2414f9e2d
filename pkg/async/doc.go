// Package async runs functions in goroutines and waits for them with
// deadlines.
//
// Call is the main entry point: it bounds an outbound request, such as a
// payment provider API call, by a timeout. The function receives a context
// that is cancelled at the deadline, and Call returns ErrTimeout at the
// deadline even when the function does not honour cancellation.
//
//	sub, err := async.Call(ctx, 10*time.Second, func(ctx context.Context) (*Result, error) {
//	    return client.Update(ctx, req)
//	})
//	if errors.Is(err, async.ErrTimeout) {
//	    // safe to retry
//	}
package async
