// Package config loads environment-driven configuration structs.
//
// Structs declare their variables with caarlos0/env tags. Load reads a .env
// file once per process (missing files are fine), parses the environment into
// the struct and, when the struct implements Validator, runs its Validate
// method so that invalid combinations fail at startup:
//
//	var cfg billing.Config
//	config.MustLoad(&cfg)
package config
