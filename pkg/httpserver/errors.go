package httpserver

import "errors"

var (
	ErrStart          = errors.New("http server failed to start")
	ErrAlreadyRunning = errors.New("http server is already running")
	ErrShutdown       = errors.New("http server did not shut down gracefully")
)
