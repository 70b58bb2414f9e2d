package handler

import "net/http"

type errorResponse struct {
	err error
}

func (e errorResponse) Render(http.ResponseWriter, *http.Request) error {
	return e.err
}

// Error returns a Response that writes nothing and hands err to the
// route's ErrorHandler.
func Error(err error) Response {
	return errorResponse{err: err}
}
