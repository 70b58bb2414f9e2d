package handler

import "net/http"

type statusOnly int

func (s statusOnly) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(int(s))
	return nil
}

// Empty answers 204 with no body.
func Empty() Response { return statusOnly(http.StatusNoContent) }

// EmptyWithStatus answers status with no body, e.g. 202 for a change the
// provider applies later.
func EmptyWithStatus(status int) Response { return statusOnly(status) }
