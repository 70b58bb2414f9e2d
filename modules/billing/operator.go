package billing

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/dmitrymomot/billingcore/handler"
)

// OperatorHeader names the operator recorded in the audit trail.
const OperatorHeader = "X-Operator"

var operatorKey = handler.NewContextKey("operator")

func requireOperator[R any](token string) handler.Decorator[handler.Context, R] {
	return func(next handler.HandlerFunc[handler.Context, R]) handler.HandlerFunc[handler.Context, R] {
		return func(ctx handler.Context, req R) handler.Response {
			r := ctx.Request()
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return handler.Error(handler.ErrUnauthorized)
			}

			operator := strings.TrimSpace(r.Header.Get(OperatorHeader))
			if operator == "" {
				operator = "operator"
			}
			r = r.WithContext(context.WithValue(r.Context(), operatorKey, operator))
			return next(handler.NewContext(ctx.ResponseWriter(), r), req)
		}
	}
}
