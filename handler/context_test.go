package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/handler"
)

func TestNewContext(t *testing.T) {
	t.Parallel()
	key := handler.NewContextKey("operator")
	assert.Equal(t, "operator", key.String())

	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), key, "ops"), time.Minute)
	defer cancel()
	r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(parent)
	w := httptest.NewRecorder()

	ctx := handler.NewContext(w, r)
	assert.Same(t, r, ctx.Request())
	assert.Equal(t, w, ctx.ResponseWriter())
	assert.Equal(t, "ops", handler.ContextValue[string](ctx, key))
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestContextValueOK(t *testing.T) {
	t.Parallel()
	key := handler.NewContextKey("count")

	_, ok := handler.ContextValueOK[int](context.Background(), key)
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), key, 0)
	n, ok := handler.ContextValueOK[int](ctx, key)
	require.True(t, ok)
	assert.Zero(t, n)

	_, ok = handler.ContextValueOK[string](ctx, key)
	assert.False(t, ok)
	assert.Empty(t, handler.ContextValue[string](ctx, key))
}
