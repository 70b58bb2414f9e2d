package binder_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/binder"
)

func TestQuery(t *testing.T) {
	t.Parallel()
	type historyQuery struct {
		UserID  string   `query:"user_id"`
		Limit   int      `query:"limit"`
		Sources []string `query:"source"`
		Verbose *bool    `query:"verbose"`
		Skip    string   `query:"-"`
	}

	t.Run("binds values", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/history?user_id=u1&limit=20&source=provider,abuse_guard&verbose=yes&Skip=x", nil)

		var got historyQuery
		require.NoError(t, binder.Query()(req, &got))
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, 20, got.Limit)
		assert.Equal(t, []string{"provider", "abuse_guard"}, got.Sources)
		require.NotNil(t, got.Verbose)
		assert.True(t, *got.Verbose)
		assert.Empty(t, got.Skip)
	})

	t.Run("empty query", func(t *testing.T) {
		t.Parallel()
		var got historyQuery
		require.NoError(t, binder.Query()(httptest.NewRequest(http.MethodGet, "/history", nil), &got))
		assert.Zero(t, got.Limit)
		assert.Nil(t, got.Verbose)
	})

	t.Run("invalid int", func(t *testing.T) {
		t.Parallel()
		var got historyQuery
		err := binder.Query()(httptest.NewRequest(http.MethodGet, "/history?limit=ten", nil), &got)
		assert.ErrorIs(t, err, binder.ErrInvalidQuery)
	})
}
