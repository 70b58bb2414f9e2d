package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Store(ctx context.Context, event audit.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type requestIDKey struct{}

func TestLoggerLog(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	storage := &mockStorage{}
	storage.On("Store", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Action == "abuse.suspended" &&
			e.Source == audit.SourceAbuseGuard &&
			e.FromStatus == "active" &&
			e.ToStatus == "suspended" &&
			e.SubscriptionID == "sub-1" &&
			e.UserID == "u1" &&
			e.RequestID == "req-9" &&
			e.Result == audit.ResultSuccess &&
			e.Metadata["velocity"] == 501 &&
			e.CreatedAt.Equal(fixed) &&
			e.ID != ""
	})).Return(nil).Once()

	l := audit.NewLogger(storage,
		audit.WithClock(func() time.Time { return fixed }),
		audit.WithRequestIDExtractor(func(ctx context.Context) (string, bool) {
			v, ok := ctx.Value(requestIDKey{}).(string)
			return v, ok
		}),
	)

	ctx := context.WithValue(context.Background(), requestIDKey{}, "req-9")
	err := l.Log(ctx, "abuse.suspended", audit.SourceAbuseGuard,
		audit.WithSubscription("sub-1", "u1"),
		audit.WithTransition("active", "suspended"),
		audit.WithMetadata("velocity", 501),
	)
	require.NoError(t, err)
	storage.AssertExpectations(t)
}

func TestLoggerLogError(t *testing.T) {
	t.Parallel()

	storage := &mockStorage{}
	storage.On("Store", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Result == audit.ResultFailure && e.Error == "no user" && e.EventID == "evt_1"
	})).Return(nil).Once()

	l := audit.NewLogger(storage)
	err := l.LogError(context.Background(), "webhook.unresolved", audit.SourceProvider, errors.New("no user"),
		audit.WithProviderEvent("stripe", "evt_1"),
	)
	require.NoError(t, err)
	storage.AssertExpectations(t)
}

func TestLoggerValidation(t *testing.T) {
	t.Parallel()

	l := audit.NewLogger(&mockStorage{})

	err := l.Log(context.Background(), "", audit.SourceProvider)
	assert.ErrorIs(t, err, audit.ErrEventValidation)

	err = l.Log(context.Background(), "subscription.renewed", "")
	assert.ErrorIs(t, err, audit.ErrEventValidation)
}

func TestLoggerStorageFailure(t *testing.T) {
	t.Parallel()

	storage := &mockStorage{}
	storage.On("Store", mock.Anything, mock.Anything).Return(errors.New("db down"))

	l := audit.NewLogger(storage)
	err := l.Log(context.Background(), "subscription.renewed", audit.SourceProvider)
	assert.ErrorIs(t, err, audit.ErrStorageFailed)
}

func TestNewLoggerPanicsOnNilStorage(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { audit.NewLogger(nil) })
}
