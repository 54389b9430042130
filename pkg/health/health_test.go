package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(endpoint func(http.ResponseWriter, *http.Request)) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	endpoint(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestService_ReadyGate(t *testing.T) {
	s := New()

	assert.False(t, s.IsReady())
	require.Equal(t, http.StatusServiceUnavailable, probe(s.ReadyEndpoint).Code)

	s.SetReady(true)
	assert.True(t, s.IsReady())
	require.Equal(t, http.StatusOK, probe(s.ReadyEndpoint).Code)

	s.SetReady(false)
	assert.False(t, s.IsReady())
}

func TestService_FailureThreshold(t *testing.T) {
	s := New()
	s.SetReady(true)

	checkErr := errors.New("connection refused")
	var failing bool
	s.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
		if failing {
			return checkErr
		}
		return nil
	})

	c := s.readiness[0]
	ctx := context.Background()

	// Healthy runs keep the check green.
	c.run(ctx)
	assert.True(t, s.IsReady())

	// Fewer than failureThreshold consecutive failures do not flip it.
	failing = true
	for i := 0; i < failureThreshold-1; i++ {
		c.run(ctx)
	}
	assert.True(t, s.IsReady())

	c.run(ctx)
	assert.False(t, s.IsReady())

	rec := probe(s.ReadyEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	// One success clears the state.
	failing = false
	c.run(ctx)
	assert.True(t, s.IsReady())
}

func TestService_LiveEndpoint(t *testing.T) {
	s := New()
	s.AddLivenessCheck("goroutines", time.Second, func(context.Context) error {
		return nil
	})

	// Liveness is independent of the readiness gate.
	require.Equal(t, http.StatusOK, probe(s.LiveEndpoint).Code)

	c := s.liveness[0]
	c.fn = func(context.Context) error { return errors.New("too many goroutines") }
	for i := 0; i < failureThreshold; i++ {
		c.run(context.Background())
	}

	rec := probe(s.LiveEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "too many goroutines")
}

func TestGoroutineCountCheck(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, GoroutineCountCheck(1_000_000)(ctx))

	err := GoroutineCountCheck(0)(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestService_StartStop(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 1)
	s.AddLivenessCheck("probe", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	s.Start(context.Background(), 10*time.Millisecond)
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("check never ran")
	}
}
