package analyze

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komsit37/val/pkg/val/types"
)

// stubRunner blocks SLOW until canceled and STUBBORN until release closes.
type stubRunner struct {
	started chan string
	release chan struct{}
}

func newStubRunner() *stubRunner {
	return &stubRunner{started: make(chan string, 8), release: make(chan struct{})}
}

func (r *stubRunner) Analyze(ctx context.Context, ticker string) (*types.AnalysisResult, error) {
	r.started <- ticker
	switch ticker {
	case "SLOW":
		<-ctx.Done()
		return nil, ctx.Err()
	case "STUBBORN":
		<-r.release
		return &types.AnalysisResult{Ticker: ticker}, nil
	case "BAD":
		return nil, errors.New("boom")
	}
	return &types.AnalysisResult{Ticker: ticker}, nil
}

func TestSession_CommitsLatestGeneration(t *testing.T) {
	s := NewSession(newStubRunner())
	res, err := s.Trigger(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Generation)

	res, err = s.Trigger(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Generation)
	assert.Equal(t, "MSFT", s.Latest().Ticker)
	assert.Equal(t, uint64(2), s.Generation())
}

func TestSession_NewTriggerCancelsInFlight(t *testing.T) {
	r := newStubRunner()
	s := NewSession(r)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), "SLOW")
		done <- err
	}()
	require.Equal(t, "SLOW", <-r.started)

	res, err := s.Trigger(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Ticker)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, "AAPL", s.Latest().Ticker)
}

func TestSession_LateResultDoesNotOverwrite(t *testing.T) {
	r := newStubRunner()
	s := NewSession(r)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), "STUBBORN")
		done <- err
	}()
	require.Equal(t, "STUBBORN", <-r.started)

	_, err := s.Trigger(context.Background(), "MSFT")
	require.NoError(t, err)
	close(r.release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, "MSFT", s.Latest().Ticker)
	assert.Equal(t, uint64(2), s.Latest().Generation)
}

func TestSession_FailureKeepsPreviousResult(t *testing.T) {
	s := NewSession(newStubRunner())
	_, err := s.Trigger(context.Background(), "AAPL")
	require.NoError(t, err)

	_, err = s.Trigger(context.Background(), "BAD")
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "AAPL", s.Latest().Ticker)
	assert.Nil(t, NewSession(newStubRunner()).Latest())
}
