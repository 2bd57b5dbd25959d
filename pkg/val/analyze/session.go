package analyze

import (
	"context"
	"errors"
	"sync"

	"github.com/komsit37/val/pkg/val/types"
)

// ErrSuperseded is returned by Session.Trigger when a newer trigger started
// before the run finished. Its result is discarded.
var ErrSuperseded = errors.New("analysis superseded by a newer request")

// Runner is the part of Analyzer a Session needs.
type Runner interface {
	Analyze(ctx context.Context, ticker string) (*types.AnalysisResult, error)
}

// Session holds the committed analysis of one dashboard. Every Trigger gets
// a new generation and cancels the run in flight; only the newest
// generation may commit.
type Session struct {
	runner Runner

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	latest *types.AnalysisResult
}

func NewSession(r Runner) *Session {
	return &Session{runner: r}
}

// Trigger starts an analysis of ticker, superseding any earlier one.
func (s *Session) Trigger(ctx context.Context, ticker string) (*types.AnalysisResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	res, err := s.runner.Analyze(ctx, ticker)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return nil, err
	}
	res.Generation = gen
	s.latest = res
	return res, nil
}

// Latest returns the last committed result, or nil.
func (s *Session) Latest() *types.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Generation returns the number of triggers so far.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}
