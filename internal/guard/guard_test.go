package guard_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/grakai/pitchside/internal/guard"
	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage"
	"github.com/grakai/pitchside/internal/storage/memory"
	"github.com/grakai/pitchside/internal/storage/storagemock"
)

// plainStatus hides the compare-and-swap of the memory repository.
type plainStatus struct {
	storage.StatusRepository
}

func newRepos(t *testing.T) map[string]storage.StatusRepository {
	t.Helper()
	cas, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	plain, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	return map[string]storage.StatusRepository{
		"swap":           cas,
		"check-then-set": plainStatus{plain},
	}
}

func TestGuardBeginTwice(t *testing.T) {
	for kind, repo := range newRepos(t) {
		t.Run(kind, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			g, err := guard.NewGuard(guard.GuardConfig{Repository: repo, Logger: log.Noop})
			require.NoError(err)

			ctx := context.Background()
			assert.NoError(g.Begin(ctx, "proj-1"))
			assert.ErrorIs(g.Begin(ctx, "proj-1"), model.ErrAlreadyProcessing)

			// Other sessions are independent.
			assert.NoError(g.Begin(ctx, "proj-2"))

			require.NoError(g.End(ctx, "proj-1"))
			assert.NoError(g.Begin(ctx, "proj-1"))
		})
	}
}

type countingStatus struct {
	storage.StatusRepository
	idleSets int
}

func (c *countingStatus) SetStatus(ctx context.Context, sessionID string, status model.SessionStatus) error {
	if status == model.SessionStatusIdle {
		c.idleSets++
	}
	return c.StatusRepository.SetStatus(ctx, sessionID, status)
}

func TestGuardDoReleasesOnce(t *testing.T) {
	errPipeline := errors.New("pipeline crashed")

	tests := map[string]struct {
		fn       func(ctx context.Context) error
		cancel   bool
		expErr   error
		expPanic bool
	}{
		"A successful block should release once.": {
			fn: func(ctx context.Context) error { return nil },
		},
		"A failing pipeline should release once.": {
			fn:     func(ctx context.Context) error { return fmt.Errorf("%w: %w", model.ErrPipelineFailure, errPipeline) },
			expErr: model.ErrPipelineFailure,
		},
		"A failing agent should release once.": {
			fn:     func(ctx context.Context) error { return model.ErrAgentFailure },
			expErr: model.ErrAgentFailure,
		},
		"A cancelled block should release once.": {
			fn: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			cancel: true,
			expErr: context.Canceled,
		},
		"A panicking block should release once.": {
			fn:       func(ctx context.Context) error { panic("boom") },
			expPanic: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mem, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)
			repo := &countingStatus{StatusRepository: mem}

			g, err := guard.NewGuard(guard.GuardConfig{Repository: repo})
			require.NoError(err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if test.cancel {
				cancel()
			}

			run := func() error { return g.Do(ctx, "proj-1", test.fn) }
			if test.expPanic {
				assert.Panics(func() { _ = run() })
			} else {
				err = run()
				if test.expErr != nil {
					assert.ErrorIs(err, test.expErr)
				} else {
					assert.NoError(err)
				}
			}

			assert.Equal(1, repo.idleSets)
			status, err := mem.GetStatus(context.Background(), "proj-1")
			require.NoError(err)
			assert.Equal(model.SessionStatusIdle, status)
		})
	}
}

func TestGuardDoAlreadyProcessingDoesNotRelease(t *testing.T) {
	mem, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	require.NoError(t, mem.SetStatus(context.Background(), "proj-1", model.SessionStatusProcessing))
	repo := &countingStatus{StatusRepository: mem}

	g, err := guard.NewGuard(guard.GuardConfig{Repository: repo})
	require.NoError(t, err)

	called := false
	err = g.Do(context.Background(), "proj-1", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, model.ErrAlreadyProcessing)
	assert.False(t, called)
	assert.Equal(t, 0, repo.idleSets)
}

func TestGuardUpstreamErrors(t *testing.T) {
	errStore := errors.New("connection refused")

	tests := map[string]struct {
		mock   func(m *storagemock.MockStatusRepository)
		run    func(g *guard.Guard) error
		expErr error
	}{
		"A failing status read should be an upstream error.": {
			mock: func(m *storagemock.MockStatusRepository) {
				m.On("GetStatus", mock.Anything, "p1").Once().Return(model.SessionStatus(""), errStore)
			},
			run:    func(g *guard.Guard) error { return g.Begin(context.Background(), "p1") },
			expErr: model.ErrUpstreamUnavailable,
		},
		"A missing status should be treated as idle.": {
			mock: func(m *storagemock.MockStatusRepository) {
				m.On("GetStatus", mock.Anything, "p1").Once().Return(model.SessionStatus(""), model.ErrNotFound)
				m.On("SetStatus", mock.Anything, "p1", model.SessionStatusProcessing).Once().Return(nil)
			},
			run: func(g *guard.Guard) error { return g.Begin(context.Background(), "p1") },
		},
		"A failing status write should be an upstream error.": {
			mock: func(m *storagemock.MockStatusRepository) {
				m.On("GetStatus", mock.Anything, "p1").Once().Return(model.SessionStatusIdle, nil)
				m.On("SetStatus", mock.Anything, "p1", model.SessionStatusProcessing).Once().Return(errStore)
			},
			run:    func(g *guard.Guard) error { return g.Begin(context.Background(), "p1") },
			expErr: model.ErrUpstreamUnavailable,
		},
		"A failing release should be returned from Do.": {
			mock: func(m *storagemock.MockStatusRepository) {
				m.On("GetStatus", mock.Anything, "p1").Once().Return(model.SessionStatusIdle, nil)
				m.On("SetStatus", mock.Anything, "p1", model.SessionStatusProcessing).Once().Return(nil)
				m.On("SetStatus", mock.Anything, "p1", model.SessionStatusIdle).Once().Return(errStore)
			},
			run: func(g *guard.Guard) error {
				return g.Do(context.Background(), "p1", func(ctx context.Context) error { return nil })
			},
			expErr: model.ErrUpstreamUnavailable,
		},
		"A failing release should not hide the block error.": {
			mock: func(m *storagemock.MockStatusRepository) {
				m.On("GetStatus", mock.Anything, "p1").Once().Return(model.SessionStatusIdle, nil)
				m.On("SetStatus", mock.Anything, "p1", model.SessionStatusProcessing).Once().Return(nil)
				m.On("SetStatus", mock.Anything, "p1", model.SessionStatusIdle).Once().Return(errStore)
			},
			run: func(g *guard.Guard) error {
				return g.Do(context.Background(), "p1", func(ctx context.Context) error { return model.ErrAgentFailure })
			},
			expErr: model.ErrAgentFailure,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := &storagemock.MockStatusRepository{}
			test.mock(m)

			g, err := guard.NewGuard(guard.GuardConfig{Repository: m})
			require.NoError(t, err)

			err = test.run(g)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else {
				assert.NoError(t, err)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestNewGuardRequiresRepository(t *testing.T) {
	_, err := guard.NewGuard(guard.GuardConfig{})
	assert.Error(t, err)
}
