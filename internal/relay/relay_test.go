package relay_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/relay"
)

type recorder struct {
	mu   sync.Mutex
	vals []int
}

func (r *recorder) onProgress(_ context.Context, p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vals = append(r.vals, p)
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int{}, r.vals...)
}

func producerOf(vals ...int) relay.Producer {
	return func(ctx context.Context, report func(int)) error {
		for _, v := range vals {
			report(v)
		}
		return nil
	}
}

func TestRelayRun(t *testing.T) {
	tests := map[string]struct {
		cfg         relay.RelayConfig
		producer    relay.Producer
		expProgress []int
		expErr      error
	}{
		"A finite sequence should be relayed in order.": {
			producer:    producerOf(0, 25, 50, 100),
			expProgress: []int{0, 25, 50, 100},
		},
		"An empty sequence should complete without progress.": {
			producer:    producerOf(),
			expProgress: []int{},
		},
		"A long sequence with a small queue should not drop values.": {
			cfg: relay.RelayConfig{QueueSize: 1},
			producer: func(ctx context.Context, report func(int)) error {
				for i := 0; i <= 100; i++ {
					report(i)
				}
				return nil
			},
			expProgress: func() []int {
				vals := make([]int, 0, 101)
				for i := 0; i <= 100; i++ {
					vals = append(vals, i)
				}
				return vals
			}(),
		},
		"A failing producer should return a pipeline failure.": {
			producer: func(ctx context.Context, report func(int)) error {
				report(10)
				return errors.New("decoder crashed")
			},
			expErr: model.ErrPipelineFailure,
		},
		"A panicking producer should return a pipeline failure.": {
			producer: func(ctx context.Context, report func(int)) error {
				panic("boom")
			},
			expErr: model.ErrPipelineFailure,
		},
		"An out of range percentage should return a protocol error.": {
			producer:    producerOf(10, 101),
			expProgress: []int{10},
			expErr:      model.ErrRelayProtocol,
		},
		"A negative percentage should return a protocol error.": {
			producer:    producerOf(-1),
			expProgress: []int{},
			expErr:      model.ErrRelayProtocol,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			test.cfg.Logger = log.Noop
			r, err := relay.NewRelay(test.cfg)
			require.NoError(err)

			rec := &recorder{}
			err = r.Run(context.Background(), test.producer, rec.onProgress)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}
			if test.expProgress != nil {
				assert.Equal(test.expProgress, rec.values())
			}
		})
	}
}

func TestRelayRunFailureStopsDrain(t *testing.T) {
	require := require.New(t)

	r, err := relay.NewRelay(relay.RelayConfig{})
	require.NoError(err)

	rec := &recorder{}
	err = r.Run(context.Background(), func(ctx context.Context, report func(int)) error {
		report(5)
		return errors.New("oom")
	}, rec.onProgress)
	require.ErrorIs(err, model.ErrPipelineFailure)

	// The drain has been awaited, nothing is delivered after Run returns.
	got := rec.values()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, got, rec.values())
}

func TestRelayRunCancel(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	r, err := relay.NewRelay(relay.RelayConfig{})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	reported := make(chan struct{})
	finished := make(chan struct{})

	// Blocking work that ignores ctx.
	producer := func(_ context.Context, report func(int)) error {
		defer close(finished)
		report(10)
		close(reported)
		<-release
		report(90)
		return nil
	}

	rec := &recorder{}
	errC := make(chan error, 1)
	go func() { errC <- r.Run(ctx, producer, rec.onProgress) }()

	<-reported
	cancel()

	select {
	case err := <-errC:
		assert.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not return after cancel")
	}

	// Let the worker finish, its late report is dropped.
	close(release)
	<-finished
	assert.NotContains(rec.values(), 90)
}

func TestRelayWorkerPoolIsBounded(t *testing.T) {
	require := require.New(t)

	r, err := relay.NewRelay(relay.RelayConfig{Workers: 1})
	require.NoError(err)

	var running, maxRunning int32
	producer := func(ctx context.Context, report func(int)) error {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		report(100)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Run(context.Background(), producer, func(context.Context, int) {}))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
}

func TestNewRelayInvalidConfig(t *testing.T) {
	_, err := relay.NewRelay(relay.RelayConfig{Workers: -1})
	assert.Error(t, err)

	_, err = relay.NewRelay(relay.RelayConfig{QueueSize: -1})
	assert.Error(t, err)
}
