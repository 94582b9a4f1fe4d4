package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_StartRunsImmediately(t *testing.T) {
	ran := make(chan uint64, 1)
	p := New("test", time.Hour, func(ctx context.Context, seq uint64) {
		ran <- seq
	}, nil)
	defer p.Stop()

	require.NoError(t, p.Start(context.Background()))

	select {
	case seq := <-ran:
		assert.Equal(t, uint64(1), seq)
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestPoller_TriggerSequence(t *testing.T) {
	var mu sync.Mutex
	var seqs []uint64
	p := New("test", time.Hour, func(ctx context.Context, seq uint64) {
		mu.Lock()
		seqs = append(seqs, seq)
		mu.Unlock()
	}, nil)

	require.NoError(t, p.Trigger())
	require.NoError(t, p.Trigger())
	require.NoError(t, p.Trigger())

	assert.Equal(t, []uint64{1, 2, 3}, seqs)
	assert.Equal(t, uint64(3), p.Runs())
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	p := New("test", time.Hour, func(ctx context.Context, seq uint64) {}, nil)
	require.NoError(t, p.Start(context.Background()))

	p.Stop()
	p.Stop()

	assert.True(t, p.Stopped())
	assert.ErrorIs(t, p.Trigger(), ErrStopped)
	assert.ErrorIs(t, p.Start(context.Background()), ErrStopped)
}

func TestPoller_StopFromJob(t *testing.T) {
	done := make(chan struct{})
	var p *Poller
	p = New("test", time.Hour, func(ctx context.Context, seq uint64) {
		p.Stop()
		assert.Error(t, ctx.Err())
		close(done)
	}, nil)

	require.NoError(t, p.Start(context.Background()))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop from inside the job blocked")
	}
	assert.True(t, p.Stopped())
}

func TestPoller_ParentCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New("test", time.Hour, func(ctx context.Context, seq uint64) {}, nil)
	require.NoError(t, p.Start(ctx))

	cancel()
	assert.Eventually(t, p.Stopped, time.Second, 10*time.Millisecond)
}

func TestPoller_SkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	p := New("test", time.Second, func(ctx context.Context, seq uint64) {
		if seq == 1 {
			<-release
		}
	}, nil)
	defer p.Stop()

	require.NoError(t, p.Start(context.Background()))
	time.Sleep(2500 * time.Millisecond)
	assert.Equal(t, uint64(1), p.Runs())

	close(release)
	assert.Eventually(t, func() bool { return p.Runs() >= 2 }, 3*time.Second, 50*time.Millisecond)
}

func TestPoller_InvalidInterval(t *testing.T) {
	p := New("test", 0, func(ctx context.Context, seq uint64) {}, nil)
	assert.Error(t, p.Start(context.Background()))
}

func TestPoller_TriggerNeverOverlaps(t *testing.T) {
	var active, maxActive atomic.Int32
	p := New("test", time.Hour, func(ctx context.Context, seq uint64) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		active.Add(-1)
	}, nil)
	defer p.Stop()

	require.NoError(t, p.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Trigger())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, int32(0), active.Load())
}

func TestPoller_TriggerWaitsForRunInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	p := New("test", time.Hour, func(ctx context.Context, seq uint64) {
		if seq == 1 {
			once.Do(func() { close(started) })
			<-release
		}
	}, nil)
	defer p.Stop()

	require.NoError(t, p.Start(context.Background()))
	<-started

	returned := make(chan error, 1)
	go func() { returned <- p.Trigger() }()

	select {
	case <-returned:
		t.Fatal("trigger returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("trigger did not return after the run finished")
	}
	assert.Equal(t, uint64(1), p.Runs())

	require.NoError(t, p.Trigger())
	assert.Equal(t, uint64(2), p.Runs())
}

func TestPoller_TriggerUnblocksOnStop(t *testing.T) {
	started := make(chan struct{})
	p := New("test", time.Hour, func(ctx context.Context, seq uint64) {
		close(started)
		<-ctx.Done()
		time.Sleep(200 * time.Millisecond)
	}, nil)

	require.NoError(t, p.Start(context.Background()))
	<-started

	returned := make(chan error, 1)
	go func() { returned <- p.Trigger() }()
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	select {
	case err := <-returned:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(150 * time.Millisecond):
		t.Fatal("trigger kept waiting after stop")
	}
}
