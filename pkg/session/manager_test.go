package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/afo-kingdom/chancellor/pkg/adapters/memory"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerializesSameTrace(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.WithLock(ctx, "same", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, mgr.Active())
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		tid := fmt.Sprintf("trace-%d", i)
		require.NoError(t, mgr.Store().Save(ctx, tid, domain.StepCmd, domain.NewGraphState(nil)))
		require.NoError(t, mgr.Delete(ctx, tid))
	}
	assert.Zero(t, len(mgr.locks), "locks must be released once unused")
}

func TestManager_Latest(t *testing.T) {
	store := memory.NewStore()
	mgr := NewManager(store)
	ctx := context.Background()

	_, err := mgr.Latest(ctx, "none")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

	state := domain.NewGraphState(map[string]any{"trace_id": "t"})
	state.Step = domain.StepVerify
	require.NoError(t, store.Save(ctx, "t", domain.StepVerify, state))

	got, err := mgr.Latest(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, domain.StepVerify, got.Step)

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, ids)
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	ttl      time.Duration
	fail     bool
	unlockFn func(context.Context) error
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.fail {
		return nil, errors.New("redis down")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = append(l.locked, key)
	l.ttl = ttl
	if l.unlockFn != nil {
		return l.unlockFn, nil
	}
	return func(context.Context) error { return nil }, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &recordingLocker{unlockFn: func(context.Context) error { return errors.New("expired") }}
	mgr := NewManager(memory.NewStore(), WithLocker(locker), WithLockTTL(5*time.Second))

	called := false
	err := mgr.WithLock(context.Background(), "t1", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err, "unlock failures are logged, not returned")
	assert.True(t, called)
	assert.Equal(t, []string{"t1"}, locker.locked)
	assert.Equal(t, 5*time.Second, locker.ttl)
}

func TestManager_DistributedLockFailure(t *testing.T) {
	mgr := NewManager(memory.NewStore(), WithLocker(&recordingLocker{fail: true}))

	err := mgr.WithLock(context.Background(), "t1", func(ctx context.Context) error {
		t.Fatal("must not run without the lock")
		return nil
	})
	assert.ErrorContains(t, err, "redis down")
	assert.Zero(t, mgr.Active())
}
