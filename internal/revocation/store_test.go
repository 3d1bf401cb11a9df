package revocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestKey_HashesToken(t *testing.T) {
	k := Key("abc.def.ghi")
	assert.Len(t, k, 64)
	assert.NotContains(t, k, "abc")
	assert.Equal(t, k, Key("abc.def.ghi"))
}

func TestMemoryStore_RevokeAndExpire(t *testing.T) {
	clk := &clock{t: time.Unix(10_000, 0)}
	s := NewMemoryStore().WithClock(clk.Now)
	ctx := context.Background()

	ok, err := s.IsRevoked(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Revoke(ctx, "t1", clk.Now().Add(time.Minute)))
	require.NoError(t, s.Revoke(ctx, "t1", clk.Now().Add(time.Minute)))

	ok, err = s.IsRevoked(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())

	ok, _ = s.IsRevoked(ctx, "t2")
	assert.False(t, ok)

	clk.Advance(time.Minute)
	ok, _ = s.IsRevoked(ctx, "t1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_SkipsExpiredTokens(t *testing.T) {
	clk := &clock{t: time.Unix(10_000, 0)}
	s := NewMemoryStore().WithClock(clk.Now)

	require.NoError(t, s.Revoke(context.Background(), "old", clk.Now().Add(-time.Second)))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Revoke(ctx, "shared", exp)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.IsRevoked(ctx, "shared")
		}()
	}
	wg.Wait()

	ok, err := s.IsRevoked(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_RunSweepsExpired(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clk := &clock{t: time.Unix(10_000, 0)}
	s := NewMemoryStore().WithClock(clk.Now)
	ctx := context.Background()

	require.NoError(t, s.Revoke(ctx, "short", clk.Now().Add(time.Second)))
	require.NoError(t, s.Revoke(ctx, "long", clk.Now().Add(time.Hour)))
	clk.Advance(2 * time.Second)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(runCtx, 5*time.Millisecond, nil)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	ok, err := s.IsRevoked(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStore_RevokeWithRemainingTTL(t *testing.T) {
	s, mr := newRedisStore(t)
	clk := &clock{t: time.Now()}
	s.WithClock(clk.Now)
	ctx := context.Background()

	require.NoError(t, s.Revoke(ctx, "tok", clk.Now().Add(10*time.Minute)))

	key := keyPrefix + Key("tok")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 10*time.Minute, mr.TTL(key))

	ok, err := s.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsRevoked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(10 * time.Minute)
	ok, err = s.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ExpiredTokenNotWritten(t *testing.T) {
	s, mr := newRedisStore(t)

	require.NoError(t, s.Revoke(context.Background(), "tok", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(keyPrefix+Key("tok")))
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, err := s.IsRevoked(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = s.Revoke(context.Background(), "tok", time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStores_ShareSemantics(t *testing.T) {
	rs, _ := newRedisStore(t)

	for name, s := range map[string]Store{"memory": NewMemoryStore(), "redis": rs} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Revoke(ctx, "a", time.Now().Add(time.Hour)))

			ok, err := s.IsRevoked(ctx, "a")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.IsRevoked(ctx, "b")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
