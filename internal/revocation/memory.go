package revocation

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/tourhub/internal/cache"
)

// FallbackTTL bounds entries revoked without a known expiry.
const FallbackTTL = 24 * time.Hour

// MemoryStore keeps revocations in process. Entries disappear once the token
// has expired, so memory is bounded by the number of live revoked tokens.
type MemoryStore struct {
	c   *cache.Cache
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New(FallbackTTL), now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	s.c.WithClock(now)
	return s
}

func (s *MemoryStore) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(FallbackTTL)
	}
	if !s.now().Before(expiresAt) {
		return nil
	}
	s.c.SetUntil(Key(token), struct{}{}, expiresAt)
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	_, ok := s.c.Get(Key(token))
	return ok, nil
}

func (s *MemoryStore) Len() int { return s.c.Len() }

// Run sweeps expired entries every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.c.DeleteExpired(); n > 0 && log != nil {
				log.Debug("revocations swept", "count", n)
			}
		}
	}
}
