package conversation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTTL           = time.Hour
	DefaultPurgeInterval = 5 * time.Minute
)

// StartPurger runs PurgeExpired every interval until ctx is done.
func (s *Store) StartPurger(ctx context.Context, interval, ttl time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	go s.purgeLoop(ctx, interval, ttl, logger)
}

func (s *Store) purgeLoop(ctx context.Context, interval, ttl time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PurgeExpired(ttl); n > 0 {
				logger.Info().
					Int("purged", n).
					Int("remaining", s.Len()).
					Dur("ttl", ttl).
					Msg("purged idle conversations")
			}
		}
	}
}
