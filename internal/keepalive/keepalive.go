// Package keepalive periodically touches every text channel so the hosting
// platform does not archive or mark them inactive. Each sweep sends a single
// unobtrusive character to a channel and deletes it shortly after.
package keepalive

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexussoftworks/go-keybot/internal/chat"
)

// marker is the single character posted and removed during a sweep. A
// left-to-right mark renders as nothing in chat clients.
const marker = "‎"

// defaultLinger is how long the marker stays visible before deletion.
const defaultLinger = time.Second

// Sweeper walks the guild's text channels on a fixed interval.
type Sweeper struct {
	// Directory enumerates channels and deletes the marker messages.
	Directory chat.Directory
	// Notifier posts the marker messages.
	Notifier chat.Notifier
	// Interval between automatic sweeps.
	Interval time.Duration
	// Linger overrides how long the marker stays before deletion. Zero
	// means defaultLinger.
	Linger time.Duration
	// Log is the sweeper logger.
	Log zerolog.Logger

	// pause is a test seam over time.Sleep.
	pause func(time.Duration)
}

func (s *Sweeper) linger() time.Duration {
	if s.Linger > 0 {
		return s.Linger
	}
	return defaultLinger
}

func (s *Sweeper) wait(d time.Duration) {
	if s.pause != nil {
		s.pause(d)
		return
	}
	time.Sleep(d)
}

// Run sweeps on every Interval tick until ctx is cancelled. Intended to run
// on its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			touched, err := s.Sweep(ctx)
			if err != nil {
				s.Log.Warn().Err(err).Msg("keepalive sweep failed")
				continue
			}
			s.Log.Info().Int("channels", touched).Msg("keepalive sweep complete")
		}
	}
}

// Sweep touches every text channel once and reports how many were touched
// successfully. A single channel's send or delete failure is logged and the
// sweep moves on; only the channel listing itself can fail the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	channels, err := s.Directory.Channels(ctx)
	if err != nil {
		return 0, err
	}

	touched := 0
	for _, ch := range channels {
		if !ch.Text {
			continue
		}
		msgID, err := s.Notifier.SendChannel(ctx, ch.ID, marker)
		if err != nil {
			s.Log.Warn().Err(err).Str("channel", ch.ID).Msg("keepalive send failed")
			continue
		}
		s.wait(s.linger())
		if err := s.Directory.DeleteMessage(ctx, ch.ID, msgID); err != nil {
			s.Log.Warn().Err(err).Str("channel", ch.ID).Msg("keepalive delete failed")
		}
		touched++
	}
	return touched, nil
}
