package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Sync tracks the offset between the server clock and the local clock so that
// countdowns computed from server-supplied deadlines agree across viewers.
//
// The offset is replaced whenever a strictly newer server timestamp is
// observed, from either a REST response or a socket payload. Offsets are never
// averaged: the freshest observation wins outright.
type Sync struct {
	mu sync.RWMutex

	clock clockwork.Clock

	// offset = serverTime - localTime, in milliseconds
	offsetMillis int64

	// newest server timestamp seen so far, epoch millis
	lastServerMillis int64
}

// NewSync creates a clock sync with zero offset until the first server
// timestamp is observed.
func NewSync(clk clockwork.Clock) *Sync {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Sync{clock: clk}
}

// UpdateFromServerTime records a freshly observed server timestamp (epoch
// millis). Stale or zero timestamps are ignored so a slow REST response can
// never roll the offset backwards past a socket-delivered one.
func (s *Sync) UpdateFromServerTime(serverMillis int64, source string) {
	if serverMillis <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if serverMillis <= s.lastServerMillis {
		return
	}

	localMillis := s.clock.Now().UnixMilli()
	s.lastServerMillis = serverMillis
	s.offsetMillis = serverMillis - localMillis

	log.Debug().
		Str("source", source).
		Int64("server_millis", serverMillis).
		Int64("offset_millis", s.offsetMillis).
		Msg("clock offset updated")
}

// AdjustedNow returns the local time corrected by the last observed offset.
func (s *Sync) AdjustedNow() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock.Now().Add(time.Duration(s.offsetMillis) * time.Millisecond)
}

// NowMillis returns AdjustedNow as epoch milliseconds.
func (s *Sync) NowMillis() int64 {
	return s.AdjustedNow().UnixMilli()
}

// Offset returns the current server-minus-local delta.
func (s *Sync) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.offsetMillis) * time.Millisecond
}

// Synced reports whether any server timestamp has been observed yet.
func (s *Sync) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastServerMillis > 0
}
