package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestNoObservationDefaultsToZeroOffset(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := NewSync(fake)

	if s.Synced() {
		t.Fatal("expected unsynced before any observation")
	}
	if got := s.Offset(); got != 0 {
		t.Fatalf("expected zero offset, got %v", got)
	}
	if got := s.AdjustedNow(); !got.Equal(fake.Now()) {
		t.Fatalf("AdjustedNow = %v, want local now %v", got, fake.Now())
	}
}

func TestFreshestServerTimestampWins(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := NewSync(fake)

	local := fake.Now().UnixMilli()

	// Server is 5s ahead of us.
	s.UpdateFromServerTime(local+5000, "socket")
	if got := s.Offset(); got != 5*time.Second {
		t.Fatalf("offset = %v, want 5s", got)
	}

	// A stale REST response carrying an older server timestamp must not
	// regress the offset.
	s.UpdateFromServerTime(local+2000, "rest")
	if got := s.Offset(); got != 5*time.Second {
		t.Fatalf("offset after stale update = %v, want 5s", got)
	}

	// A newer one replaces it.
	s.UpdateFromServerTime(local+9000, "socket")
	if got := s.Offset(); got != 9*time.Second {
		t.Fatalf("offset after fresh update = %v, want 9s", got)
	}
	if !s.Synced() {
		t.Fatal("expected synced after observations")
	}
}

func TestZeroTimestampIgnored(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := NewSync(fake)

	s.UpdateFromServerTime(0, "rest")
	s.UpdateFromServerTime(-1, "rest")
	if s.Synced() {
		t.Fatal("zero/negative timestamps must be ignored")
	}
}

func TestAdjustedNowTracksLocalClock(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := NewSync(fake)

	s.UpdateFromServerTime(fake.Now().UnixMilli()+3000, "socket")
	before := s.NowMillis()

	fake.Advance(10 * time.Second)

	if got := s.NowMillis() - before; got != 10000 {
		t.Fatalf("adjusted clock advanced %dms, want 10000ms", got)
	}
}
