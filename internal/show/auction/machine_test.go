package auction

import (
	"errors"
	"testing"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
)

func runningAuction(id string, bids ...events.Bid) *events.Auction {
	if bids == nil {
		bids = []events.Bid{}
	}
	return &events.Auction{
		ID:            id,
		Product:       &events.Product{ID: "p1", Name: "cap"},
		BasePrice:     100,
		NewBasePrice:  125,
		IncreaseBidBy: 5,
		Duration:      60,
		StartedTime:   1_000_000,
		Bids:          bids,
	}
}

func TestAdoptRejectsInvalidAuctions(t *testing.T) {
	m := NewMachine()

	if err := m.Adopt(&events.Auction{}, 1_000_000); !errors.Is(err, ErrInvalidAuction) {
		t.Fatalf("empty placeholder: err = %v, want ErrInvalidAuction", err)
	}

	// Valid shape but no resolvable end time.
	a := &events.Auction{ID: "a1", Product: &events.Product{ID: "p"}, Bids: []events.Bid{}}
	if err := m.Adopt(a, 1_000_000); !errors.Is(err, ErrInvalidAuction) {
		t.Fatalf("no endTime: err = %v, want ErrInvalidAuction", err)
	}
	if m.State() != StateIdle {
		t.Fatalf("state = %v after rejected adopt, want idle", m.State())
	}
}

func TestCountdownRoundTrip(t *testing.T) {
	m := NewMachine()
	a := runningAuction("a1")

	// endTime derives to startedTime + duration*1000.
	if got := a.ResolveEndTime(); got != 1_060_000 {
		t.Fatalf("endTime = %d, want 1060000", got)
	}

	if err := m.Adopt(a, 1_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if m.Remaining() != 60 {
		t.Fatalf("remaining = %d, want 60", m.Remaining())
	}

	// Ticks recompute from the deadline, so a skipped tick cannot drift.
	if got, _ := m.Tick(1_030_000); got != 30 {
		t.Fatalf("remaining = %d, want 30", got)
	}

	// adjustedNow == endTime must yield exactly zero and flip to ended.
	got, expired := m.Tick(1_060_000)
	if got != 0 || !expired {
		t.Fatalf("Tick(at deadline) = (%d, %v), want (0, true)", got, expired)
	}
	if m.State() != StateEnded {
		t.Fatalf("state = %v, want ended", m.State())
	}
}

func TestAdoptExpiredAuctionKeepsFinalWinnerVisible(t *testing.T) {
	m := NewMachine()
	a := runningAuction("a1", events.Bid{Bidder: "u1", Amount: 50, Timestamp: 1})
	a.Ended = true

	if err := m.Adopt(a, 2_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if m.State() != StateEnded {
		t.Fatalf("state = %v, want ended", m.State())
	}
	winner, first := m.AnnounceWinner()
	if winner == nil || winner.Bidder != "u1" || !first {
		t.Fatalf("winner = %+v first=%v", winner, first)
	}
}

func TestLeaderMaxAmountEarliestTimestamp(t *testing.T) {
	bids := []events.Bid{
		{Bidder: "u1", Amount: 100, Timestamp: 10},
		{Bidder: "u2", Amount: 120, Timestamp: 20},
		{Bidder: "u3", Amount: 120, Timestamp: 15},
		{Bidder: "u4", Amount: 90, Timestamp: 5},
	}
	leader := LeaderOf(bids)
	if leader == nil || leader.Bidder != "u3" {
		t.Fatalf("leader = %+v, want u3 (tie broken by earliest timestamp)", leader)
	}
}

func TestSelfOutbidSuppressed(t *testing.T) {
	m := NewMachine()
	a := runningAuction("a1", events.Bid{Bidder: "u1", Amount: 120, Timestamp: 1})
	if err := m.Adopt(a, 1_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}

	d, err := m.DecideBid("u1", "room1", 130, BidOptions{})
	if !errors.Is(err, ErrSelfOutbid) {
		t.Fatalf("err = %v, want ErrSelfOutbid", err)
	}
	if d.Place != nil || d.Update != nil {
		t.Fatalf("decision = %+v, want no emission", d)
	}
}

func TestReclaimLeadWithAutobid(t *testing.T) {
	m := NewMachine()
	a := runningAuction("a1", events.Bid{Bidder: "other", Amount: 120, Timestamp: 1})
	if err := m.Adopt(a, 1_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}

	d, err := m.DecideBid("u1", "room1", 0, BidOptions{Autobid: true, AutobidAmount: 200})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Place == nil {
		t.Fatal("expected a place-bid emission")
	}
	if d.Place.Amount != 125 {
		t.Errorf("amount = %v, want newbaseprice 125", d.Place.Amount)
	}
	if !d.Place.Autobid || d.Place.AutobidAmount != 200 {
		t.Errorf("autobid = %v/%v, want true/200", d.Place.Autobid, d.Place.AutobidAmount)
	}
	if d.Place.IncreaseBidBy != 5 || d.Place.Auction != "a1" || d.Place.RoomID != "room1" {
		t.Errorf("payload fields wrong: %+v", d.Place)
	}
}

func TestRaiseCeilingWhileWinningEmitsUpdateOnly(t *testing.T) {
	m := NewMachine()
	a := runningAuction("a1", events.Bid{Bidder: "u1", Amount: 50, Autobid: true, AutobidAmount: 100, Timestamp: 1})
	if err := m.Adopt(a, 1_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}

	d, err := m.DecideBid("u1", "room1", 0, BidOptions{Autobid: true, AutobidAmount: 150})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Place != nil {
		t.Fatalf("place-bid emitted while winning: %+v", d.Place)
	}
	if d.Update == nil || d.Update.AutobidAmount != 150 {
		t.Fatalf("update = %+v, want autobidamount 150", d.Update)
	}
}

func TestCustomBidFlagInherited(t *testing.T) {
	m := NewMachine()
	a := runningAuction("a1",
		events.Bid{Bidder: "u1", Amount: 100, CustomBid: true, AutobidAmount: 100, Timestamp: 1},
		events.Bid{Bidder: "other", Amount: 110, Timestamp: 2},
	)
	if err := m.Adopt(a, 1_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}

	// u1 raises without saying custom_bid; it sticks from the prior bid.
	d, err := m.DecideBid("u1", "room1", 115, BidOptions{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Place == nil || !d.Place.CustomBid {
		t.Fatalf("custom_bid not inherited: %+v", d.Place)
	}
}

func TestFirstBidDefaultsAutobidAmountToAmount(t *testing.T) {
	m := NewMachine()
	if err := m.Adopt(runningAuction("a1"), 1_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}

	d, err := m.DecideBid("u1", "room1", 105, BidOptions{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Place.AutobidAmount != 105 {
		t.Fatalf("autobidamount = %v, want bid amount 105", d.Place.AutobidAmount)
	}
}

func TestWinnerAnnouncedAtMostOncePerAuction(t *testing.T) {
	m := NewMachine()
	a := runningAuction("a1", events.Bid{Bidder: "u1", Amount: 120, Timestamp: 1})
	if err := m.Adopt(a, 1_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}

	// Local expiry announces first.
	if _, expired := m.Tick(1_060_000); !expired {
		t.Fatal("expected expiry")
	}
	if _, first := m.AnnounceWinner(); !first {
		t.Fatal("first announcement should fire")
	}

	// Late server auction-ended for the same id must not announce again.
	ended := runningAuction("a1", events.Bid{Bidder: "u1", Amount: 120, Timestamp: 1})
	ended.Ended = true
	m.ApplyUpdate(ended, 1_061_000)
	if _, first := m.AnnounceWinner(); first {
		t.Fatal("second announcement for the same auction id")
	}
}

func TestApplyUpdateIgnoresDifferentAuctionID(t *testing.T) {
	m := NewMachine()
	if err := m.Adopt(runningAuction("a1"), 1_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}

	other := runningAuction("a2", events.Bid{Bidder: "x", Amount: 999, Timestamp: 1})
	m.ApplyUpdate(other, 1_001_000)
	if len(m.Current().Bids) != 0 || m.Current().ID != "a1" {
		t.Fatalf("update for foreign id mutated current auction: %+v", m.Current())
	}
}

func TestRerunPrefillsFromEndedAuction(t *testing.T) {
	m := NewMachine()
	a := runningAuction("a1")
	a.Sudden = true
	if err := m.Adopt(a, 1_000_000); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	m.Tick(2_000_000)

	next := m.Rerun()
	if next == nil {
		t.Fatal("expected a rerun config")
	}
	if next.ID != "" || next.Product.ID != "p1" || next.BasePrice != 100 ||
		next.Duration != 60 || !next.Sudden || next.IncreaseBidBy != 5 {
		t.Fatalf("rerun config = %+v", next)
	}
	if m.State() != StateIdle {
		t.Fatalf("state after rerun = %v, want idle", m.State())
	}
}

func TestBidWithNoRunningAuctionFails(t *testing.T) {
	m := NewMachine()
	if _, err := m.DecideBid("u1", "room1", 10, BidOptions{}); !errors.Is(err, ErrNoAuction) {
		t.Fatalf("err = %v, want ErrNoAuction", err)
	}
}
