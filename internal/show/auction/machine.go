// Package auction implements the client-side bidding state machine: adopting
// auctions from socket events or snapshots, the countdown, the bid placement
// protocol with proxy-bid semantics, and winner determination.
package auction

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
)

// State is the machine's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	default:
		return "idle"
	}
}

var (
	// ErrNoAuction means a bid action arrived with no running auction.
	ErrNoAuction = errors.New("no running auction")

	// ErrSelfOutbid means the caller already holds the leading bid. Bid
	// actions while leading are suppressed, not failed; callers treat this
	// as informational.
	ErrSelfOutbid = errors.New("already the highest bidder")

	// ErrInvalidAuction means the proposed auction failed validation or has
	// no resolvable end time.
	ErrInvalidAuction = errors.New("invalid auction")
)

// Machine holds the one current auction for a show and every piece of
// auction-local state. It is not safe for concurrent use; the engine confines
// all calls to its event loop.
type Machine struct {
	state     State
	current   *events.Auction
	endTime   int64
	remaining int

	// auction ids whose winner has already been announced, so expiry plus a
	// late server auction-ended event surface exactly one notification
	announced map[string]bool

	// settings of the last ended auction, kept for re-run
	lastEnded *events.Auction
}

func NewMachine() *Machine {
	return &Machine{announced: make(map[string]bool)}
}

func (m *Machine) State() State             { return m.state }
func (m *Machine) Current() *events.Auction { return m.current }
func (m *Machine) Remaining() int           { return m.remaining }
func (m *Machine) EndTime() int64           { return m.endTime }

// Adopt installs a new auction and starts its countdown. The auction must
// pass validity checks and carry a resolvable future deadline; an already
// expired auction is adopted directly in ended state so the final winner can
// still be rendered.
func (m *Machine) Adopt(a *events.Auction, nowMillis int64) error {
	if !a.Valid() {
		return ErrInvalidAuction
	}
	end := a.ResolveEndTime()
	if end <= 0 {
		log.Warn().Str("auction_id", a.ID).Msg("auction has no resolvable end time, not starting countdown")
		return ErrInvalidAuction
	}

	if a.Ended || nowMillis >= end {
		m.adoptEnded(a, end)
		return nil
	}

	m.current = a
	m.endTime = end
	m.state = StateRunning
	m.remaining = remainingSeconds(end, nowMillis)

	log.Info().
		Str("auction_id", a.ID).
		Int("remaining_sec", m.remaining).
		Bool("sudden", a.Sudden).
		Msg("auction adopted")
	return nil
}

func (m *Machine) adoptEnded(a *events.Auction, end int64) {
	a.Ended = true
	m.current = a
	m.endTime = end
	m.state = StateEnded
	m.remaining = 0
	m.lastEnded = a
	log.Info().Str("auction_id", a.ID).Msg("auction adopted in ended state")
}

// Tick recomputes the countdown from the deadline (never by decrement, so
// drift cannot accumulate). Returns the remaining seconds and whether this
// tick crossed zero. Local expiry is authoritative: the machine moves to
// ended without waiting for the server's auction-ended event.
func (m *Machine) Tick(nowMillis int64) (remaining int, expired bool) {
	if m.state != StateRunning {
		return m.remaining, false
	}
	m.remaining = remainingSeconds(m.endTime, nowMillis)
	if m.remaining > 0 {
		return m.remaining, false
	}
	m.state = StateEnded
	m.current.Ended = true
	m.lastEnded = m.current
	log.Info().Str("auction_id", m.current.ID).Msg("auction countdown reached zero")
	return 0, true
}

// ApplyUpdate merges a server-delivered auction update (a bid event or an
// auction-ended event) into the current auction. Updates for a different
// auction id replace the current one only through Adopt; here they are
// ignored so a stale event for a previous auction cannot corrupt the live one.
func (m *Machine) ApplyUpdate(a *events.Auction, nowMillis int64) {
	if m.current == nil || a == nil || a.ID != m.current.ID {
		if a != nil && m.current != nil {
			log.Debug().
				Str("current_id", m.current.ID).
				Str("update_id", a.ID).
				Msg("ignoring auction update for different id")
		}
		return
	}

	if a.Bids != nil {
		m.current.Bids = a.Bids
	}
	if a.NewBasePrice > 0 {
		m.current.NewBasePrice = a.NewBasePrice
	}
	if a.IncreaseBidBy > 0 {
		m.current.IncreaseBidBy = a.IncreaseBidBy
	}
	if end := a.ResolveEndTime(); end > 0 {
		m.endTime = end
		if m.state == StateRunning {
			m.remaining = remainingSeconds(end, nowMillis)
		}
	}
	if a.Ended {
		m.current.Ended = true
		m.state = StateEnded
		m.remaining = 0
		m.lastEnded = m.current
	}
}

// Leader returns the current leading bid: maximum amount, ties broken by
// earliest timestamp. Nil when there are no bids.
func (m *Machine) Leader() *events.Bid {
	if m.current == nil {
		return nil
	}
	return LeaderOf(m.current.Bids)
}

// LeaderOf computes the leading bid of an ordered bid list.
func LeaderOf(bids []events.Bid) *events.Bid {
	var leader *events.Bid
	for i := range bids {
		b := &bids[i]
		if leader == nil ||
			b.Amount > leader.Amount ||
			(b.Amount == leader.Amount && b.Timestamp < leader.Timestamp) {
			leader = b
		}
	}
	return leader
}

// AnnounceWinner returns the winner of the current (ended) auction and
// whether this is the first announcement for its id. Every caller path -
// local expiry, server auction-ended, snapshot adoption of an ended auction -
// funnels through here, which is what guarantees the at-most-once property.
func (m *Machine) AnnounceWinner() (*events.Bid, bool) {
	if m.current == nil || m.state != StateEnded {
		return nil, false
	}
	winner := m.Leader()
	if winner == nil {
		return nil, false
	}
	if m.announced[m.current.ID] {
		return winner, false
	}
	m.announced[m.current.ID] = true
	log.Info().
		Str("auction_id", m.current.ID).
		Str("winner", winner.Bidder).
		Float64("amount", winner.Amount).
		Msg("auction winner")
	return winner, true
}

// Rerun returns a fresh auction configuration pre-filled from the last ended
// auction (same product, base price, duration, increment, sudden flag) and
// moves the machine back to idle. It does not start anything; the host still
// has to emit start-auction.
func (m *Machine) Rerun() *events.Auction {
	src := m.lastEnded
	if src == nil {
		return nil
	}
	m.current = nil
	m.endTime = 0
	m.remaining = 0
	m.state = StateIdle
	return &events.Auction{
		Product:       src.Product,
		BasePrice:     src.BasePrice,
		NewBasePrice:  src.BasePrice,
		IncreaseBidBy: src.IncreaseBidBy,
		Duration:      src.Duration,
		Sudden:        src.Sudden,
		Bids:          []events.Bid{},
	}
}

// Reset clears everything including the announced set. Used on room switch.
func (m *Machine) Reset() {
	m.state = StateIdle
	m.current = nil
	m.endTime = 0
	m.remaining = 0
	m.lastEnded = nil
	m.announced = make(map[string]bool)
}

func remainingSeconds(endMillis, nowMillis int64) int {
	r := int((endMillis - nowMillis) / 1000)
	if r < 0 {
		return 0
	}
	return r
}
