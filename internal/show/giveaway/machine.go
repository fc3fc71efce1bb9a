// Package giveaway implements the giveaway state machine: entry eligibility,
// the join protocol, and the timed draw.
package giveaway

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
)

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

// WhoCanEnter values.
const (
	EnterAnyone    = "anyone"
	EnterFollowers = "followers"
)

var (
	// ErrNoGiveaway means a join arrived with no running giveaway.
	ErrNoGiveaway = errors.New("no running giveaway")

	// ErrNoShippingAddress means the entrant has no saved shipping address.
	ErrNoShippingAddress = errors.New("a shipping address is required to enter")

	// ErrAlreadyEntered means the entrant is already a participant.
	ErrAlreadyEntered = errors.New("already entered this giveaway")
)

// MustFollowError means the giveaway is followers-only and the entrant does
// not follow the host yet. It carries the host id so the caller can offer a
// follow-then-join action.
type MustFollowError struct {
	HostID string
}

func (e *MustFollowError) Error() string {
	return fmt.Sprintf("must follow host %s to enter", e.HostID)
}

// Entrant is the profile data eligibility checks run against.
type Entrant struct {
	UserID      string
	HasAddress  bool
	FollowsHost bool
}

// Machine holds the one current giveaway for a show. Not safe for concurrent
// use; the engine confines all calls to its event loop.
type Machine struct {
	state        State
	current      *events.Giveaway
	hostID       string
	endTime      int64
	remaining    int
	participants map[string]bool
	announced    map[string]bool
}

func NewMachine() *Machine {
	return &Machine{
		participants: make(map[string]bool),
		announced:    make(map[string]bool),
	}
}

func (m *Machine) State() State              { return m.state }
func (m *Machine) Current() *events.Giveaway { return m.current }
func (m *Machine) Remaining() int            { return m.remaining }

// Participants returns the number of distinct entrants.
func (m *Machine) Participants() int { return len(m.participants) }

// Adopt installs a giveaway. A giveaway with no resolvable deadline still
// runs (the host can draw manually); one already marked ended is adopted in
// ended state so the announced winner stays visible.
func (m *Machine) Adopt(g *events.Giveaway, hostID string, nowMillis int64) error {
	if g == nil || g.ID == "" {
		return errors.New("invalid giveaway")
	}

	m.current = g
	m.hostID = hostID
	m.endTime = g.EndTime()
	m.participants = make(map[string]bool, len(g.Participants))
	for _, p := range g.Participants {
		m.participants[p] = true
	}

	if g.Ended || (m.endTime > 0 && nowMillis >= m.endTime) {
		m.state = StateEnded
		m.remaining = 0
		log.Info().Str("giveaway_id", g.ID).Msg("giveaway adopted in ended state")
		return nil
	}

	m.state = StateRunning
	if m.endTime > 0 {
		m.remaining = remainingSeconds(m.endTime, nowMillis)
	}
	log.Info().
		Str("giveaway_id", g.ID).
		Str("whocanenter", g.WhoCanEnter).
		Int("participants", len(m.participants)).
		Msg("giveaway adopted")
	return nil
}

// CanEnter checks entry preconditions in order: shipping address, follower
// requirement, duplicate entry. The first failing check wins.
func (m *Machine) CanEnter(e Entrant) error {
	if m.state != StateRunning || m.current == nil {
		return ErrNoGiveaway
	}
	if !e.HasAddress {
		return ErrNoShippingAddress
	}
	if m.current.WhoCanEnter == EnterFollowers && !e.FollowsHost {
		return &MustFollowError{HostID: m.hostID}
	}
	if m.participants[e.UserID] {
		return ErrAlreadyEntered
	}
	return nil
}

// Join validates the entrant and, on success, returns the join-giveaway
// payload to emit while recording the entry locally. Rejections happen before
// any socket traffic.
func (m *Machine) Join(e Entrant, showID string) (*events.GiveawayAction, error) {
	if err := m.CanEnter(e); err != nil {
		return nil, err
	}
	m.participants[e.UserID] = true
	m.current.Participants = append(m.current.Participants, e.UserID)
	return &events.GiveawayAction{
		GiveawayID: m.current.ID,
		ShowID:     showID,
		UserID:     e.UserID,
	}, nil
}

// ApplyUpdate merges a server-delivered giveaway update for the current id.
func (m *Machine) ApplyUpdate(g *events.Giveaway, nowMillis int64) {
	if m.current == nil || g == nil || g.ID != m.current.ID {
		return
	}
	if g.Participants != nil {
		m.current.Participants = g.Participants
		m.participants = make(map[string]bool, len(g.Participants))
		for _, p := range g.Participants {
			m.participants[p] = true
		}
	}
	if g.Winner != "" {
		m.current.Winner = g.Winner
	}
	if g.Ended {
		m.current.Ended = true
		m.state = StateEnded
		m.remaining = 0
	}
}

// Tick recomputes the countdown from the deadline. Giveaways without a
// deadline never expire locally; the draw is host-triggered.
func (m *Machine) Tick(nowMillis int64) (remaining int, expired bool) {
	if m.state != StateRunning || m.endTime <= 0 {
		return m.remaining, false
	}
	m.remaining = remainingSeconds(m.endTime, nowMillis)
	if m.remaining > 0 {
		return m.remaining, false
	}
	m.state = StateEnded
	m.current.Ended = true
	log.Info().Str("giveaway_id", m.current.ID).Msg("giveaway countdown reached zero")
	return 0, true
}

// AnnounceWinner surfaces the server-selected winner at most once per
// giveaway id. Winner selection itself is server-owned; the client only
// renders the announced result.
func (m *Machine) AnnounceWinner() (string, bool) {
	if m.current == nil || m.state != StateEnded || m.current.Winner == "" {
		return "", false
	}
	if m.announced[m.current.ID] {
		return m.current.Winner, false
	}
	m.announced[m.current.ID] = true
	log.Info().
		Str("giveaway_id", m.current.ID).
		Str("winner", m.current.Winner).
		Msg("giveaway winner")
	return m.current.Winner, true
}

// Reset clears everything including the announced set. Used on room switch.
func (m *Machine) Reset() {
	m.state = StateIdle
	m.current = nil
	m.hostID = ""
	m.endTime = 0
	m.remaining = 0
	m.participants = make(map[string]bool)
	m.announced = make(map[string]bool)
}

func remainingSeconds(endMillis, nowMillis int64) int {
	r := int((endMillis - nowMillis) / 1000)
	if r < 0 {
		return 0
	}
	return r
}
