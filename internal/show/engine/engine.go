// Package engine is the event dispatch layer: the single writer of all
// show-local state. Socket frames, REST snapshots, countdown ticks and user
// intents all funnel into one run loop, which applies them to the auction,
// giveaway and flash-sale machines and publishes change notifications.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/clients/showapi"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/clock"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/auction"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/flashsale"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/giveaway"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/socket"
)

// ErrStopped means the engine loop has shut down.
var ErrStopped = errors.New("engine stopped")

// Config holds engine tunables.
type Config struct {
	// SnapshotInterval is how often the REST snapshot is refetched and
	// reconciled against live state.
	SnapshotInterval time.Duration
	ChangeBuffer     int
}

func DefaultConfig() Config {
	return Config{
		SnapshotInterval: 30 * time.Second,
		ChangeBuffer:     256,
	}
}

// Session identifies the one live room this engine is following.
type Session struct {
	RoomID  string
	HostID  string
	Started bool
	Ended   bool
}

// Change is one state-change notification on the Events feed.
type Change struct {
	Event  string
	RoomID string
	Data   any
}

// Change event names published on the feed.
const (
	ChangeAuction        = "auction"
	ChangeAuctionWinner  = "auction-winner"
	ChangeGiveaway       = "giveaway"
	ChangeGiveawayWinner = "giveaway-winner"
	ChangeFlashSale      = "flash-sale"
	ChangeCountdown      = "countdown"
	ChangeRoster         = "roster"
	ChangePinned         = "pinned"
)

// Countdown carries the per-second remaining values.
type Countdown struct {
	AuctionRemaining   int
	GiveawayRemaining  int
	FlashSaleRemaining int
}

// WinnerAnnouncement is the payload of auction-winner and giveaway-winner
// changes, surfaced at most once per auction/giveaway id.
type WinnerAnnouncement struct {
	ID     string
	Winner string
	Amount float64
}

// Engine owns a ShowSession and its five mutable entities. All mutation
// happens on the run goroutine; the public API funnels intents to it.
type Engine struct {
	cfg      Config
	clk      *clock.Sync
	wallclk  clockwork.Clock
	sock     *socket.Client
	api      *showapi.Client
	identity socket.IdentityFunc

	auction  *auction.Machine
	giveaway *giveaway.Machine
	flash    *flashsale.Machine

	session Session
	roster  map[string]events.Viewer
	pinned  *events.Product
	profile *showapi.UserProfile

	cmds    chan func()
	changes chan Change
	done    chan struct{}
}

// New wires an engine. sock may already be connected; the engine only reads
// its inbound channel and emits through it.
func New(cfg Config, clk *clock.Sync, wallclk clockwork.Clock, sock *socket.Client, api *showapi.Client, identity socket.IdentityFunc) *Engine {
	if wallclk == nil {
		wallclk = clockwork.NewRealClock()
	}
	return &Engine{
		cfg:      cfg,
		clk:      clk,
		wallclk:  wallclk,
		sock:     sock,
		api:      api,
		identity: identity,
		auction:  auction.NewMachine(),
		giveaway: giveaway.NewMachine(),
		flash:    flashsale.NewMachine(),
		roster:   make(map[string]events.Viewer),
		cmds:     make(chan func(), 64),
		changes:  make(chan Change, cfg.ChangeBuffer),
		done:     make(chan struct{}),
	}
}

// Events is the read-only change feed consumed by the UI and the relay.
func (e *Engine) Events() <-chan Change { return e.changes }

// Run drives the loop until ctx is cancelled. Everything that mutates state
// executes here, which is what makes the check-then-mutate sequences in the
// machines safe without further locking.
func (e *Engine) Run(ctx context.Context) {
	ticker := e.wallclk.NewTicker(time.Second)
	defer ticker.Stop()
	snapTicker := e.wallclk.NewTicker(e.cfg.SnapshotInterval)
	defer snapTicker.Stop()

	defer close(e.done)
	defer close(e.changes)

	log.Info().Msg("show engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("show engine shutting down")
			return

		case env, ok := <-e.sock.Inbound():
			if !ok {
				log.Info().Msg("socket closed, engine stopping")
				return
			}
			e.dispatch(env)

		case <-ticker.Chan():
			e.tick()

		case <-snapTicker.Chan():
			if e.session.RoomID != "" {
				e.fetchSnapshotAsync(ctx, e.session.RoomID)
			}

		case cmd := <-e.cmds:
			cmd()
		}
	}
}

// do runs fn on the engine loop and waits for its result.
func (e *Engine) do(fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case e.cmds <- func() { errCh <- fn() }:
	case <-e.done:
		return ErrStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-e.done:
		return ErrStopped
	}
}

// tick advances every countdown once, recomputing from deadlines with the
// server-adjusted clock.
func (e *Engine) tick() {
	now := e.clk.NowMillis()

	_, auctionExpired := e.auction.Tick(now)
	if auctionExpired {
		e.announceAuctionWinner()
	}

	_, giveawayExpired := e.giveaway.Tick(now)
	if giveawayExpired {
		e.announceGiveawayWinner()
	}

	_, saleExpired := e.flash.Tick(now)
	if saleExpired {
		e.publish(Change{Event: ChangeFlashSale, RoomID: e.session.RoomID, Data: e.flash.Current()})
	}

	if e.auction.State() == auction.StateRunning ||
		e.giveaway.State() == giveaway.StateRunning ||
		e.flash.State() == flashsale.StateRunning {
		e.publish(Change{Event: ChangeCountdown, RoomID: e.session.RoomID, Data: Countdown{
			AuctionRemaining:   e.auction.Remaining(),
			GiveawayRemaining:  e.giveaway.Remaining(),
			FlashSaleRemaining: e.flash.Remaining(),
		}})
	}
}

func (e *Engine) announceAuctionWinner() {
	winner, first := e.auction.AnnounceWinner()
	cur := e.auction.Current()
	e.publish(Change{Event: ChangeAuction, RoomID: e.session.RoomID, Data: cur})
	if first && winner != nil && cur != nil {
		e.publish(Change{Event: ChangeAuctionWinner, RoomID: e.session.RoomID, Data: WinnerAnnouncement{
			ID:     cur.ID,
			Winner: winner.Bidder,
			Amount: winner.Amount,
		}})
	}
}

func (e *Engine) announceGiveawayWinner() {
	winner, first := e.giveaway.AnnounceWinner()
	cur := e.giveaway.Current()
	e.publish(Change{Event: ChangeGiveaway, RoomID: e.session.RoomID, Data: cur})
	if first && cur != nil {
		e.publish(Change{Event: ChangeGiveawayWinner, RoomID: e.session.RoomID, Data: WinnerAnnouncement{
			ID:     cur.ID,
			Winner: winner,
		}})
	}
}

// publish never blocks the loop; a full feed drops the oldest semantics in
// favor of a logged drop.
func (e *Engine) publish(c Change) {
	select {
	case e.changes <- c:
	default:
		log.Warn().Str("change", c.Event).Msg("change feed full, dropping notification")
	}
}

// fetchSnapshotAsync fetches off-loop and delivers the result back onto it.
func (e *Engine) fetchSnapshotAsync(ctx context.Context, roomID string) {
	go func() {
		snap, err := e.api.GetShow(ctx, roomID)
		if err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("snapshot fetch failed")
			return
		}
		select {
		case e.cmds <- func() {
			// A rally may have happened while the fetch was in flight.
			if e.session.RoomID != roomID {
				log.Debug().Str("room_id", roomID).Msg("discarding snapshot for left room")
				return
			}
			e.applySnapshot(snap)
		}:
		case <-e.done:
		}
	}()
}

// reset clears all five entities, announce tracking and countdowns. Called
// before adopting a new room so shows can never cross-contaminate.
func (e *Engine) reset() {
	e.auction.Reset()
	e.giveaway.Reset()
	e.flash.Reset()
	e.roster = make(map[string]events.Viewer)
	e.pinned = nil
	e.session = Session{}
}
