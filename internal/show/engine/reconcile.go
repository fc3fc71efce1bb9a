package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/clients/showapi"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/flashsale"
)

// applySnapshot merges a REST snapshot into live state without regressing
// past fresher socket-driven updates. There is no sequence number on the
// wire, so the ordering conflict between a slow snapshot fetch and a socket
// event is resolved by one rule, applied per entity: a live, not-ended entity
// with a different id than the snapshot's is assumed fresher and kept.
func (e *Engine) applySnapshot(snap *showapi.ShowSnapshot) {
	if snap.ServerTime > 0 {
		e.clk.UpdateFromServerTime(snap.ServerTime, "rest")
	}
	now := e.clk.NowMillis()

	e.session.HostID = snap.HostID
	e.session.Started = snap.Started
	e.session.Ended = snap.Ended

	e.reconcileAuction(snap, now)
	e.reconcileGiveaway(snap, now)
	e.reconcilePinned(snap, now)

	// The roster is owned by join/leave events; the snapshot only seeds it
	// when nothing has been observed yet.
	if len(e.roster) == 0 && len(snap.Viewers) > 0 {
		for _, v := range snap.Viewers {
			if v.UserID != "" {
				e.roster[v.UserID] = v
			}
		}
		e.publish(Change{Event: ChangeRoster, RoomID: e.session.RoomID, Data: len(e.roster)})
	}
}

func (e *Engine) reconcileAuction(snap *showapi.ShowSnapshot, now int64) {
	proposed := snap.ActiveAuction
	if !proposed.Valid() {
		// Empty placeholders never overwrite a valid in-memory auction.
		return
	}

	if live := e.auction.Current(); live != nil && live.ID != proposed.ID && !live.Ended {
		log.Debug().
			Str("live_id", live.ID).
			Str("snapshot_id", proposed.ID).
			Msg("keeping live auction over snapshot")
		return
	}

	if live := e.auction.Current(); live != nil && live.ID == proposed.ID && live.Ended && !proposed.Ended {
		// We already saw this auction end; a snapshot that predates the
		// ending must not resurrect it.
		return
	}

	if proposed.ServerTime > 0 {
		// Auctions embed their own server timestamp; it may be fresher than
		// the snapshot's top-level one.
		e.clk.UpdateFromServerTime(proposed.ServerTime, "rest")
		now = e.clk.NowMillis()
	}

	if err := e.auction.Adopt(proposed, now); err != nil {
		log.Warn().Err(err).Str("auction_id", proposed.ID).Msg("snapshot auction rejected")
		return
	}
	e.publish(Change{Event: ChangeAuction, RoomID: e.session.RoomID, Data: e.auction.Current()})
	if e.auction.Current().Ended {
		// Adopted in ended state: still surface the final winner, once.
		e.announceAuctionWinner()
	}
}

func (e *Engine) reconcileGiveaway(snap *showapi.ShowSnapshot, now int64) {
	proposed := snap.Giveaway
	if proposed == nil || proposed.ID == "" {
		return
	}

	if live := e.giveaway.Current(); live != nil && live.ID != proposed.ID && !live.Ended {
		log.Debug().
			Str("live_id", live.ID).
			Str("snapshot_id", proposed.ID).
			Msg("keeping live giveaway over snapshot")
		return
	}

	if err := e.giveaway.Adopt(proposed, snap.HostID, now); err != nil {
		log.Warn().Err(err).Msg("snapshot giveaway rejected")
		return
	}
	e.publish(Change{Event: ChangeGiveaway, RoomID: e.session.RoomID, Data: e.giveaway.Current()})
	if e.giveaway.Current().Ended {
		e.announceGiveawayWinner()
	}
}

func (e *Engine) reconcilePinned(snap *showapi.ShowSnapshot, now int64) {
	proposed := snap.Pinned
	if proposed == nil || proposed.ID == "" {
		return
	}

	if sale := e.flash.Current(); sale != nil && e.flash.State() == flashsale.StateRunning && sale.ProductID != proposed.ID {
		log.Debug().
			Str("live_product", sale.ProductID).
			Str("snapshot_product", proposed.ID).
			Msg("keeping live flash sale over snapshot")
		return
	}

	e.pinned = proposed
	if e.flash.State() != flashsale.StateRunning && e.flash.Restore(proposed, now) {
		e.publish(Change{Event: ChangeFlashSale, RoomID: e.session.RoomID, Data: e.flash.Current()})
	}
	e.publish(Change{Event: ChangePinned, RoomID: e.session.RoomID, Data: e.pinned})
}
