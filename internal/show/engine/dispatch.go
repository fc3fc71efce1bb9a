package engine

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/flashsale"
)

// dispatch routes one inbound socket frame to the owning state machine. This
// switch is the only place inbound events touch state.
func (e *Engine) dispatch(env events.Envelope) {
	if env.RoomID != "" && e.session.RoomID != "" && env.RoomID != e.session.RoomID {
		log.Debug().
			Str("event", env.Event).
			Str("room_id", env.RoomID).
			Msg("dropping frame for another room")
		return
	}

	log.Debug().Str("event", env.Event).Msg("socket event")

	switch env.Event {
	case events.EventAuctionStarted:
		e.handleAuctionStarted(env.Data)
	case events.EventBidPlaced:
		e.handleBidPlaced(env.Data)
	case events.EventAuctionEnded:
		e.handleAuctionEnded(env.Data)

	case events.EventGiveawayStarted:
		e.handleGiveaway(env.Data, true)
	case events.EventGiveawayUpdated, events.EventGiveawayEnded:
		e.handleGiveaway(env.Data, false)

	case events.EventFlashSaleStarted:
		e.handleFlashSaleStarted(env.Data)
	case events.EventFlashSaleUpdated:
		e.handleFlashSaleUpdated(env.Data)
	case events.EventFlashSaleEnded:
		e.flash.End()
		e.publish(Change{Event: ChangeFlashSale, RoomID: e.session.RoomID, Data: e.flash.Current()})

	case events.EventProductPinned:
		e.handleProductPinned(env.Data)

	case events.EventViewerJoined, events.EventViewerLeft:
		e.handleViewer(env.Event, env.Data)

	case events.EventServerTime:
		var p events.ServerTimePayload
		if err := json.Unmarshal(env.Data, &p); err == nil {
			e.clk.UpdateFromServerTime(int64(p.ServerTime), "socket")
		}

	default:
		log.Debug().Str("event", env.Event).Msg("unhandled socket event")
	}
}

func (e *Engine) handleAuctionStarted(data json.RawMessage) {
	var a events.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		log.Warn().Err(err).Msg("undecodable auction-started payload")
		return
	}
	if a.ServerTime > 0 {
		e.clk.UpdateFromServerTime(a.ServerTime, "socket")
	}
	if err := e.auction.Adopt(&a, e.clk.NowMillis()); err != nil {
		log.Warn().Err(err).Str("auction_id", a.ID).Msg("rejected auction-started")
		return
	}
	e.publish(Change{Event: ChangeAuction, RoomID: e.session.RoomID, Data: e.auction.Current()})
}

func (e *Engine) handleBidPlaced(data json.RawMessage) {
	var a events.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		log.Warn().Err(err).Msg("undecodable bid payload")
		return
	}
	if a.ServerTime > 0 {
		e.clk.UpdateFromServerTime(a.ServerTime, "socket")
	}

	now := e.clk.NowMillis()
	cur := e.auction.Current()
	if a.Valid() && (cur == nil || (cur.Ended && cur.ID != a.ID)) {
		// Bid for an auction we never saw start, either because we joined
		// mid-auction before the first snapshot landed or because it is the
		// successor of one that already ended. Adopt it outright.
		if err := e.auction.Adopt(&a, now); err != nil {
			log.Warn().Err(err).Str("auction_id", a.ID).Msg("could not adopt auction from bid event")
			return
		}
	} else {
		e.auction.ApplyUpdate(&a, now)
	}
	e.publish(Change{Event: ChangeAuction, RoomID: e.session.RoomID, Data: e.auction.Current()})
	if a.Ended {
		e.announceAuctionWinner()
	}
}

func (e *Engine) handleAuctionEnded(data json.RawMessage) {
	var a events.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		log.Warn().Err(err).Msg("undecodable auction-ended payload")
		return
	}
	a.Ended = true
	if e.auction.Current() == nil && a.Valid() {
		if err := e.auction.Adopt(&a, e.clk.NowMillis()); err != nil {
			return
		}
	} else {
		e.auction.ApplyUpdate(&a, e.clk.NowMillis())
	}
	e.announceAuctionWinner()
}

func (e *Engine) handleGiveaway(data json.RawMessage, started bool) {
	var g events.Giveaway
	if err := json.Unmarshal(data, &g); err != nil {
		log.Warn().Err(err).Msg("undecodable giveaway payload")
		return
	}

	now := e.clk.NowMillis()
	cur := e.giveaway.Current()
	if started || cur == nil || cur.ID != g.ID {
		if err := e.giveaway.Adopt(&g, e.session.HostID, now); err != nil {
			log.Warn().Err(err).Msg("rejected giveaway event")
			return
		}
	} else {
		e.giveaway.ApplyUpdate(&g, now)
	}
	e.publish(Change{Event: ChangeGiveaway, RoomID: e.session.RoomID, Data: e.giveaway.Current()})
	if e.giveaway.Current() != nil && e.giveaway.Current().Ended {
		e.announceGiveawayWinner()
	}
}

func (e *Engine) handleFlashSaleStarted(data json.RawMessage) {
	var f events.FlashSaleEvent
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn().Err(err).Msg("undecodable flash-sale payload")
		return
	}
	if f.ServerTime > 0 {
		e.clk.UpdateFromServerTime(f.ServerTime, "socket")
	}
	err := e.flash.Start(flashsale.Sale{
		ProductID:     f.ProductID,
		StartedAt:     f.StartedAt,
		Duration:      f.Duration,
		DiscountType:  f.DiscountType,
		DiscountValue: f.DiscountValue,
		QuantityLeft:  f.QuantityLeft,
	}, e.clk.NowMillis())
	if err != nil {
		log.Warn().Err(err).Msg("rejected flash-sale-started")
		return
	}
	e.publish(Change{Event: ChangeFlashSale, RoomID: e.session.RoomID, Data: e.flash.Current()})
}

func (e *Engine) handleFlashSaleUpdated(data json.RawMessage) {
	var f events.FlashSaleEvent
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn().Err(err).Msg("undecodable flash-sale payload")
		return
	}
	e.flash.ApplyQuantity(f.QuantityLeft)
	e.publish(Change{Event: ChangeFlashSale, RoomID: e.session.RoomID, Data: e.flash.Current()})
}

func (e *Engine) handleProductPinned(data json.RawMessage) {
	var p events.PinEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Msg("undecodable pin payload")
		return
	}
	if !p.Pinned {
		e.pinned = nil
	} else {
		e.pinned = p.Product
		if e.flash.State() != flashsale.StateRunning {
			e.flash.Restore(p.Product, e.clk.NowMillis())
		}
	}
	e.publish(Change{Event: ChangePinned, RoomID: e.session.RoomID, Data: e.pinned})
}

func (e *Engine) handleViewer(event string, data json.RawMessage) {
	var v events.Viewer
	if err := json.Unmarshal(data, &v); err != nil || v.UserID == "" {
		return
	}
	if event == events.EventViewerJoined {
		e.roster[v.UserID] = v
	} else {
		delete(e.roster, v.UserID)
	}
	e.publish(Change{Event: ChangeRoster, RoomID: e.session.RoomID, Data: len(e.roster)})
}
