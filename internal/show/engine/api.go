package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/clients/showapi"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/auction"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/giveaway"
	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/socket"
)

// ErrNoSession means an action arrived before a show was joined.
var ErrNoSession = errors.New("no active show session")

// The public API below is safe to call from any goroutine: every method
// funnels its work onto the engine loop via do().

// SetProfile installs the viewer profile used for giveaway eligibility.
func (e *Engine) SetProfile(p *showapi.UserProfile) {
	_ = e.do(func() error {
		e.profile = p
		return nil
	})
}

// JoinShow resets state, adopts the room, joins it on the socket and kicks
// off the first snapshot fetch. The room is committed only once the socket
// join succeeds, so a retry after a dial-time failure repeats the full join,
// initial snapshot included.
func (e *Engine) JoinShow(ctx context.Context, roomID string) error {
	return e.do(func() error { return e.joinShow(ctx, roomID) })
}

func (e *Engine) joinShow(ctx context.Context, roomID string) error {
	if e.session.RoomID == roomID {
		// Idempotent: the socket layer suppresses the duplicate emit.
		return e.sock.JoinRoom(roomID)
	}
	if e.session.RoomID != "" {
		if err := e.sock.LeaveRoom(e.session.RoomID); err != nil && !errors.Is(err, socket.ErrNotConnected) {
			log.Warn().Err(err).Msg("leave previous room failed")
		}
	}
	e.reset()
	if err := e.sock.JoinRoom(roomID); err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}
	e.session.RoomID = roomID
	e.fetchSnapshotAsync(ctx, roomID)
	return nil
}

// SwitchShow is the "rally" path: same as JoinShow but named for intent.
func (e *Engine) SwitchShow(ctx context.Context, roomID string) error {
	return e.JoinShow(ctx, roomID)
}

// LeaveShow leaves the current room and clears all state.
func (e *Engine) LeaveShow() error {
	return e.do(func() error {
		if e.session.RoomID == "" {
			return nil
		}
		err := e.sock.LeaveRoom(e.session.RoomID)
		e.reset()
		return err
	})
}

// Session returns a copy of the current session.
func (e *Engine) Session() Session {
	var s Session
	_ = e.do(func() error {
		s = e.session
		return nil
	})
	return s
}

// ViewerCount returns the roster size.
func (e *Engine) ViewerCount() int {
	var n int
	_ = e.do(func() error {
		n = len(e.roster)
		return nil
	})
	return n
}

// PlaceBid places a quick or custom bid at exactly the given amount.
func (e *Engine) PlaceBid(amount float64, custom bool) error {
	return e.do(func() error {
		return e.placeBid(amount, auction.BidOptions{CustomBid: custom, CustomBidSet: custom})
	})
}

// EnableAutobid turns on proxy bidding up to ceiling. Losing, this reclaims
// the lead at the server's next minimum; winning, it only raises the stored
// ceiling.
func (e *Engine) EnableAutobid(ceiling float64) error {
	return e.do(func() error {
		return e.placeBid(0, auction.BidOptions{Autobid: true, AutobidAmount: ceiling})
	})
}

func (e *Engine) placeBid(amount float64, opts auction.BidOptions) error {
	if e.session.RoomID == "" {
		return ErrNoSession
	}
	id := e.identity()
	decision, err := e.auction.DecideBid(id.UserID, e.session.RoomID, amount, opts)
	if err != nil {
		if errors.Is(err, auction.ErrSelfOutbid) {
			log.Debug().Msg("bid suppressed: already leading")
		}
		return err
	}
	switch {
	case decision.Place != nil:
		return e.sock.Emit(events.EventPlaceBid, e.session.RoomID, decision.Place)
	case decision.Update != nil:
		return e.sock.Emit(events.EventUpdateBid, e.session.RoomID, decision.Update)
	}
	return nil
}

// PlacePrebid registers a bid for a product before its auction starts.
func (e *Engine) PlacePrebid(productID string, amount float64) error {
	return e.do(func() error {
		if e.session.RoomID == "" {
			return ErrNoSession
		}
		id := e.identity()
		return e.sock.Emit(events.EventPlacePrebid, e.session.RoomID, events.PlacePrebid{
			ProductID: productID,
			User:      id.UserID,
			Amount:    amount,
			Room:      e.session.RoomID,
		})
	})
}

// JoinGiveaway checks eligibility locally and emits join-giveaway on success.
// Rejections (no address, must follow, already entered) surface as sentinel
// errors before any socket traffic.
func (e *Engine) JoinGiveaway() error {
	return e.do(func() error {
		if e.session.RoomID == "" {
			return ErrNoSession
		}
		id := e.identity()
		entrant := giveaway.Entrant{UserID: id.UserID}
		if e.profile != nil {
			entrant.HasAddress = e.profile.HasAddress()
			entrant.FollowsHost = e.profile.Follows(e.session.HostID)
		}
		payload, err := e.giveaway.Join(entrant, e.session.RoomID)
		if err != nil {
			return err
		}
		return e.sock.Emit(events.EventJoinGiveaway, e.session.RoomID, payload)
	})
}

// DrawGiveaway is the host's "draw now" action.
func (e *Engine) DrawGiveaway() error {
	return e.do(func() error {
		if e.session.RoomID == "" {
			return ErrNoSession
		}
		cur := e.giveaway.Current()
		if cur == nil {
			return giveaway.ErrNoGiveaway
		}
		id := e.identity()
		return e.sock.Emit(events.EventDrawGiveaway, e.session.RoomID, events.GiveawayAction{
			GiveawayID: cur.ID,
			ShowID:     e.session.RoomID,
			UserID:     id.UserID,
		})
	})
}

// BuyFlashSale gates a discounted purchase on the sale still running with
// stock left. The order itself is placed server-side by the caller.
func (e *Engine) BuyFlashSale() error {
	return e.do(func() error {
		return e.flash.CheckPurchase()
	})
}

// StartAuction is a host action opening an auction in the room.
func (e *Engine) StartAuction(a events.Auction) error {
	return e.do(func() error {
		if e.session.RoomID == "" {
			return ErrNoSession
		}
		return e.sock.Emit(events.EventStartAuction, e.session.RoomID, events.StartAuction{
			RoomID:        e.session.RoomID,
			Auction:       a,
			IncreaseBidBy: a.IncreaseBidBy,
		})
	})
}

// RerunAuction returns a start-auction template pre-filled from the last
// ended auction, or nil when there is none.
func (e *Engine) RerunAuction() *events.Auction {
	var a *events.Auction
	_ = e.do(func() error {
		a = e.auction.Rerun()
		return nil
	})
	return a
}

// StartFlashSale is a host action opening a discounted window.
func (e *Engine) StartFlashSale(productID string, salePrice float64, durationSec int) error {
	return e.do(func() error {
		if e.session.RoomID == "" {
			return ErrNoSession
		}
		return e.sock.Emit(events.EventStartFlashSale, e.session.RoomID, events.FlashSaleAction{
			ProductID: productID,
			ShowID:    e.session.RoomID,
			SalePrice: salePrice,
			Duration:  durationSec,
		})
	})
}

// EndFlashSale is a host action closing the current sale early.
func (e *Engine) EndFlashSale(productID string) error {
	return e.do(func() error {
		if e.session.RoomID == "" {
			return ErrNoSession
		}
		return e.sock.Emit(events.EventEndFlashSale, e.session.RoomID, events.FlashSaleAction{
			ProductID: productID,
			ShowID:    e.session.RoomID,
		})
	})
}

// PinProduct is a host action pinning or unpinning a product.
func (e *Engine) PinProduct(p *events.Product, pinned bool) error {
	return e.do(func() error {
		if e.session.RoomID == "" {
			return ErrNoSession
		}
		return e.sock.Emit(events.EventPinProduct, e.session.RoomID, events.PinProduct{
			Pinned:  pinned,
			Product: p,
			Tokshow: e.session.RoomID,
		})
	})
}
