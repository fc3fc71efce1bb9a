package auction

import (
	"github.com/rs/zerolog/log"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
)

// BidOptions carries the caller's intent for a bid action.
type BidOptions struct {
	// Autobid requests proxy bidding up to AutobidAmount.
	Autobid       bool
	AutobidAmount float64

	// CustomBid marks a manually typed amount. Only honored when
	// CustomBidSet is true; otherwise the flag is inherited from the
	// bidder's prior bid in this auction.
	CustomBid    bool
	CustomBidSet bool
}

// Decision is the outcome of a bid action: at most one of Place or Update is
// set. Both nil means the action was suppressed. The engine owns the actual
// socket emission so the machine stays side-effect free.
type Decision struct {
	Place  *events.PlaceBid
	Update *events.UpdateBid
}

// DecideBid runs the bid placement protocol for the given user and intended
// amount against the current auction:
//
//   - leading + raising the proxy ceiling: emit update-bid only, no new bid
//   - leading otherwise: suppressed (ErrSelfOutbid)
//   - losing + autobid: reclaim the lead at the server's newbaseprice with
//     the requested ceiling
//   - losing otherwise: bid exactly the requested amount
func (m *Machine) DecideBid(userID string, roomID string, amount float64, opts BidOptions) (Decision, error) {
	if m.state != StateRunning || m.current == nil {
		return Decision{}, ErrNoAuction
	}
	a := m.current

	leader := m.Leader()
	if leader != nil && leader.Bidder == userID {
		if opts.Autobid && opts.AutobidAmount > leader.AutobidAmount {
			log.Debug().
				Str("auction_id", a.ID).
				Float64("ceiling", opts.AutobidAmount).
				Msg("raising proxy ceiling while leading")
			return Decision{Update: &events.UpdateBid{
				User:          userID,
				Auction:       a.ID,
				AutobidAmount: opts.AutobidAmount,
				RoomID:        roomID,
			}}, nil
		}
		return Decision{}, ErrSelfOutbid
	}

	bidAmount := amount
	if opts.Autobid {
		// Reclaim the lead at the server-computed next minimum.
		bidAmount = a.NewBasePrice
	}

	prior := m.priorBid(userID)

	customBid := opts.CustomBid
	if !opts.CustomBidSet && prior != nil {
		customBid = prior.CustomBid
	}

	autobidAmount := opts.AutobidAmount
	if !opts.Autobid {
		if prior != nil {
			autobidAmount = prior.AutobidAmount
		} else {
			autobidAmount = bidAmount
		}
	}

	return Decision{Place: &events.PlaceBid{
		User:          userID,
		Amount:        bidAmount,
		IncreaseBidBy: a.IncreaseBidBy,
		Auction:       a.ID,
		Prebid:        false,
		Autobid:       opts.Autobid,
		AutobidAmount: autobidAmount,
		CustomBid:     customBid,
		RoomID:        roomID,
	}}, nil
}

// priorBid returns the user's most recent bid in the current auction, nil if
// they have not bid yet.
func (m *Machine) priorBid(userID string) *events.Bid {
	bids := m.current.Bids
	for i := len(bids) - 1; i >= 0; i-- {
		if bids[i].Bidder == userID {
			return &bids[i]
		}
	}
	return nil
}
