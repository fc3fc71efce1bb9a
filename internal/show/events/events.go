// Package events defines the wire contract for the live-show socket channel:
// the frame envelope, the canonical entity shapes, and the outbound payloads.
//
// Server payloads are messy - ids arrive as "_id" or "id", bidders as "bidder"
// or "user", epoch fields as numbers or numeric strings. Everything is
// normalized into one canonical shape here, at the decode boundary, so the
// state machines never branch on source-field naming.
package events

import (
	"encoding/json"
	"strconv"
	"time"
)

// Envelope is the frame shape for every socket message, both directions.
type Envelope struct {
	Event  string          `json:"event"`
	RoomID string          `json:"roomId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventAuctionStarted   = "auction-started"
	EventBidPlaced        = "bid-placed"
	EventAuctionEnded     = "auction-ended"
	EventGiveawayStarted  = "giveaway-started"
	EventGiveawayUpdated  = "giveaway-updated"
	EventGiveawayEnded    = "giveaway-ended"
	EventFlashSaleStarted = "flash-sale-started"
	EventFlashSaleUpdated = "flash-sale-updated"
	EventFlashSaleEnded   = "flash-sale-ended"
	EventProductPinned    = "product-pinned"
	EventViewerJoined     = "viewer-joined"
	EventViewerLeft       = "viewer-left"
	EventServerTime       = "server-time"
)

// Outbound event names.
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventPlaceBid       = "place-bid"
	EventUpdateBid      = "update-bid"
	EventPlacePrebid    = "place-prebid"
	EventStartAuction   = "start-auction"
	EventJoinGiveaway   = "join-giveaway"
	EventDrawGiveaway   = "draw-giveaway"
	EventStartFlashSale = "start-flash-sale"
	EventEndFlashSale   = "end-flash-sale"
	EventPinProduct     = "pin-product"
)

// FlexID decodes a string, a JSON number, or an object carrying "_id"/"id"
// into a plain string id.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
	case '{':
		var obj struct {
			MID FlexID `json:"_id"`
			ID  FlexID `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.MID != "" {
			*f = obj.MID
		} else {
			*f = obj.ID
		}
	case 'n': // null
		*f = ""
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = FlexID(n.String())
	}
	return nil
}

func (f FlexID) String() string { return string(f) }

// Millis decodes an epoch-milliseconds value that may arrive as a JSON
// number, a numeric string, or null.
type Millis int64

func (m *Millis) UnmarshalJSON(data []byte) error {
	switch data[0] {
	case 'n':
		*m = 0
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// Not numeric; tolerate RFC3339 from older server builds.
			t, terr := time.Parse(time.RFC3339, s)
			if terr != nil {
				return err
			}
			*m = Millis(t.UnixMilli())
			return nil
		}
		*m = Millis(v)
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*m = Millis(int64(f))
		return nil
	}
}

// Bid is one bid in an auction's ordered bid list.
type Bid struct {
	Bidder        string  `json:"user"`
	Amount        float64 `json:"amount"`
	Autobid       bool    `json:"autobid"`
	AutobidAmount float64 `json:"autobidamount"`
	CustomBid     bool    `json:"custom_bid"`
	Timestamp     int64   `json:"timestamp"`
}

func (b *Bid) UnmarshalJSON(data []byte) error {
	var wire struct {
		User          FlexID  `json:"user"`
		Bidder        FlexID  `json:"bidder"`
		Amount        float64 `json:"amount"`
		Autobid       bool    `json:"autobid"`
		AutobidAmount float64 `json:"autobidamount"`
		CustomBid     bool    `json:"custom_bid"`
		Timestamp     Millis  `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	b.Bidder = wire.User.String()
	if b.Bidder == "" {
		b.Bidder = wire.Bidder.String()
	}
	b.Amount = wire.Amount
	b.Autobid = wire.Autobid
	b.AutobidAmount = wire.AutobidAmount
	b.CustomBid = wire.CustomBid
	b.Timestamp = int64(wire.Timestamp)
	return nil
}

// Product is the subset of a marketplace product the engine cares about.
type Product struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	Quantity         int     `json:"quantity"`
	FlashSale        bool    `json:"flash_sale"`
	FlashSaleEnded   bool    `json:"flash_sale_ended"`
	FlashSaleEndTime int64   `json:"flash_sale_end_time"`
	DiscountType     string  `json:"discount_type"`
	DiscountValue    float64 `json:"discount_value"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var wire struct {
		MID              FlexID  `json:"_id"`
		ID               FlexID  `json:"id"`
		Name             string  `json:"name"`
		Price            float64 `json:"price"`
		Quantity         int     `json:"quantity"`
		FlashSale        bool    `json:"flash_sale"`
		FlashSaleEnded   bool    `json:"flash_sale_ended"`
		FlashSaleEndTime Millis  `json:"flash_sale_end_time"`
		DiscountType     string  `json:"discount_type"`
		DiscountValue    float64 `json:"discount_value"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.ID = firstID(wire.MID, wire.ID)
	p.Name = wire.Name
	p.Price = wire.Price
	p.Quantity = wire.Quantity
	p.FlashSale = wire.FlashSale
	p.FlashSaleEnded = wire.FlashSaleEnded
	p.FlashSaleEndTime = int64(wire.FlashSaleEndTime)
	p.DiscountType = wire.DiscountType
	p.DiscountValue = wire.DiscountValue
	return nil
}

// Auction is the canonical auction shape.
type Auction struct {
	ID            string   `json:"id"`
	Product       *Product `json:"product,omitempty"`
	BasePrice     float64  `json:"baseprice"`
	NewBasePrice  float64  `json:"newbaseprice"`
	IncreaseBidBy float64  `json:"increaseBidBy"`
	Duration      int      `json:"duration"`
	StartedTime   int64    `json:"startedTime"`
	EndTime       int64    `json:"endTime"`
	Sudden        bool     `json:"sudden"`
	Ended         bool     `json:"ended"`
	Bids          []Bid    `json:"bids"`
	ServerTime    int64    `json:"serverTime,omitempty"`
}

func (a *Auction) UnmarshalJSON(data []byte) error {
	var wire struct {
		MID           FlexID   `json:"_id"`
		ID            FlexID   `json:"id"`
		Product       *Product `json:"product"`
		BasePrice     float64  `json:"baseprice"`
		NewBasePrice  float64  `json:"newbaseprice"`
		IncreaseBidBy float64  `json:"increaseBidBy"`
		Duration      int      `json:"duration"`
		StartedTime   Millis   `json:"startedTime"`
		EndTime       Millis   `json:"endTime"`
		Sudden        bool     `json:"sudden"`
		Ended         bool     `json:"ended"`
		Bids          []Bid    `json:"bids"`
		ServerTime    Millis   `json:"serverTime"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	a.ID = firstID(wire.MID, wire.ID)
	a.Product = wire.Product
	a.BasePrice = wire.BasePrice
	a.NewBasePrice = wire.NewBasePrice
	a.IncreaseBidBy = wire.IncreaseBidBy
	a.Duration = wire.Duration
	a.StartedTime = int64(wire.StartedTime)
	a.EndTime = int64(wire.EndTime)
	a.Sudden = wire.Sudden
	a.Ended = wire.Ended
	a.Bids = wire.Bids
	a.ServerTime = int64(wire.ServerTime)
	return nil
}

// Valid reports whether this auction is a real auction rather than an empty
// placeholder: a non-empty id, an attached product, and a bids list (possibly
// empty, but present).
func (a *Auction) Valid() bool {
	return a != nil && a.ID != "" && a.Product != nil && a.Bids != nil
}

// ResolveEndTime returns the auction deadline in epoch millis, deriving it
// from startedTime + duration when the server omitted endTime. Returns 0 when
// no deadline is resolvable.
func (a *Auction) ResolveEndTime() int64 {
	if a.EndTime > 0 {
		return a.EndTime
	}
	if a.StartedTime > 0 && a.Duration > 0 {
		return a.StartedTime + int64(a.Duration)*1000
	}
	return 0
}

// Giveaway is the canonical giveaway shape.
type Giveaway struct {
	ID           string   `json:"id"`
	WhoCanEnter  string   `json:"whocanenter"`
	Participants []string `json:"participants"`
	StartedTime  int64    `json:"startedTime"`
	Duration     int      `json:"duration"`
	Ended        bool     `json:"ended"`
	Winner       string   `json:"winner,omitempty"`
}

func (g *Giveaway) UnmarshalJSON(data []byte) error {
	var wire struct {
		MID          FlexID   `json:"_id"`
		ID           FlexID   `json:"id"`
		WhoCanEnter  string   `json:"whocanenter"`
		Participants []FlexID `json:"participants"`
		StartedTime  Millis   `json:"startedTime"`
		Duration     int      `json:"duration"`
		Ended        bool     `json:"ended"`
		Winner       FlexID   `json:"winner"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	g.ID = firstID(wire.MID, wire.ID)
	g.WhoCanEnter = wire.WhoCanEnter
	g.Participants = g.Participants[:0]
	for _, p := range wire.Participants {
		if p != "" {
			g.Participants = append(g.Participants, p.String())
		}
	}
	g.StartedTime = int64(wire.StartedTime)
	g.Duration = wire.Duration
	g.Ended = wire.Ended
	g.Winner = wire.Winner.String()
	return nil
}

// EndTime returns the giveaway deadline in epoch millis, 0 if unresolvable.
func (g *Giveaway) EndTime() int64 {
	if g.StartedTime > 0 && g.Duration > 0 {
		return g.StartedTime + int64(g.Duration)*1000
	}
	return 0
}

// Viewer identifies one present viewer in a room.
type Viewer struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

func (v *Viewer) UnmarshalJSON(data []byte) error {
	var wire struct {
		UserID   FlexID `json:"userId"`
		MID      FlexID `json:"_id"`
		ID       FlexID `json:"id"`
		UserName string `json:"userName"`
		Name     string `json:"name"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	v.UserID = firstID(wire.UserID, wire.MID)
	if v.UserID == "" {
		v.UserID = wire.ID.String()
	}
	v.UserName = wire.UserName
	if v.UserName == "" {
		v.UserName = wire.Name
	}
	return nil
}

// ServerTimePayload carries a bare server clock reading.
type ServerTimePayload struct {
	ServerTime Millis `json:"serverTime"`
}

func firstID(a, b FlexID) string {
	if a != "" {
		return a.String()
	}
	return b.String()
}
