package events

// Outbound payloads. Field names follow the server contract, which mixes
// naming styles; they are reproduced verbatim here rather than cleaned up so
// the emitted frames match what the server expects.

// RoomIdentity is carried by join-room and leave-room.
type RoomIdentity struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// PlaceBid is emitted for every immediate bid.
type PlaceBid struct {
	User          string  `json:"user"`
	Amount        float64 `json:"amount"`
	IncreaseBidBy float64 `json:"increaseBidBy"`
	Auction       string  `json:"auction"`
	Prebid        bool    `json:"prebid"`
	Autobid       bool    `json:"autobid"`
	AutobidAmount float64 `json:"autobidamount"`
	CustomBid     bool    `json:"custom_bid"`
	RoomID        string  `json:"roomId"`
}

// UpdateBid raises the proxy ceiling of an existing leading bid without
// placing a new one.
type UpdateBid struct {
	User          string  `json:"user"`
	Auction       string  `json:"auction"`
	AutobidAmount float64 `json:"autobidamount"`
	RoomID        string  `json:"roomId"`
}

// PlacePrebid registers a bid before the auction starts.
type PlacePrebid struct {
	ProductID string  `json:"productId"`
	User      string  `json:"user"`
	Amount    float64 `json:"amount"`
	Room      string  `json:"room"`
}

// StartAuction is a host action opening a new auction in the room.
type StartAuction struct {
	RoomID        string  `json:"roomId"`
	Auction       Auction `json:"auction"`
	IncreaseBidBy float64 `json:"increaseBidBy"`
}

// GiveawayAction is carried by join-giveaway and draw-giveaway.
type GiveawayAction struct {
	GiveawayID string `json:"giveawayId"`
	ShowID     string `json:"showId"`
	UserID     string `json:"userId"`
}

// FlashSaleAction is carried by start-flash-sale and end-flash-sale.
type FlashSaleAction struct {
	ProductID string  `json:"productId"`
	ShowID    string  `json:"showId"`
	SalePrice float64 `json:"salePrice"`
	Duration  int     `json:"duration"`
}

// PinProduct is a host action pinning or unpinning a product.
type PinProduct struct {
	Pinned  bool     `json:"pinned"`
	Product *Product `json:"product"`
	Tokshow string   `json:"tokshow"`
}
