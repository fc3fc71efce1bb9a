package events

import "encoding/json"

// FlashSaleEvent is the inbound payload for flash-sale-started and
// flash-sale-updated.
type FlashSaleEvent struct {
	ProductID     string  `json:"productId"`
	StartedAt     int64   `json:"startedAt"`
	Duration      int     `json:"duration"`
	DiscountType  string  `json:"discountType"`
	DiscountValue float64 `json:"discountValue"`
	QuantityLeft  int     `json:"quantityLeft"`
	ServerTime    int64   `json:"serverTime"`
}

func (f *FlashSaleEvent) UnmarshalJSON(data []byte) error {
	var wire struct {
		ProductID     FlexID  `json:"productId"`
		Product       FlexID  `json:"product"`
		StartedAt     Millis  `json:"startedAt"`
		Duration      int     `json:"duration"`
		DiscountType  string  `json:"discountType"`
		DiscountValue float64 `json:"discountValue"`
		QuantityLeft  *int    `json:"quantityLeft"`
		QuantityAlias *int    `json:"quantity_left"`
		ServerTime    Millis  `json:"serverTime"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	f.ProductID = wire.ProductID.String()
	if f.ProductID == "" {
		f.ProductID = wire.Product.String()
	}
	f.StartedAt = int64(wire.StartedAt)
	f.Duration = wire.Duration
	f.DiscountType = wire.DiscountType
	f.DiscountValue = wire.DiscountValue
	switch {
	case wire.QuantityLeft != nil:
		f.QuantityLeft = *wire.QuantityLeft
	case wire.QuantityAlias != nil:
		f.QuantityLeft = *wire.QuantityAlias
	}
	f.ServerTime = int64(wire.ServerTime)
	return nil
}

// PinEvent is the inbound payload for product-pinned.
type PinEvent struct {
	Pinned  bool     `json:"pinned"`
	Product *Product `json:"product"`
}
