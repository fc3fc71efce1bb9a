// Package flashsale implements the time-boxed discounted-price window with
// quantity depletion.
package flashsale

import (
	"errors"

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

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

var (
	// ErrNoSale means there is no running flash sale.
	ErrNoSale = errors.New("no running flash sale")

	// ErrSoldOut means the sale quantity is depleted.
	ErrSoldOut = errors.New("flash sale sold out")
)

// Sale is the engine's view of one flash sale.
type Sale struct {
	ProductID     string
	StartedAt     int64
	Duration      int
	DiscountType  string
	DiscountValue float64
	QuantityLeft  int
	EndTime       int64
}

// Machine holds the one current flash sale for a show. Not safe for
// concurrent use; the engine confines all calls to its event loop.
type Machine struct {
	state     State
	current   *Sale
	remaining int
}

func NewMachine() *Machine {
	return &Machine{}
}

func (m *Machine) State() State   { return m.state }
func (m *Machine) Current() *Sale { return m.current }
func (m *Machine) Remaining() int { return m.remaining }

// Start begins a sale from an explicit flash-sale-started event.
func (m *Machine) Start(s Sale, nowMillis int64) error {
	if s.ProductID == "" {
		return errors.New("flash sale without product")
	}
	if s.EndTime <= 0 {
		if s.StartedAt <= 0 || s.Duration <= 0 {
			return errors.New("flash sale has no resolvable end time")
		}
		s.EndTime = s.StartedAt + int64(s.Duration)*1000
	}
	if nowMillis >= s.EndTime || s.QuantityLeft <= 0 {
		m.current = &s
		m.state = StateEnded
		m.remaining = 0
		return nil
	}
	m.current = &s
	m.state = StateRunning
	m.remaining = remainingSeconds(s.EndTime, nowMillis)
	log.Info().
		Str("product_id", s.ProductID).
		Int("remaining_sec", m.remaining).
		Int("quantity_left", s.QuantityLeft).
		Msg("flash sale running")
	return nil
}

// Restore reconstructs a running sale from a product snapshot, so a sale
// survives a full client reload: flash_sale set, future flash_sale_end_time,
// not flash_sale_ended.
func (m *Machine) Restore(p *events.Product, nowMillis int64) bool {
	if p == nil || !p.FlashSale || p.FlashSaleEnded {
		return false
	}
	if p.FlashSaleEndTime <= nowMillis {
		return false
	}
	err := m.Start(Sale{
		ProductID:     p.ID,
		DiscountType:  p.DiscountType,
		DiscountValue: p.DiscountValue,
		QuantityLeft:  p.Quantity,
		EndTime:       p.FlashSaleEndTime,
	}, nowMillis)
	if err != nil {
		log.Warn().Err(err).Str("product_id", p.ID).Msg("flash sale restore failed")
		return false
	}
	log.Info().Str("product_id", p.ID).Int("remaining_sec", m.remaining).Msg("flash sale restored from snapshot")
	return true
}

// ApplyQuantity records the server-reported remaining quantity. Quantity only
// ever decreases; a larger value is ignored as stale. Depletion ends the sale
// exactly like countdown expiry.
func (m *Machine) ApplyQuantity(quantityLeft int) {
	if m.current == nil {
		return
	}
	if quantityLeft >= m.current.QuantityLeft {
		return
	}
	m.current.QuantityLeft = quantityLeft
	if quantityLeft <= 0 && m.state == StateRunning {
		m.state = StateEnded
		m.remaining = 0
		log.Info().Str("product_id", m.current.ProductID).Msg("flash sale sold out")
	}
}

// End force-ends the sale (host action or server event).
func (m *Machine) End() {
	if m.current == nil {
		return
	}
	m.state = StateEnded
	m.remaining = 0
}

// Tick recomputes the countdown from the deadline.
func (m *Machine) Tick(nowMillis int64) (remaining int, expired bool) {
	if m.state != StateRunning {
		return m.remaining, false
	}
	m.remaining = remainingSeconds(m.current.EndTime, nowMillis)
	if m.remaining > 0 {
		return m.remaining, false
	}
	m.state = StateEnded
	log.Info().Str("product_id", m.current.ProductID).Msg("flash sale countdown reached zero")
	return 0, true
}

// CheckPurchase reports whether a discounted purchase is currently possible.
// The actual order placement is server-side; this is the local gate.
func (m *Machine) CheckPurchase() error {
	if m.state != StateRunning || m.current == nil {
		return ErrNoSale
	}
	if m.current.QuantityLeft <= 0 {
		return ErrSoldOut
	}
	return nil
}

// SalePrice computes the discounted price for a base price.
func (m *Machine) SalePrice(basePrice float64) float64 {
	if m.current == nil {
		return basePrice
	}
	switch m.current.DiscountType {
	case DiscountPercentage:
		return basePrice * (1 - m.current.DiscountValue/100)
	case DiscountFixed:
		p := basePrice - m.current.DiscountValue
		if p < 0 {
			return 0
		}
		return p
	default:
		return basePrice
	}
}

// Reset clears the machine. Used on room switch.
func (m *Machine) Reset() {
	m.state = StateIdle
	m.current = nil
	m.remaining = 0
}

func remainingSeconds(endMillis, nowMillis int64) int {
	r := int((endMillis - nowMillis) / 1000)
	if r < 0 {
		return 0
	}
	return r
}
