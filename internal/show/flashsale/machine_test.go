package flashsale

import (
	"errors"
	"testing"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
)

func TestRestoreMidSale(t *testing.T) {
	m := NewMachine()
	now := int64(1_000_000)
	p := &events.Product{
		ID:               "p1",
		Quantity:         3,
		FlashSale:        true,
		FlashSaleEndTime: now + 40_000,
		DiscountType:     DiscountPercentage,
		DiscountValue:    20,
	}

	if !m.Restore(p, now) {
		t.Fatal("expected restore to succeed")
	}
	if m.State() != StateRunning {
		t.Fatalf("state = %v, want running", m.State())
	}
	if m.Remaining() != 40 {
		t.Fatalf("remaining = %d, want 40", m.Remaining())
	}
	if m.Current().QuantityLeft != 3 {
		t.Fatalf("quantityLeft = %d, want 3", m.Current().QuantityLeft)
	}
}

func TestRestoreRejectsEndedOrPastSales(t *testing.T) {
	m := NewMachine()
	now := int64(1_000_000)

	ended := &events.Product{ID: "p1", FlashSale: true, FlashSaleEnded: true, FlashSaleEndTime: now + 40_000}
	if m.Restore(ended, now) {
		t.Error("restored a sale marked ended")
	}

	past := &events.Product{ID: "p1", FlashSale: true, FlashSaleEndTime: now - 1}
	if m.Restore(past, now) {
		t.Error("restored a sale already past its deadline")
	}

	notOnSale := &events.Product{ID: "p1"}
	if m.Restore(notOnSale, now) {
		t.Error("restored a product not on flash sale")
	}
}

func TestQuantityOnlyDecreases(t *testing.T) {
	m := NewMachine()
	now := int64(1_000_000)
	if err := m.Start(Sale{ProductID: "p1", QuantityLeft: 5, StartedAt: now, Duration: 60}, now); err != nil {
		t.Fatalf("start: %v", err)
	}

	m.ApplyQuantity(3)
	if m.Current().QuantityLeft != 3 {
		t.Fatalf("quantityLeft = %d, want 3", m.Current().QuantityLeft)
	}

	// A stale update with a larger count is ignored.
	m.ApplyQuantity(4)
	if m.Current().QuantityLeft != 3 {
		t.Fatalf("quantityLeft regressed to %d", m.Current().QuantityLeft)
	}
}

func TestDepletionEndsLikeExpiry(t *testing.T) {
	m := NewMachine()
	now := int64(1_000_000)
	if err := m.Start(Sale{ProductID: "p1", QuantityLeft: 1, StartedAt: now, Duration: 60}, now); err != nil {
		t.Fatalf("start: %v", err)
	}

	m.ApplyQuantity(0)
	if m.State() != StateEnded {
		t.Fatalf("state = %v after depletion, want ended", m.State())
	}
	if err := m.CheckPurchase(); !errors.Is(err, ErrNoSale) {
		t.Fatalf("CheckPurchase = %v, want ErrNoSale", err)
	}
}

func TestCountdownExpiry(t *testing.T) {
	m := NewMachine()
	now := int64(1_000_000)
	if err := m.Start(Sale{ProductID: "p1", QuantityLeft: 5, StartedAt: now, Duration: 30}, now); err != nil {
		t.Fatalf("start: %v", err)
	}

	if remaining, _ := m.Tick(now + 10_000); remaining != 20 {
		t.Fatalf("remaining = %d, want 20", remaining)
	}
	if _, expired := m.Tick(now + 30_000); !expired {
		t.Fatal("expected expiry at deadline")
	}
	if m.State() != StateEnded {
		t.Fatalf("state = %v, want ended", m.State())
	}
}

func TestSalePrice(t *testing.T) {
	m := NewMachine()
	now := int64(1_000_000)
	if err := m.Start(Sale{
		ProductID: "p1", QuantityLeft: 5, StartedAt: now, Duration: 60,
		DiscountType: DiscountPercentage, DiscountValue: 25,
	}, now); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := m.SalePrice(200); got != 150 {
		t.Fatalf("percentage sale price = %v, want 150", got)
	}

	m.Reset()
	if err := m.Start(Sale{
		ProductID: "p1", QuantityLeft: 5, StartedAt: now, Duration: 60,
		DiscountType: DiscountFixed, DiscountValue: 250,
	}, now); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := m.SalePrice(200); got != 0 {
		t.Fatalf("fixed discount below zero clamps: got %v", got)
	}
}
