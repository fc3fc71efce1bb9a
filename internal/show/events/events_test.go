package events

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBidNormalizesFieldAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Bid
	}{
		{
			name: "user as string",
			raw:  `{"user":"u1","amount":25,"timestamp":1000}`,
			want: Bid{Bidder: "u1", Amount: 25, Timestamp: 1000},
		},
		{
			name: "bidder alias",
			raw:  `{"bidder":"u2","amount":30,"timestamp":"2000"}`,
			want: Bid{Bidder: "u2", Amount: 30, Timestamp: 2000},
		},
		{
			name: "user as object with _id",
			raw:  `{"user":{"_id":"u3","name":"x"},"amount":40,"autobid":true,"autobidamount":90}`,
			want: Bid{Bidder: "u3", Amount: 40, Autobid: true, AutobidAmount: 90},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Bid
			if err := json.Unmarshal([]byte(tt.raw), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("bid mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAuctionValidity(t *testing.T) {
	var placeholder Auction
	if err := json.Unmarshal([]byte(`{}`), &placeholder); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if placeholder.Valid() {
		t.Error("empty placeholder must not be a valid auction")
	}

	var a Auction
	raw := `{"_id":"a1","product":{"_id":"p1","name":"cap"},"bids":[],"baseprice":5}`
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !a.Valid() {
		t.Error("auction with id, product and empty bids list must be valid")
	}
	if a.ID != "a1" || a.Product.ID != "p1" {
		t.Errorf("ids not normalized: auction=%q product=%q", a.ID, a.Product.ID)
	}

	a.Bids = nil
	if a.Valid() {
		t.Error("auction without a bids list must be invalid")
	}
}

func TestResolveEndTime(t *testing.T) {
	a := Auction{StartedTime: 1_000_000, Duration: 30}
	if got := a.ResolveEndTime(); got != 1_030_000 {
		t.Fatalf("derived endTime = %d, want 1030000", got)
	}

	a.EndTime = 2_000_000
	if got := a.ResolveEndTime(); got != 2_000_000 {
		t.Fatalf("explicit endTime = %d, want 2000000", got)
	}

	var empty Auction
	if got := empty.ResolveEndTime(); got != 0 {
		t.Fatalf("unresolvable endTime = %d, want 0", got)
	}
}

func TestGiveawayParticipantsNormalized(t *testing.T) {
	raw := `{"_id":"g1","whocanenter":"followers","participants":["u1",{"_id":"u2"}],"startedTime":1000,"duration":60}`
	var g Giveaway
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"u1", "u2"}
	if diff := cmp.Diff(want, g.Participants); diff != "" {
		t.Errorf("participants mismatch (-want +got):\n%s", diff)
	}
	if g.EndTime() != 61000 {
		t.Errorf("giveaway endTime = %d, want 61000", g.EndTime())
	}
}

func TestMillisAcceptsStringsAndNumbers(t *testing.T) {
	var p Product
	raw := `{"id":"p1","flash_sale":true,"flash_sale_end_time":"1700000000000"}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.FlashSaleEndTime != 1700000000000 {
		t.Fatalf("flash_sale_end_time = %d", p.FlashSaleEndTime)
	}
}
