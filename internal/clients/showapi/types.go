package showapi

import (
	"encoding/json"

	"github.com/freddysundowner/web-app-tokshop-sub002/internal/show/events"
)

// ShowSnapshot is the REST read of a show's full state. Every field is
// optional; older server builds spell pinned_giveaway two ways.
type ShowSnapshot struct {
	ID            string           `json:"id"`
	HostID        string           `json:"hostId"`
	Started       bool             `json:"started"`
	Ended         bool             `json:"ended"`
	ActiveAuction *events.Auction  `json:"activeauction"`
	Giveaway      *events.Giveaway `json:"-"`
	Pinned        *events.Product  `json:"pinned"`
	Viewers       []events.Viewer  `json:"viewers"`
	ServerTime    int64            `json:"serverTime"`
}

func (s *ShowSnapshot) UnmarshalJSON(data []byte) error {
	var wire struct {
		MID            events.FlexID    `json:"_id"`
		ID             events.FlexID    `json:"id"`
		HostID         events.FlexID    `json:"hostId"`
		Owner          events.FlexID    `json:"owner"`
		Started        bool             `json:"started"`
		Ended          bool             `json:"ended"`
		ActiveAuction  *events.Auction  `json:"activeauction"`
		PinnedGiveaway *events.Giveaway `json:"pinned_giveaway"`
		PinnedGiveCC   *events.Giveaway `json:"pinnedGiveaway"`
		Pinned         *events.Product  `json:"pinned"`
		Viewers        []events.Viewer  `json:"viewers"`
		ServerTime     events.Millis    `json:"serverTime"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.ID = wire.MID.String()
	if s.ID == "" {
		s.ID = wire.ID.String()
	}
	s.HostID = wire.HostID.String()
	if s.HostID == "" {
		s.HostID = wire.Owner.String()
	}
	s.Started = wire.Started
	s.Ended = wire.Ended
	s.ActiveAuction = wire.ActiveAuction
	s.Giveaway = wire.PinnedGiveaway
	if s.Giveaway == nil {
		s.Giveaway = wire.PinnedGiveCC
	}
	s.Pinned = wire.Pinned
	s.Viewers = wire.Viewers
	s.ServerTime = int64(wire.ServerTime)
	return nil
}

// Address is one saved shipping address.
type Address struct {
	ID      string `json:"id"`
	Line1   string `json:"line1"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// UserProfile is the subset of a user record the engine needs for giveaway
// eligibility and identity.
type UserProfile struct {
	ID        string    `json:"id"`
	UserName  string    `json:"userName"`
	Addresses []Address `json:"address"`
	Following []string  `json:"following"`
}

func (u *UserProfile) UnmarshalJSON(data []byte) error {
	var wire struct {
		MID       events.FlexID   `json:"_id"`
		ID        events.FlexID   `json:"id"`
		UserName  string          `json:"userName"`
		FirstName string          `json:"firstName"`
		Addresses []Address       `json:"address"`
		Following []events.FlexID `json:"following"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	u.ID = wire.MID.String()
	if u.ID == "" {
		u.ID = wire.ID.String()
	}
	u.UserName = wire.UserName
	if u.UserName == "" {
		u.UserName = wire.FirstName
	}
	u.Addresses = wire.Addresses
	u.Following = u.Following[:0]
	for _, f := range wire.Following {
		if f != "" {
			u.Following = append(u.Following, f.String())
		}
	}
	return nil
}

// HasAddress reports whether the user has at least one saved address.
func (u *UserProfile) HasAddress() bool {
	return len(u.Addresses) > 0
}

// Follows reports whether the user follows the given host.
func (u *UserProfile) Follows(hostID string) bool {
	for _, f := range u.Following {
		if f == hostID {
			return true
		}
	}
	return false
}
