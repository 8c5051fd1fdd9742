package domain

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Promo is a discount code for a store.
type Promo struct {
	ID        int64           `json:"id" db:"id"`
	Code      string          `json:"code" db:"code"`
	Discount  string          `json:"discount" db:"discount"`
	MinPrice  decimal.Decimal `json:"minPrice" db:"min_price"`
	Store     string          `json:"store" db:"store"`
	Locations pq.StringArray  `json:"locations" db:"locations"`
	ExpiresAt time.Time       `json:"expiresAt" db:"expires_at"`
	IsActive  bool            `json:"isActive" db:"is_active"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// IsRedeemable reports whether the promo can be handed out at now.
func (p *Promo) IsRedeemable(now time.Time) bool {
	return p != nil && p.IsActive && p.ExpiresAt.After(now)
}

// IsExpired reports whether the expiry moment has passed.
func (p *Promo) IsExpired(now time.Time) bool {
	return p != nil && !p.ExpiresAt.After(now)
}

// MarshalJSON adds the derived isExpired flag.
func (p Promo) MarshalJSON() ([]byte, error) {
	type alias Promo
	locations := p.Locations
	if locations == nil {
		locations = pq.StringArray{}
	}
	return json.Marshal(struct {
		alias
		Locations pq.StringArray `json:"locations"`
		IsExpired bool           `json:"isExpired"`
	}{
		alias:     alias(p),
		Locations: locations,
		IsExpired: p.IsExpired(time.Now()),
	})
}
