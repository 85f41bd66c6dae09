package purchase

import (
	"encoding/json"
	"fmt"
	"time"

	"sjsage522/purchasewatcher/internal/timeago"
)

const (
	// DateLayout is the stored purchase_date format
	DateLayout = "2006-01-02"
	// TimeLayout is the stored purchase_time format
	TimeLayout = "15:04"
)

// Entity is a single entry of the storefront's recent purchase widget
type Entity struct {
	ProductName    string `json:"product_name"`
	ProductShortID string `json:"product_short_id"`
	Title          string `json:"title"`
	TimeCTA        string `json:"time_cta"`

	// Extra keeps the remaining widget fields so they can be echoed back
	Extra map[string]any `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the rest in Extra
func (e *Entity) UnmarshalJSON(data []byte) error {
	type plain Entity
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range []string{"product_name", "product_short_id", "title", "time_cta"} {
		delete(all, k)
	}
	if len(all) > 0 {
		known.Extra = all
	}

	*e = Entity(known)
	return nil
}

// MarshalJSON writes the known fields merged with Extra
func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+4)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["product_name"] = e.ProductName
	out["product_short_id"] = e.ProductShortID
	out["title"] = e.Title
	out["time_cta"] = e.TimeCTA
	return json.Marshal(out)
}

// Purchase is a stored purchase record
type Purchase struct {
	ProductName      string    `json:"product_name" bson:"product_name"`
	ProductID        string    `json:"product_id" bson:"product_id"`
	CustomerLocation string    `json:"customer_location" bson:"customer_location"`
	PurchaseDate     string    `json:"purchase_date" bson:"purchase_date"`
	PurchaseTime     string    `json:"purchase_time" bson:"purchase_time"`
	PurchasedAt      time.Time `json:"purchased_at" bson:"purchased_at"`
	Site             string    `json:"site,omitempty" bson:"site,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

// Key returns the identity used to avoid storing the same purchase twice
func (p Purchase) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", p.ProductID, p.CustomerLocation, p.PurchaseDate, p.PurchaseTime)
}

// Observed is a widget entity annotated with its estimated purchase instant
type Observed struct {
	Entity
	EstimatedAt time.Time `json:"estimated_at"`
}

// MarshalJSON adds estimated_at to the entity fields
func (o Observed) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.Extra)+5)
	for k, v := range o.Extra {
		out[k] = v
	}
	out["product_name"] = o.ProductName
	out["product_short_id"] = o.ProductShortID
	out["title"] = o.Title
	out["time_cta"] = o.TimeCTA
	out["estimated_at"] = o.EstimatedAt
	return json.Marshal(out)
}

// UnmarshalJSON reads the entity fields and estimated_at
func (o *Observed) UnmarshalJSON(data []byte) error {
	if err := o.Entity.UnmarshalJSON(data); err != nil {
		return err
	}
	delete(o.Extra, "estimated_at")
	if len(o.Extra) == 0 {
		o.Extra = nil
	}

	var at struct {
		EstimatedAt time.Time `json:"estimated_at"`
	}
	if err := json.Unmarshal(data, &at); err != nil {
		return err
	}
	o.EstimatedAt = at.EstimatedAt
	return nil
}

// Estimate resolves the entity's time_cta against now. Unknown phrases resolve to now.
func Estimate(e Entity, now time.Time) time.Time {
	return timeago.Normalize(e.TimeCTA, now)
}

// Observe annotates every entity with its estimated purchase instant
func Observe(entities []Entity, now time.Time) []Observed {
	observed := make([]Observed, 0, len(entities))
	for _, e := range entities {
		observed = append(observed, Observed{Entity: e, EstimatedAt: Estimate(e, now)})
	}
	return observed
}

// Select keeps the entities whose time_cta reads "<n> minute(s) ago" with n <= maxMinutes
// and converts them to purchases. The purchase instant is truncated to the minute.
func Select(entities []Entity, site string, now time.Time, maxMinutes int) []Purchase {
	var purchases []Purchase
	for _, e := range entities {
		minutes, ok := timeago.ParseMinutes(e.TimeCTA)
		if !ok || minutes > maxMinutes {
			continue
		}

		at := now.Add(-time.Duration(minutes) * time.Minute).Truncate(time.Minute)
		purchases = append(purchases, Purchase{
			ProductName:      e.ProductName,
			ProductID:        e.ProductShortID,
			CustomerLocation: e.Title,
			PurchaseDate:     at.Format(DateLayout),
			PurchaseTime:     at.Format(TimeLayout),
			PurchasedAt:      at,
			Site:             site,
			CreatedAt:        now,
		})
	}
	return purchases
}
