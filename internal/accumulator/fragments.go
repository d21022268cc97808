package accumulator

import (
	"time"

	"restaurant-receptionist/internal/models"
)

type FragmentKind string

const (
	// FragmentAdd increments the quantity of an item.
	FragmentAdd FragmentKind = "add"
	// FragmentSet replaces the quantity of an item ("make that 2 cokes").
	FragmentSet FragmentKind = "set"
	// FragmentRemove deletes the item from the order.
	FragmentRemove FragmentKind = "remove"
)

// OrderFragment is one parsed instruction about a catalog item.
type OrderFragment struct {
	Kind     FragmentKind
	Item     models.CatalogItem
	Quantity int
}

// Unresolved is a piece of an utterance the parser understood as an order
// instruction but could not turn into a valid fragment.
type Unresolved struct {
	Text   string
	Reason string
}

const (
	ReasonUnknownItem     = "unknown item"
	ReasonInvalidQuantity = "invalid quantity"
)

// OrderParse is the result of parsing one utterance for order content.
type OrderParse struct {
	Fragments  []OrderFragment
	Unresolved []Unresolved
	// PriceQueries are items asked about ("how much is the baklava")
	// without being ordered.
	PriceQueries []models.CatalogItem
}

func (p OrderParse) Empty() bool {
	return len(p.Fragments) == 0 && len(p.Unresolved) == 0 && len(p.PriceQueries) == 0
}

// ReservationFragments holds the fields one utterance supplied. Nil fields
// were not mentioned.
type ReservationFragments struct {
	PartySize       *int
	Date            *time.Time
	Time            *models.TimeOfDay
	SpecialRequests []string
}

func (f ReservationFragments) Empty() bool {
	return f.PartySize == nil && f.Date == nil && f.Time == nil && len(f.SpecialRequests) == 0
}
