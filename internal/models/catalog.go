package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Cents is a monetary amount in minor units.
type Cents int64

// CentsFromDollars rounds a decimal dollar amount to the nearest cent.
func CentsFromDollars(d float64) Cents {
	return Cents(math.Round(d * 100))
}

func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

type CatalogItem struct {
	Name        string   `json:"name"`
	Price       Cents    `json:"price"`
	Section     string   `json:"section,omitempty"`
	Description string   `json:"description,omitempty"`
	Synonyms    []string `json:"synonyms,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Catalog maps lower-cased canonical names to items.
type Catalog map[string]CatalogItem

func NewCatalog(items ...CatalogItem) Catalog {
	c := make(Catalog, len(items))
	for _, it := range items {
		c[strings.ToLower(it.Name)] = it
	}
	return c
}

func (c Catalog) Lookup(name string) (CatalogItem, bool) {
	it, ok := c[strings.ToLower(strings.TrimSpace(name))]
	return it, ok
}

// Items returns the catalog sorted by name.
func (c Catalog) Items() []CatalogItem {
	out := make([]CatalogItem, 0, len(c))
	for _, it := range c {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Terms returns every name and synonym, lower-cased, each mapped to the
// canonical item name.
func (c Catalog) Terms() map[string]string {
	terms := make(map[string]string)
	for _, it := range c {
		terms[strings.ToLower(it.Name)] = it.Name
		for _, syn := range it.Synonyms {
			terms[strings.ToLower(syn)] = it.Name
		}
	}
	return terms
}
