package models

import "strings"

type OrderState string

const (
	OrderIdle        OrderState = "idle"
	OrderCollecting  OrderState = "collecting"
	OrderSummarizing OrderState = "summarizing"
	OrderConfirmed   OrderState = "confirmed"
)

// LineItem is one catalog item at a positive quantity.
type LineItem struct {
	Quantity  int    `json:"quantity"`
	Name      string `json:"name"`
	UnitPrice Cents  `json:"unitPrice"`
	LineTotal Cents  `json:"lineTotal"`
}

func NewLineItem(qty int, item CatalogItem) LineItem {
	return LineItem{
		Quantity:  qty,
		Name:      item.Name,
		UnitPrice: item.Price,
		LineTotal: Cents(int64(qty) * int64(item.Price)),
	}
}

// Order is the running order of one session. Items keep call order.
type Order struct {
	Items []LineItem `json:"items"`
	State OrderState `json:"state"`
}

// Total is recomputed from the line items on every call.
func (o Order) Total() Cents {
	var total Cents
	for _, li := range o.Items {
		total += Cents(int64(li.Quantity) * int64(li.UnitPrice))
	}
	return total
}

func (o Order) Clone() Order {
	items := make([]LineItem, len(o.Items))
	copy(items, o.Items)
	return Order{Items: items, State: o.State}
}

// Index returns the position of the line item named name, or -1.
func (o Order) Index(name string) int {
	for i, li := range o.Items {
		if strings.EqualFold(li.Name, name) {
			return i
		}
	}
	return -1
}

// InProgress reports whether an order is being collected or summarized.
func (o Order) InProgress() bool {
	return o.State == OrderCollecting || o.State == OrderSummarizing
}
