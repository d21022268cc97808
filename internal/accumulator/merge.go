package accumulator

import "restaurant-receptionist/internal/models"

// MergeOrder applies fragments to a copy of prior. Adds accumulate onto an
// existing line for the same item, Set replaces its quantity and Remove
// decrements it (a zero Remove quantity deletes the whole line). Lines never
// drop to zero or below.
func MergeOrder(prior models.Order, frags []OrderFragment) models.Order {
	out := prior.Clone()
	for _, f := range frags {
		idx := out.Index(f.Item.Name)
		switch f.Kind {
		case FragmentAdd:
			if f.Quantity <= 0 {
				continue
			}
			if idx >= 0 {
				out.Items[idx] = models.NewLineItem(out.Items[idx].Quantity+f.Quantity, f.Item)
				continue
			}
			out.Items = append(out.Items, models.NewLineItem(f.Quantity, f.Item))

		case FragmentSet:
			if f.Quantity <= 0 {
				continue
			}
			if idx >= 0 {
				out.Items[idx] = models.NewLineItem(f.Quantity, f.Item)
				continue
			}
			out.Items = append(out.Items, models.NewLineItem(f.Quantity, f.Item))

		case FragmentRemove:
			if idx < 0 {
				continue
			}
			left := out.Items[idx].Quantity - f.Quantity
			if f.Quantity <= 0 || left <= 0 {
				out.Items = append(out.Items[:idx], out.Items[idx+1:]...)
				continue
			}
			out.Items[idx] = models.NewLineItem(left, f.Item)
		}
	}
	return out
}

// MergeReservation overwrites the fields of prior that frags supplies.
// Special requests accumulate without duplicates.
func MergeReservation(prior models.Reservation, frags ReservationFragments) models.Reservation {
	out := prior.Clone()
	if frags.PartySize != nil {
		n := *frags.PartySize
		out.PartySize = &n
	}
	if frags.Date != nil {
		d := *frags.Date
		out.Date = &d
	}
	if frags.Time != nil {
		t := *frags.Time
		out.Time = &t
	}
	for _, req := range frags.SpecialRequests {
		if !contains(out.SpecialRequests, req) {
			out.SpecialRequests = append(out.SpecialRequests, req)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
