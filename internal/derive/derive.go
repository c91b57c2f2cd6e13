// Package derive recomputes the board fields that are never authoritative
// inputs: the annual recurring value and the nearest renewal date, both
// functions of the board's product set, plus the status badge derived from
// the four monetary fields.
package derive

import "time"

// Product is the slice of a recurring line item the calculations need.
// Period is expressed in years and is one of 0.5, 1, 2, or 3.
type Product struct {
	StartedDate time.Time
	Period      float64
	Price       float64
	Cost        float64
}

// Annual sums price/period across the product set. Cost is tracked per
// product but deliberately not netted out here; see DESIGN.md for the
// formula decision.
func Annual(products []Product) float64 {
	var total float64
	for _, p := range products {
		if p.Period <= 0 {
			continue
		}
		total += p.Price / p.Period
	}
	return total
}

// NextRenewal advances a product's start date by whole period steps until the
// result is on or after today. A period step is floor(period) years plus six
// months when the period carries a half-year component. The loop always
// terminates because every step strictly grows the date.
func NextRenewal(startedDate time.Time, period float64, today time.Time) time.Time {
	end := advance(startedDate, period)
	for end.Before(today) {
		end = advance(end, period)
	}
	return end
}

// EndingDate returns the soonest renewal date across the product set, or nil
// when there are no products. Today is compared date-only; callers should
// pass a midnight-truncated time (see Today).
func EndingDate(products []Product, today time.Time) *time.Time {
	var closest *time.Time
	for _, p := range products {
		if p.Period <= 0 {
			continue
		}
		renewal := NextRenewal(p.StartedDate, p.Period, today)
		if closest == nil || renewal.Before(*closest) {
			r := renewal
			closest = &r
		}
	}
	return closest
}

// Today truncates t to midnight UTC for date-only comparisons.
func Today(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func advance(t time.Time, period float64) time.Time {
	years := int(period)
	t = t.AddDate(years, 0, 0)
	if period != float64(years) {
		t = t.AddDate(0, 6, 0)
	}
	return t
}
