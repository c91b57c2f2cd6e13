package derive

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAnnualSumsPriceOverPeriod(t *testing.T) {
	products := []Product{
		{Price: 120, Period: 1},
		{Price: 60, Period: 0.5},
	}
	if got := Annual(products); got != 240 {
		t.Errorf("expected 240, got %v", got)
	}
}

func TestAnnualEmptyAndInvalidPeriods(t *testing.T) {
	if got := Annual(nil); got != 0 {
		t.Errorf("expected 0 for no products, got %v", got)
	}
	if got := Annual([]Product{{Price: 100, Period: 0}}); got != 0 {
		t.Errorf("expected zero-period product to be skipped, got %v", got)
	}
}

func TestAnnualMultiYearPeriods(t *testing.T) {
	products := []Product{
		{Price: 300, Period: 3},
		{Price: 200, Period: 2},
	}
	if got := Annual(products); got != 200 {
		t.Errorf("expected 200, got %v", got)
	}
}

func TestNextRenewalFutureStart(t *testing.T) {
	today := date(2024, time.March, 1)
	got := NextRenewal(date(2024, time.June, 1), 1, today)
	if !got.Equal(date(2025, time.June, 1)) {
		t.Errorf("expected 2025-06-01, got %v", got)
	}
}

func TestNextRenewalAdvancesPastToday(t *testing.T) {
	today := date(2024, time.March, 1)

	// A yearly product from 2020 renews next on its 2024 anniversary.
	got := NextRenewal(date(2020, time.June, 15), 1, today)
	if !got.Equal(date(2024, time.June, 15)) {
		t.Errorf("expected 2024-06-15, got %v", got)
	}

	// A half-year product steps in six-month increments.
	got = NextRenewal(date(2023, time.January, 10), 0.5, today)
	if !got.Equal(date(2024, time.July, 10)) {
		t.Errorf("expected 2024-07-10, got %v", got)
	}
}

func TestNextRenewalOnToday(t *testing.T) {
	today := date(2024, time.June, 15)
	got := NextRenewal(date(2023, time.June, 15), 1, today)
	if !got.Equal(today) {
		t.Errorf("renewal landing exactly on today should not advance, got %v", got)
	}
}

func TestEndingDatePicksSoonest(t *testing.T) {
	today := date(2024, time.March, 1)
	products := []Product{
		{StartedDate: date(2023, time.December, 1), Period: 1},
		{StartedDate: date(2024, time.January, 20), Period: 0.5},
		{StartedDate: date(2022, time.May, 5), Period: 3},
	}
	got := EndingDate(products, today)
	if got == nil {
		t.Fatal("expected an ending date")
	}
	if !got.Equal(date(2024, time.July, 20)) {
		t.Errorf("expected 2024-07-20, got %v", got)
	}
}

func TestEndingDateNoProducts(t *testing.T) {
	if got := EndingDate(nil, date(2024, time.March, 1)); got != nil {
		t.Errorf("expected nil ending date, got %v", got)
	}
}

// Recomputation is idempotent: running the calculators twice over the same
// unchanged product set yields identical results.
func TestRecomputeIdempotent(t *testing.T) {
	today := date(2024, time.March, 1)
	products := []Product{
		{StartedDate: date(2023, time.April, 10), Period: 1, Price: 120, Cost: 30},
		{StartedDate: date(2023, time.November, 2), Period: 0.5, Price: 60},
	}

	first := Annual(products)
	second := Annual(products)
	if first != second {
		t.Errorf("annual not idempotent: %v then %v", first, second)
	}

	firstEnd := EndingDate(products, today)
	secondEnd := EndingDate(products, today)
	if firstEnd == nil || secondEnd == nil || !firstEnd.Equal(*secondEnd) {
		t.Errorf("ending date not idempotent: %v then %v", firstEnd, secondEnd)
	}
}

func TestToday(t *testing.T) {
	noon := time.Date(2024, time.March, 1, 12, 30, 45, 0, time.UTC)
	if got := Today(noon); !got.Equal(date(2024, time.March, 1)) {
		t.Errorf("expected midnight truncation, got %v", got)
	}
}
