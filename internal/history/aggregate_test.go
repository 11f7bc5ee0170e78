package history

import (
	"reflect"
	"testing"

	"expensebook/internal/core"
)

func rec(title string, cents int64, category string, year, month, day int) core.ExpenseRecord {
	return core.ExpenseRecord{
		Title:     title,
		Amount:    core.Money{Cents: cents},
		Category:  category,
		Timestamp: core.NewDate(year, month, day),
	}
}

func TestAggregateEmpty(t *testing.T) {
	h := Aggregate(nil)
	if !h.Empty() {
		t.Error("Aggregate(nil) should be empty")
	}
	if months := h.Months(); len(months) != 0 {
		t.Errorf("Months() = %v, want none", months)
	}
	if h.Total().Cents != 0 {
		t.Errorf("Total() = %d, want 0", h.Total().Cents)
	}
	if got := h.LatestMonth(); got != "" {
		t.Errorf("LatestMonth() = %q, want empty", got)
	}
}

func TestAggregateGroupsByMonthAndCategory(t *testing.T) {
	h := Aggregate([]core.ExpenseRecord{
		rec("Groceries", 1500, "Food", 2025, 7, 14),
		rec("Netflix", 800, "Entertainment", 2025, 7, 15),
	})

	months := h.Months()
	if !reflect.DeepEqual(months, []string{"July 2025"}) {
		t.Fatalf("Months() = %v, want [July 2025]", months)
	}
	if got := h.CategoryTotal("July 2025", "Food").Cents; got != 1500 {
		t.Errorf("Food total = %d, want 1500", got)
	}
	if got := h.CategoryTotal("July 2025", "Entertainment").Cents; got != 800 {
		t.Errorf("Entertainment total = %d, want 800", got)
	}
	if got := h.MonthTotal("July 2025").Cents; got != 2300 {
		t.Errorf("month total = %d, want 2300", got)
	}

	food := h.Buckets["July 2025"]["Food"]
	if len(food) != 1 || food[0].Item != "Groceries" {
		t.Errorf("Food entries = %+v", food)
	}
}

func TestAggregateSameMonthDifferentYears(t *testing.T) {
	h := Aggregate([]core.ExpenseRecord{
		rec("Old", 100, "Misc", 2024, 7, 1),
		rec("New", 200, "Misc", 2025, 7, 1),
	})

	months := h.Months()
	if !reflect.DeepEqual(months, []string{"July 2024", "July 2025"}) {
		t.Fatalf("Months() = %v, want two distinct July buckets in order", months)
	}
	if got := h.LatestMonth(); got != "July 2025" {
		t.Errorf("LatestMonth() = %q, want July 2025", got)
	}
}

func TestAggregateConservesTotal(t *testing.T) {
	records := []core.ExpenseRecord{
		rec("A", 1234, "Food", 2025, 1, 5),
		rec("B", 5678, "Rent", 2025, 2, 1),
		rec("C", 999, "Food", 2025, 2, 28),
		{Title: "D", Amount: core.Money{Cents: 450}, Category: "Misc"},
	}

	var want int64
	for _, r := range records {
		want += r.Amount.Cents
	}

	h := Aggregate(records)
	if got := h.Total().Cents; got != want {
		t.Errorf("Total() = %d, want %d", got, want)
	}
}

func TestAggregateUnknownBucket(t *testing.T) {
	h := Aggregate([]core.ExpenseRecord{
		rec("Groceries", 1500, "Food", 2025, 7, 14),
		{Title: "Mystery", Amount: core.Money{Cents: 300}, Category: "Misc"},
	})

	months := h.Months()
	if !reflect.DeepEqual(months, []string{"July 2025", UnknownMonth}) {
		t.Fatalf("Months() = %v, want Unknown last", months)
	}
	if got := h.MonthTotal(UnknownMonth).Cents; got != 300 {
		t.Errorf("Unknown bucket total = %d, want 300", got)
	}
	if got := h.LatestMonth(); got != "July 2025" {
		t.Errorf("LatestMonth() = %q, should skip the Unknown bucket", got)
	}
}

func TestPieSeries(t *testing.T) {
	h := Aggregate([]core.ExpenseRecord{
		rec("Groceries", 1500, "Food", 2025, 7, 14),
		rec("Netflix", 800, "Entertainment", 2025, 7, 15),
		rec("Takeaway", 500, "Food", 2025, 7, 20),
	})

	s, ok := h.PieSeries("July 2025")
	if !ok {
		t.Fatal("PieSeries should find July 2025")
	}
	if !reflect.DeepEqual(s.Labels, []string{"Food", "Entertainment"}) {
		t.Errorf("labels = %v", s.Labels)
	}
	if !reflect.DeepEqual(s.Values, []float64{20.00, 8.00}) {
		t.Errorf("values = %v", s.Values)
	}

	if _, ok := h.PieSeries("March 2020"); ok {
		t.Error("PieSeries should miss an absent month")
	}
}

func TestTrendFillsMissingMonthsWithZero(t *testing.T) {
	h := Aggregate([]core.ExpenseRecord{
		rec("Groceries", 1000, "Food", 2025, 6, 3),
		rec("Cinema", 700, "Entertainment", 2025, 6, 9),
		rec("Groceries", 1200, "Food", 2025, 7, 2),
	})

	ts := h.Trend()
	if !reflect.DeepEqual(ts.Months, []string{"June 2025", "July 2025"}) {
		t.Fatalf("months = %v", ts.Months)
	}
	if len(ts.Series) != 2 {
		t.Fatalf("series = %+v, want Food and Entertainment", ts.Series)
	}

	byCategory := map[string][]float64{}
	for _, s := range ts.Series {
		byCategory[s.Category] = s.Values
	}
	if !reflect.DeepEqual(byCategory["Food"], []float64{10.00, 12.00}) {
		t.Errorf("Food trend = %v", byCategory["Food"])
	}
	if !reflect.DeepEqual(byCategory["Entertainment"], []float64{7.00, 0}) {
		t.Errorf("Entertainment trend = %v, months without spending should be zero", byCategory["Entertainment"])
	}
}
