// Package history turns the flat expense list fetched from the backend
// into the nested month → category structure the history view renders,
// and derives chart-ready totals from it.
package history

import (
	"sort"
	"time"

	"expensebook/internal/core"
)

// UnknownMonth is the bucket label for records whose timestamp could
// not be parsed. Such records are kept rather than dropped so that
// bucket totals always conserve the input total.
const UnknownMonth = "Unknown"

type (
	// Entry is one expense line inside a category bucket.
	Entry struct {
		Item   string
		Amount core.Money
	}

	// CategoryBucket maps a category label to its entries in input order.
	CategoryBucket map[string][]Entry

	// MonthBucket maps a month label (e.g. "July 2025") to its categories.
	MonthBucket map[string]CategoryBucket
)

// History is the aggregated view of a set of expense records. It is a
// pure value: rebuild it from scratch on every fetch instead of
// patching it in place.
type History struct {
	Buckets MonthBucket

	monthOrder    []string            // chronological, UnknownMonth last
	categoryOrder map[string][]string // per month, first-appearance order
}

// Aggregate groups records into month and category buckets. Grouping is
// determined solely by each record's timestamp and category; entries
// are appended in input order and never sorted.
func Aggregate(records []core.ExpenseRecord) History {
	h := History{
		Buckets:       make(MonthBucket),
		categoryOrder: make(map[string][]string),
	}

	starts := make(map[string]time.Time)
	hasUnknown := false

	for _, rec := range records {
		label := UnknownMonth
		if !rec.Timestamp.IsZero() {
			label = rec.Timestamp.MonthLabel()
		}

		cats, ok := h.Buckets[label]
		if !ok {
			cats = make(CategoryBucket)
			h.Buckets[label] = cats
			if label == UnknownMonth {
				hasUnknown = true
			} else {
				y, m, _ := rec.Timestamp.Date()
				starts[label] = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
			}
		}

		if _, ok := cats[rec.Category]; !ok {
			h.categoryOrder[label] = append(h.categoryOrder[label], rec.Category)
		}
		cats[rec.Category] = append(cats[rec.Category], Entry{Item: rec.Title, Amount: rec.Amount})
	}

	for label := range starts {
		h.monthOrder = append(h.monthOrder, label)
	}
	sort.Slice(h.monthOrder, func(i, j int) bool {
		return starts[h.monthOrder[i]].Before(starts[h.monthOrder[j]])
	})
	if hasUnknown {
		h.monthOrder = append(h.monthOrder, UnknownMonth)
	}

	return h
}

// Empty reports whether the aggregation holds no records at all.
func (h History) Empty() bool {
	return len(h.Buckets) == 0
}

// Months returns the month labels in chronological order, with the
// Unknown bucket (if any) last.
func (h History) Months() []string {
	out := make([]string, len(h.monthOrder))
	copy(out, h.monthOrder)
	return out
}

// LatestMonth returns the most recent real month label, or "" when the
// aggregation is empty or holds only unparseable records.
func (h History) LatestMonth() string {
	for i := len(h.monthOrder) - 1; i >= 0; i-- {
		if h.monthOrder[i] != UnknownMonth {
			return h.monthOrder[i]
		}
	}
	return ""
}

// Categories returns the category labels of a month in first-appearance
// order. Returns nil for an unknown month label.
func (h History) Categories(month string) []string {
	order := h.categoryOrder[month]
	out := make([]string, len(order))
	copy(out, order)
	return out
}

// CategoryTotal sums the entries of one (month, category) bucket.
func (h History) CategoryTotal(month, category string) core.Money {
	var cents int64
	for _, e := range h.Buckets[month][category] {
		cents += e.Amount.Cents
	}
	return core.Money{Cents: cents}
}

// MonthTotal sums all categories of one month.
func (h History) MonthTotal(month string) core.Money {
	var cents int64
	for category := range h.Buckets[month] {
		cents += h.CategoryTotal(month, category).Cents
	}
	return core.Money{Cents: cents}
}

// Total sums every bucketed entry. By construction this equals the sum
// of the input records' amounts.
func (h History) Total() core.Money {
	var cents int64
	for _, month := range h.monthOrder {
		cents += h.MonthTotal(month).Cents
	}
	return core.Money{Cents: cents}
}

// ChartSeries is a label/value pairing ready for a pie or bar chart.
type ChartSeries struct {
	Labels []string
	Values []float64
}

// PieSeries returns per-category totals for one month. The second
// return value is false when the month label is not present.
func (h History) PieSeries(month string) (ChartSeries, bool) {
	if _, ok := h.Buckets[month]; !ok {
		return ChartSeries{}, false
	}
	var s ChartSeries
	for _, category := range h.categoryOrder[month] {
		s.Labels = append(s.Labels, category)
		s.Values = append(s.Values, h.CategoryTotal(month, category).Float())
	}
	return s, true
}

// CategorySeries is one category's per-month totals for the trend view.
type CategorySeries struct {
	Category string
	Values   []float64
}

// TrendSeries holds one series per category across every month present,
// with months the category has no spending in contributing zero.
type TrendSeries struct {
	Months []string
	Series []CategorySeries
}

// Trend derives the cross-month comparison series. Categories appear in
// order of first appearance across the whole aggregation. An empty
// aggregation yields a zero-value TrendSeries.
func (h History) Trend() TrendSeries {
	var ts TrendSeries
	if h.Empty() {
		return ts
	}
	ts.Months = h.Months()

	var categories []string
	seen := make(map[string]bool)
	for _, month := range ts.Months {
		for _, category := range h.categoryOrder[month] {
			if !seen[category] {
				seen[category] = true
				categories = append(categories, category)
			}
		}
	}

	for _, category := range categories {
		cs := CategorySeries{Category: category, Values: make([]float64, len(ts.Months))}
		for i, month := range ts.Months {
			if _, ok := h.Buckets[month][category]; ok {
				cs.Values[i] = h.CategoryTotal(month, category).Float()
			}
		}
		ts.Series = append(ts.Series, cs)
	}
	return ts
}
