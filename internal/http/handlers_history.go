package http

import (
	"encoding/json"
	"net/http"

	"expensebook/internal/history"
	applog "expensebook/internal/log"
	"expensebook/internal/session"
)

type historyEntryView struct {
	Item   string
	Amount string
}

type historyCategoryView struct {
	Name    string
	Total   string
	Entries []historyEntryView
}

type historyMonthView struct {
	Label      string
	Total      string
	Categories []historyCategoryView
}

type historyOverviewData struct {
	Months     []historyMonthView
	GrandTotal string
	Empty      bool
	Error      string
}

func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.render(w, r, "history_page", struct{ User string }{User: sess.Backend.User.Username})
}

func (s *Server) handleHistoryOverview(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	h, err := s.sessionHistory(r, sess)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "History fetch failed", applog.FieldError, err)
		s.render(w, r, "history_overview", historyOverviewData{Error: "Could not load history"})
		return
	}

	data := historyOverviewData{
		GrandTotal: formatAmount(h.Total()),
		Empty:      h.Empty(),
	}
	// Newest month first on screen; the aggregation is chronological.
	months := h.Months()
	for i := len(months) - 1; i >= 0; i-- {
		label := months[i]
		mv := historyMonthView{Label: label, Total: formatAmount(h.MonthTotal(label))}
		for _, category := range h.Categories(label) {
			cv := historyCategoryView{
				Name:  category,
				Total: formatAmount(h.CategoryTotal(label, category)),
			}
			for _, e := range h.Buckets[label][category] {
				cv.Entries = append(cv.Entries, historyEntryView{Item: e.Item, Amount: formatAmount(e.Amount)})
			}
			mv.Categories = append(mv.Categories, cv)
		}
		data.Months = append(data.Months, mv)
	}
	s.render(w, r, "history_overview", data)
}

// handleHistoryPie serves JSON for the category pie of one month. With
// no month parameter it picks the most recent one.
func (s *Server) handleHistoryPie(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	h, err := s.sessionHistory(r, sess)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "History fetch failed", applog.FieldError, err)
		http.Error(w, "history unavailable", http.StatusBadGateway)
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = h.LatestMonth()
	}
	series, ok := h.PieSeries(month)
	if !ok {
		series = history.ChartSeries{}
	}

	writeJSON(w, struct {
		Month  string    `json:"month"`
		Labels []string  `json:"labels"`
		Values []float64 `json:"values"`
	}{Month: month, Labels: series.Labels, Values: series.Values})
}

func (s *Server) handleHistoryTrend(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	h, err := s.sessionHistory(r, sess)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "History fetch failed", applog.FieldError, err)
		http.Error(w, "history unavailable", http.StatusBadGateway)
		return
	}

	trend := h.Trend()
	type series struct {
		Category string    `json:"category"`
		Values   []float64 `json:"values"`
	}
	out := struct {
		Months []string `json:"months"`
		Series []series `json:"series"`
	}{Months: trend.Months}
	for _, cs := range trend.Series {
		out.Series = append(out.Series, series{Category: cs.Category, Values: cs.Values})
	}
	writeJSON(w, out)
}

// sessionHistory returns the cached aggregation for the session's
// user, fetching and rebuilding it when missing. Mutations invalidate
// the entry so a hit is never staler than the last write from this
// server.
func (s *Server) sessionHistory(r *http.Request, sess *session.Session) (history.History, error) {
	if h, ok := s.historyCache.Get(sess.Backend.User.ID); ok {
		return h, nil
	}
	records, err := s.api.All(r.Context())
	if err != nil {
		return history.History{}, err
	}
	h := history.Aggregate(records)
	s.historyCache.Set(sess.Backend.User.ID, h)
	return h, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
