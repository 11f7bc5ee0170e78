package http

import (
	"errors"
	"net/http"

	"expensebook/internal/core"
	"expensebook/internal/session"
	"expensebook/internal/subscriptions"
)

type subscriptionRow struct {
	ID         string
	Title      string
	Amount     string
	Category   string
	Interval   string
	NextCharge string
	Active     bool
}

type subscriptionListData struct {
	Rows  []subscriptionRow
	Error string
}

func (s *Server) handleSubscriptionsPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.render(w, r, "subscriptions_page", struct{ User string }{User: sess.Backend.User.Username})
}

func (s *Server) handleSubscriptionList(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	s.render(w, r, "subscription_list", subscriptionListData{
		Rows: subscriptionRows(s.subs.List(sess.Backend.User.ID)),
	})
}

func subscriptionRows(subs []subscriptions.Subscription) []subscriptionRow {
	rows := make([]subscriptionRow, len(subs))
	for i, sub := range subs {
		rows[i] = subscriptionRow{
			ID:         sub.ID,
			Title:      sub.Title,
			Amount:     formatAmount(sub.Amount),
			Category:   sub.Category,
			Interval:   string(sub.Interval),
			NextCharge: sub.NextCharge.Wire(),
			Active:     sub.Active,
		}
	}
	return rows
}

func (s *Server) handleSubscriptionAdd(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}

	cents, err := core.ParseDecimalToCents(sanitizeInput(r.Form.Get("amount")))
	if err != nil {
		UnprocessableEntityError("Amount must be a positive number").Write(w)
		return
	}
	start, err := core.ParseTimestamp(sanitizeInput(r.Form.Get("start")))
	if err != nil {
		UnprocessableEntityError("Start date must be a valid date").Write(w)
		return
	}

	_, err = s.subs.Add(
		sess.Backend.User.ID,
		sanitizeInput(r.Form.Get("title")),
		core.Money{Cents: cents},
		sanitizeInput(r.Form.Get("category")),
		core.Interval(r.Form.Get("interval")),
		start,
	)
	if err != nil {
		if errors.Is(err, subscriptions.ErrBadInterval) {
			UnprocessableEntityError("Interval must be monthly or yearly").Write(w)
			return
		}
		UnprocessableEntityError(rejectionMessage(err)).Write(w)
		return
	}

	NewHTMXResponse().
		TriggerSubscriptionsChanged().
		TriggerSuccessNotification("Subscription added").
		Write(w)
}

func (s *Server) handleSubscriptionDelete(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}

	if err := s.subs.Remove(sess.Backend.User.ID, r.Form.Get("id")); err != nil {
		BadRequestError("Subscription not found").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerSubscriptionsChanged().
		TriggerSuccessNotification("Subscription removed").
		Write(w)
}

func (s *Server) handleSubscriptionToggle(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}

	active := r.Form.Get("active") == "true"
	if err := s.subs.SetActive(sess.Backend.User.ID, r.Form.Get("id"), active); err != nil {
		BadRequestError("Subscription not found").Write(w)
		return
	}
	NewHTMXResponse().TriggerSubscriptionsChanged().Write(w)
}
