package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"expensebook/internal/backend"
	"expensebook/internal/core"
	"expensebook/internal/dashboard"
	applog "expensebook/internal/log"
	"expensebook/internal/session"
)

type expenseRow struct {
	Index         int
	ID            string
	Title         string
	Amount        string
	Category      string
	Date          string
	PendingDelete bool
}

type expenseListData struct {
	Rows  []expenseRow
	Error string
}

type expenseFormData struct {
	Draft   *dashboard.Draft
	Editing bool
	Error   string
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.render(w, r, "dashboard_page", struct{ User string }{User: sess.Backend.User.Username})
}

// handleExpenseList refetches and renders the recent expense list.
// Mutation handlers fire expenses:changed rather than rendering rows
// themselves, so this is the single place list state becomes HTML.
func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	model := sess.Model(s.api)
	data := expenseListData{}
	if err := model.Refresh(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Expense list refresh failed", applog.FieldError, err)
		data.Error = "Could not load expenses"
	}
	data.Rows = expenseRows(model)
	s.render(w, r, "expense_list", data)
}

func expenseRows(model *dashboard.Model) []expenseRow {
	items := model.Items()
	rows := make([]expenseRow, len(items))
	for i, rec := range items {
		rows[i] = expenseRow{
			Index:         i,
			ID:            rec.ID,
			Title:         rec.Title,
			Amount:        formatAmount(rec.Amount),
			Category:      rec.Category,
			Date:          rec.Timestamp.Wire(),
			PendingDelete: model.PendingDelete(i),
		}
	}
	return rows
}

func (s *Server) handleExpenseNew(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	model := sess.Model(s.api)
	model.BeginCreate()
	s.render(w, r, "expense_form", expenseFormData{Draft: model.Draft()})
}

func (s *Server) handleExpenseEdit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	index, ok := formIndex(w, r)
	if !ok {
		return
	}

	model := sess.Model(s.api)
	if err := model.BeginEdit(index); err != nil {
		BadRequestError("That expense no longer exists").Write(w)
		return
	}
	s.render(w, r, "expense_form", expenseFormData{Draft: model.Draft(), Editing: true})
}

func (s *Server) handleExpenseField(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}

	model := sess.Model(s.api)
	err := model.UpdateDraftField(r.Form.Get("field"), sanitizeInput(r.Form.Get("value")))
	if err != nil {
		BadRequestError("No form open").Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExpenseCancel(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	sess.Model(s.api).CancelDraft()
	NewHTMXResponse().TriggerDraftClosed().Write(w)
}

func (s *Server) handleExpenseSubmit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}

	model := sess.Model(s.api)
	// The form posts all fields at once; fold them into the draft
	// before submitting so typed values survive a validation failure.
	for _, field := range []string{"title", "amount", "category", "date"} {
		if r.Form.Has(field) {
			if err := model.UpdateDraftField(field, sanitizeInput(r.Form.Get(field))); err != nil {
				BadRequestError("No form open").Write(w)
				return
			}
		}
	}

	editing := model.Editing() != ""
	var err error
	if editing {
		err = model.SubmitEdit(r.Context())
	} else {
		err = model.SubmitCreate(r.Context())
	}

	if err != nil {
		switch {
		case errors.Is(err, dashboard.ErrRefreshFailed):
			// The write landed; only the reload failed. Closing the
			// draft here keeps a retry from double-creating.
			s.afterMutation(sess)
			NewHTMXResponse().
				TriggerExpensesChanged().
				TriggerDraftClosed().
				TriggerNotification(NotificationWarning, "Expense saved, but the list could not be reloaded", 5000).
				Write(w)
		case errors.Is(err, dashboard.ErrBusy):
			NewHTMXResponse().
				Status(http.StatusConflict).
				TriggerErrorNotification("Still saving, hang on").
				Write(w)
		case errors.Is(err, backend.ErrUnavailable):
			s.render(w, r, "expense_form", expenseFormData{
				Draft:   model.Draft(),
				Editing: editing,
				Error:   "The expense service is unreachable. Your input is kept.",
			})
		default:
			s.render(w, r, "expense_form", expenseFormData{
				Draft:   model.Draft(),
				Editing: editing,
				Error:   submitFailureMessage(err),
			})
		}
		return
	}

	s.afterMutation(sess)
	NewHTMXResponse().
		TriggerExpensesChanged().
		TriggerDraftClosed().
		TriggerSuccessNotification("Expense saved").
		Write(w)
}

func (s *Server) handleExpenseDelete(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	index, ok := formIndex(w, r)
	if !ok {
		return
	}

	model := sess.Model(s.api)
	if err := model.Remove(r.Context(), index); err != nil {
		s.logger.ErrorContext(r.Context(), "Expense delete failed", "index", index, applog.FieldError, err)
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerExpensesChanged().
			TriggerErrorNotification("Could not delete the expense").
			Write(w)
		return
	}

	s.afterMutation(sess)
	NewHTMXResponse().
		TriggerExpensesChanged().
		TriggerSuccessNotification("Expense deleted").
		Write(w)
}

func (s *Server) handleExpenseReorder(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}
	from, err1 := strconv.Atoi(r.Form.Get("from"))
	to, err2 := strconv.Atoi(r.Form.Get("to"))
	if err1 != nil || err2 != nil {
		BadRequestError("Invalid positions").Write(w)
		return
	}

	model := sess.Model(s.api)
	if err := model.Reorder(from, to); err != nil {
		BadRequestError("Invalid positions").Write(w)
		return
	}
	s.render(w, r, "expense_list", expenseListData{Rows: expenseRows(model)})
}

func (s *Server) handleLatestMonthTotal(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	total, err := s.api.LatestMonthTotal(r.Context())
	data := struct {
		Total   string
		HasData bool
		Error   string
	}{Total: formatAmount(total), HasData: total.Cents > 0}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Latest month total failed", applog.FieldError, err)
		data.Error = "unavailable"
	}
	s.render(w, r, "total_hero", data)
}

// afterMutation drops the cached history aggregate and rechecks the
// budget in the background. The request finishes without waiting.
func (s *Server) afterMutation(sess *session.Session) {
	s.historyCache.Delete(sess.Backend.User.ID)

	if s.monitor == nil {
		return
	}
	user := sess.Backend.User
	ctx := backend.WithSession(context.Background(), sess.Backend)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.monitor.Check(ctx, user); err != nil {
			s.logger.Error("Budget check failed", applog.FieldUserID, user.ID, applog.FieldError, err)
		}
	}()
}

func submitFailureMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a positive number"
	case errors.Is(err, core.ErrInvalidTimestamp):
		return "Date must be a valid date"
	case errors.Is(err, core.ErrEmptyTitle):
		return "Title is required"
	case errors.Is(err, core.ErrEmptyCategory):
		return "Category is required"
	case errors.Is(err, backend.ErrRejected):
		return rejectionMessage(err)
	default:
		return "Could not save the expense"
	}
}

func formIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return 0, false
	}
	index, err := strconv.Atoi(r.Form.Get("index"))
	if err != nil || index < 0 {
		BadRequestError("Invalid index").Write(w)
		return 0, false
	}
	return index, true
}
