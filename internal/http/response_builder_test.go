package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeTriggers(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	header := rec.Header().Get("HX-Trigger")
	if header == "" {
		t.Fatal("no HX-Trigger header set")
	}
	var triggers map[string]any
	if err := json.Unmarshal([]byte(header), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not valid JSON: %v", err)
	}
	return triggers
}

func TestExpensesChangedAlsoRefreshesTotal(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().TriggerExpensesChanged().Write(rec)

	triggers := decodeTriggers(t, rec)
	for _, name := range []string{"expenses:changed", "total:refresh"} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("missing trigger %q in %v", name, triggers)
		}
	}
}

func TestNotificationCarriesTypeAndMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().TriggerErrorNotification("boom").Write(rec)

	triggers := decodeTriggers(t, rec)
	payload, ok := triggers["show-notification"].(map[string]any)
	if !ok {
		t.Fatalf("show-notification payload missing: %v", triggers)
	}
	if payload["type"] != "error" || payload["message"] != "boom" {
		t.Errorf("payload = %v, want type error with message boom", payload)
	}
}

func TestStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().
		Status(http.StatusUnprocessableEntity).
		BodyHTML("<p>nope</p>").
		Write(rec)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if got := rec.Body.String(); got != "<p>nope</p>" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestErrorResponseEscapesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequestError("<script>alert(1)</script>").Write(rec)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<script>") {
		t.Errorf("message was not escaped: %q", rec.Body.String())
	}
}
