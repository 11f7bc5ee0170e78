package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"

	FieldUserID         = "user_id"
	FieldSubscriptionID = "subscription_id"
	FieldExpenseID      = "expense_id"
	FieldTitle          = "title"
	FieldAmountCents    = "amount_cents"
	FieldCategory       = "category"
	FieldMonth          = "month"
	FieldUserAgent      = "user_agent"
)

// Components defines standard component names
const (
	ComponentApp           = "app"
	ComponentHTTP          = "http"
	ComponentSubscriptions = "subscriptions"
	ComponentAlerts        = "alerts"
)
