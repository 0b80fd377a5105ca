package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldAccountID   = "account_id"
	FieldDay         = "day"
	FieldAmountCents = "amount_cents"
	FieldExpenseID   = "expense_id"
	FieldTemplateID  = "template_id"
	FieldGranularity = "granularity"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentStore        = "store"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentMaterializer = "materializer"
	ComponentCache        = "cache"
	ComponentTrace        = "trace"
)

// Operations defines standard operation names
const (
	OpRecord      = "record"
	OpRead        = "read"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpExpand      = "expand"
	OpInvalidate  = "invalidate"
	OpMaterialize = "materialize"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAccount adds the account scope field
func (f LogFields) WithAccount(accountID int64) LogFields {
	f[FieldAccountID] = accountID
	return f
}

// WithOccurrence adds occurrence-related fields
func (f LogFields) WithOccurrence(id int64, day string, amountCents int64) LogFields {
	f[FieldExpenseID] = id
	f[FieldDay] = day
	f[FieldAmountCents] = amountCents
	return f
}

// WithTemplate adds recurring-template fields
func (f LogFields) WithTemplate(id int64, anchor string, granularity string) LogFields {
	f[FieldTemplateID] = id
	f[FieldDay] = anchor
	f[FieldGranularity] = granularity
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
