package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldUserID        = "user_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldTransferID    = "transfer_id"
	FieldFromAccountID = "from_account_id"
	FieldToAccountID   = "to_account_id"
	FieldAmount        = "amount"
	FieldBalance       = "balance"
	FieldCurrency      = "currency"
	FieldDate          = "date"
	FieldScheduledAt   = "scheduled_at"
	FieldDuration      = "duration_ms"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldJob           = "job"
	FieldRunID         = "run_id"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentLedger       = "ledger"
	ComponentTransfer     = "transfer"
	ComponentInterest     = "interest"
	ComponentNotification = "notification"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentCache        = "cache"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpAccrue   = "accrue"
	OpDispatch = "dispatch"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
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

// WithError adds the error and its category.
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the owning user.
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithAccount adds account fields; an empty currency is omitted.
func (f LogFields) WithAccount(accountID, currency string) LogFields {
	f[FieldAccountID] = accountID
	if currency != "" {
		f[FieldCurrency] = currency
	}
	return f
}

// WithTransfer adds the transfer and both of its accounts.
func (f LogFields) WithTransfer(transferID, fromAccountID, toAccountID string) LogFields {
	f[FieldTransferID] = transferID
	f[FieldFromAccountID] = fromAccountID
	f[FieldToAccountID] = toAccountID
	return f
}

// WithJob adds the worker job and the id of one of its runs.
func (f LogFields) WithJob(name, runID string) LogFields {
	f[FieldJob] = name
	f[FieldRunID] = runID
	return f
}

// WithAmount adds a monetary amount in its canonical string form.
func (f LogFields) WithAmount(amount string) LogFields {
	f[FieldAmount] = amount
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
