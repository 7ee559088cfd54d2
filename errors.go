package tracker

import "fmt"

// ValidationError reports a malformed request. It is always raised before
// any mutation, so a caller receiving one knows the ledger is untouched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// validationf builds a ValidationError from a format string.
func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown account, asset, or transaction id.
// Batch recalculation degrades it to a skipped position; single-row
// operations (transfer resolution, reconciliation) fail hard with it.
type NotFoundError struct {
	Kind string // "account", "asset", "transaction"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func notFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }
