package ledger

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
)

// Code identifies a class of validation or lookup failure. Every failure is a
// deterministic function of the request; nothing here is retried.
type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeForbidden         Code = "forbidden"
	CodeInvalidReference  Code = "invalid_reference"
	CodeInvalidShape      Code = "invalid_shape"
	CodeInvalidLineEdit   Code = "invalid_line_edit"
	CodeInvalidOperation  Code = "invalid_operation"
	CodeConflict          Code = "conflict"
	CodeInvalidBatch      Code = "invalid_batch"
	CodeDuplicateImportID Code = "duplicate_import_id"
)

// Error is the ledger's domain error. Handlers translate it to an HTTP
// status; Failures carries per-item reasons for bulk import rejections,
// keyed by item index.
type Error struct {
	Code     Code
	Message  string
	Failures map[int]string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Status() int {
	switch e.Code {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusBadRequest
	}
}

func notFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func invalidReference(msg string) *Error {
	return &Error{Code: CodeInvalidReference, Message: msg}
}

func invalidShape(msg string) *Error {
	return &Error{Code: CodeInvalidShape, Message: msg}
}

func invalidLineEdit(msg string) *Error {
	return &Error{Code: CodeInvalidLineEdit, Message: msg}
}

func invalidOperation(msg string) *Error {
	return &Error{Code: CodeInvalidOperation, Message: msg}
}

func conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

func invalidBatch(failures map[int]string) *Error {
	return &Error{
		Code:     CodeInvalidBatch,
		Message:  "one or more transactions failed validation",
		Failures: failures,
	}
}

func duplicateImportID(msg string) *Error {
	return &Error{Code: CodeDuplicateImportID, Message: msg}
}

// mapImportIDViolation translates a duplicate import_id raised by the
// database into the conflict the pre-insert check reports. The check runs
// before the write transaction, so a concurrent writer with the same
// import_id can still trip the unique constraint.
func mapImportIDViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_transactions_budget_import_id" {
		return conflict("import_id is already in use")
	}
	return err
}
