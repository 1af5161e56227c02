package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/diewo77/bilan-portal/internal/validation"
)

var (
	ErrNotFound = errors.New("client_not_found")
	ErrStorage  = errors.New("storage_failure")
)

// ValidationError is returned before any write when input fails validation.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, code := range e.Violations {
		fields = append(fields, f+"="+code)
	}
	sort.Strings(fields)
	return "validation_failed: " + strings.Join(fields, ", ")
}

// StorageError wraps a database failure with the operation and client it concerns.
type StorageError struct {
	Op       string
	ClientID string
	Err      error
}

func (e *StorageError) Error() string {
	if e.ClientID != "" {
		return fmt.Sprintf("%s client %s: %v", e.Op, e.ClientID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// SQLState returns the postgres error code carried by err, if any.
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func storageErr(op, clientID string, err error) error {
	return &StorageError{Op: op, ClientID: clientID, Err: err}
}
