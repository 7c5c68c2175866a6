package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		}
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// The closed set of datastore errors. Both storage backends return only these
// (possibly wrapped) for expected failures.
var (
	ErrNotFound    = errors.New("NOT_FOUND")
	ErrDuplicate   = errors.New("DUPLICATE")
	ErrCheckFailed = errors.New("CHECK_FAILED")

	ErrInsufficientStock = fmt.Errorf("insufficient stock: %w", ErrCheckFailed)
	ErrInvalidTransition = fmt.Errorf("invalid order status transition: %w", ErrCheckFailed)
	ErrReferenced        = fmt.Errorf("record is still referenced: %w", ErrCheckFailed)
)

// TranslateError maps driver and ORM errors onto the datastore error set.
// Errors that do not belong to the set are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrCheckFailed) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
		case "23514", "23502":
			return fmt.Errorf("%w: %s", ErrCheckFailed, pqErr.Constraint)
		}
	}
	return err
}

// TranslateDeleteError is TranslateError for deletes, where a foreign key
// violation means other rows still point at the record being removed.
func TranslateDeleteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return fmt.Errorf("%w: %s", ErrReferenced, pqErr.Constraint)
	}
	return TranslateError(err)
}
