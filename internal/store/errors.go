package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique constraint.
// Postgres enforces the users.email unique index, so a registration race
// surfaces here regardless of any earlier existence check.
var ErrDuplicate = errors.New("duplicate record")

const pqUniqueViolation = "23505"

func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicate
	}
	return err
}
