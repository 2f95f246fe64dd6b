package database

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrDuplicatePhone         = errors.New("phone already registered")
	ErrEquipmentBusy          = errors.New("equipment not available")
	ErrEquipmentEngaged       = errors.New("equipment has active requests")
	ErrConcurrentModification = errors.New("record was modified concurrently")
)

// uniqueViolation maps a sqlite UNIQUE failure on users to a sentinel.
func uniqueViolation(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return nil
	}
	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "users.email"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "users.phone"):
		return ErrDuplicatePhone
	}
	return nil
}
