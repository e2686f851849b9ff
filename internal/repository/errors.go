package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// Sentinel errors shared by all repositories.
var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness guard rejected the write.
	ErrConflict = errors.New("record conflicts with existing row")
)

// notFound translates pgx.ErrNoRows into ErrNotFound and passes other errors through.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
