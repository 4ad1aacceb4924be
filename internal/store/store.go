// Package store is the credential persistence core: a relational backend
// with schema-drift tolerance, an in-process fallback store, and a manager
// that composes the two so account operations keep working while the
// database is unreachable or behind on schema.
package store

import (
	"errors"
	"time"

	"github.com/oHaruki/SmurfMGT/internal/models"
)

var (
	// ErrNotFound indicates no matching owner-scoped record in either backend.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict indicates a duplicate unique key (user registration,
	// flair assignment).
	ErrConflict = errors.New("store: conflict")

	// errBackend marks relational failures that are recovered internally
	// by falling through to the fallback store. It never escapes the
	// package.
	errBackend = errors.New("store: relational backend unavailable")
)

// isBackendFailure reports whether err is a recoverable relational failure
// (connectivity or schema drift) rather than a semantic outcome.
func isBackendFailure(err error) bool {
	return errors.Is(err, errBackend)
}

// AccountView is an account merged across backends and enriched with the
// derived fields handed to the HTTP layer.
type AccountView struct {
	models.Account
	Flairs            []string `json:"flairs"`
	DecryptedPassword string   `json:"decrypted_password,omitempty"`
}

// NewAccountParams carries the caller-supplied fields of a create intent.
type NewAccountParams struct {
	OwnerID       uint64
	LoginUsername string
	LoginPassword string
	SummonerName  string
	Server        string
}

// AccountPatch carries the mutable fields of an update intent. Nil fields
// are left untouched.
type AccountPatch struct {
	Favorite     *bool
	Rank         *string
	RankDivision *string
}

func (p AccountPatch) isEmpty() bool {
	return p.Favorite == nil && p.Rank == nil && p.RankDivision == nil
}

// hasNonFavorite reports whether the patch touches anything beyond the
// favorite flag, which follows a separate write policy.
func (p AccountPatch) hasNonFavorite() bool {
	return p.Rank != nil || p.RankDivision != nil
}

// overlay is the sparse set of mutable fields the fallback store keeps for
// accounts whose primary record may live relationally. Merged over the
// base record at read time.
type overlay struct {
	Favorite     *bool
	Rank         *string
	RankDivision *string
	LastModified *time.Time
}

func (o *overlay) apply(acc *models.Account) {
	if o == nil {
		return
	}
	if o.Favorite != nil {
		acc.Favorite = *o.Favorite
	}
	if o.Rank != nil {
		acc.Rank = *o.Rank
	}
	if o.RankDivision != nil {
		acc.RankDivision = *o.RankDivision
	}
	if o.LastModified != nil {
		acc.LastModified = o.LastModified
	}
}
