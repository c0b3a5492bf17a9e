// Package services defines the business logic for changing-room sessions,
// their items, and the downstream basket, back-of-house and shrinkage
// records. This file centralizes service-level error values and the typed
// errors that carry entity context, so that callers can branch with
// errors.Is / errors.As and render a precise message.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Error classes. Every typed error below matches exactly one of these
// through errors.Is.
var (
	// ErrConflict marks a uniqueness or exclusivity violation (duplicate open
	// tag, duplicate basket for a session).
	ErrConflict = errors.New("conflict")

	// ErrState marks an action attempted from a state that forbids it.
	ErrState = errors.New("invalid state")

	// ErrNotFound marks a missing session, item, basket, entry, or a barcode
	// that is not part of the session.
	ErrNotFound = errors.New("not found")
)

// Validation errors.
var (
	// ErrEmptyTag is returned when a tag scan is blank after normalization.
	ErrEmptyTag = errors.New("tag is empty")

	// ErrEmptyBarcode is returned when an item scan is blank after
	// normalization.
	ErrEmptyBarcode = errors.New("barcode is empty")

	// ErrInvalidActor is returned when a mutating call carries no actor id
	// or store id.
	ErrInvalidActor = errors.New("actor id and store id are required")

	// ErrInvalidOutcome is returned for an outcome outside the allowed set
	// for the operation.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrInvalidDisposition is returned when a basket disposition is not
	// abandoned or transferred.
	ErrInvalidDisposition = errors.New("disposition must be abandoned or transferred")

	// ErrInvalidUrgency is returned for an urgency filter other than
	// normal, warning or critical.
	ErrInvalidUrgency = errors.New("urgency must be normal, warning or critical")
)

// Entity names used in typed errors.
const (
	EntitySession     = "session"
	EntityItem        = "item"
	EntityBasket      = "basket"
	EntityBackOfHouse = "back_of_house_entry"
	EntityShrinkage   = "shrinkage_entry"
)

// ConflictError reports a violated uniqueness invariant.
type ConflictError struct {
	Entity string
	ID     string // id or natural key (for example the tag)
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

// Is makes errors.Is(err, ErrConflict) true.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StateError reports a forbidden transition.
type StateError struct {
	Entity    string
	ID        string
	From      string // current state
	Attempted string // requested action or target state
	Reason    string // optional detail
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("%s %s: cannot %s from %s", e.Entity, e.ID, e.Attempted, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrState) true.
func (e *StateError) Is(target error) bool { return target == ErrState }

// NotFoundError reports a missing entity. Key names what was looked up.
type NotFoundError struct {
	Entity string
	Key    string
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s: %s", e.Entity, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
