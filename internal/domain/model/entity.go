package model

import "errors"

// ErrNotFound is returned by fetchers when the remote object no longer exists.
var ErrNotFound = errors.New("entity not found")

// Ref addresses a remote object that was delivered without its fields.
// Which of GuildID/ChannelID is required depends on the object kind.
type Ref struct {
	GuildID   string
	ChannelID string
	ID        string
}

// Entity is an explicit two-state handle: either a fully populated value
// (Complete) or a bare reference that needs one fetch to complete (Reference).
//
// [ZERO_VALUE] An Entity that is neither carries no usable identity and is
// treated as "not found" by the resolver.
type Entity[T any] struct {
	value *T
	ref   Ref
}

// Complete wraps an already populated object.
func Complete[T any](v *T) Entity[T] {
	return Entity[T]{value: v}
}

// Reference wraps an identity that still has to be fetched.
func Reference[T any](ref Ref) Entity[T] {
	return Entity[T]{ref: ref}
}

// Value returns the populated object if the entity is complete.
func (e Entity[T]) Value() (*T, bool) {
	return e.value, e.value != nil
}

// Ref returns the reference of a partial entity.
func (e Entity[T]) Ref() Ref { return e.ref }

// IsReference reports whether the entity must be fetched before use.
func (e Entity[T]) IsReference() bool {
	return e.value == nil && e.ref.ID != ""
}
