package grove

import "errors"

//goland:noinspection GoUnusedGlobalVariable
var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrUnorderableKey = errors.New("key is not orderable under the tree comparator")
	ErrFrozenTree     = errors.New("tree is frozen")
	ErrInvalidRange   = errors.New("range low bound is greater than high bound")
	ErrIllegalEdit    = errors.New("illegal mutation during edit-range")

	ErrComparatorMismatch = errors.New("trees do not share a comparator")

	// ErrStop ends a diff walk early. DiffAgainst swallows it and returns nil.
	ErrStop = errors.New("stop")

	ErrNoStore     = errors.New("no blob store attached")
	ErrNotFound    = errors.New("blob not found")
	ErrCorruptNode = errors.New("node blob is corrupt")
)
