package shmkv

import "errors"

// Sentinel errors returned by table operations.
//
// Callers should use [errors.Is] to check error kinds:
//
//	if errors.Is(err, shmkv.ErrNotFound) {
//	    // key absent
//	}
var (
	// ErrNotFound indicates the key is absent on an op that requires presence.
	// Never fatal.
	ErrNotFound = errors.New("shmkv: not found")

	// ErrDuplicate indicates add() was called on a key that is already Occupied.
	// Never fatal.
	ErrDuplicate = errors.New("shmkv: duplicate key")

	// ErrNoSpace indicates a value exceeded ValueCap-1 bytes or the table has
	// no room for another live entry. Never fatal. A rehash that cannot place
	// every live entry panics instead of returning it - see rehash.
	ErrNoSpace = errors.New("shmkv: no space")

	// ErrClosed indicates an operation on a [Table] after [Table.Close].
	ErrClosed = errors.New("shmkv: table closed")

	// ErrInvalidInput indicates a malformed argument. No table operation
	// returns it; a value equal to or longer than ValueCap is reported as
	// [ErrNoSpace].
	ErrInvalidInput = errors.New("shmkv: invalid input")

	// ErrBootstrap indicates the segment could not be opened, created,
	// truncated, or mapped. Per the error handling design, this is always
	// fatal to the calling process - the table's invariants cannot hold
	// without a mapped segment.
	ErrBootstrap = errors.New("shmkv: segment bootstrap failed")
)

// Return codes of the stable external surface (Part I §6). Not used inside
// the core - callers that need the numeric surface (e.g. a future C-ABI
// shim) should call [Code] at the boundary instead of growing an internal
// dependency on these constants.
const (
	CodeOK        int32 = 0
	CodeNotFound  int32 = -1
	CodeNoSpace   int32 = -2
	CodeDuplicate int32 = -3
)

// Code maps an error returned by a table operation onto the stable integer
// return-code surface. A nil error maps to CodeOK, and errors wrapping
// ErrNotFound, ErrDuplicate, or ErrNoSpace map to their own codes. Any
// other error (e.g. ErrClosed or ErrBootstrap) also maps to CodeNoSpace, so
// Code only distinguishes the three non-fatal outcomes.
func Code(err error) int32 {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicate):
		return CodeDuplicate
	case errors.Is(err, ErrNoSpace):
		return CodeNoSpace
	default:
		return CodeNoSpace
	}
}
