package gitstore

import "errors"

// Sentinel errors returned by this package. Use errors.Is to test for them;
// underlying git/filesystem failures are wrapped with fmt.Errorf("...: %w")
// around these or around the original error, never re-sentineled.
var (
	// ErrNotFound is returned when a path, ref, or object doesn't exist.
	ErrNotFound = errors.New("gitstore: not found")

	// ErrIsADirectory is returned when a file operation targets a tree.
	ErrIsADirectory = errors.New("gitstore: is a directory")

	// ErrNotADirectory is returned when a directory operation targets a blob
	// or link, or when a multi-source move targets a non-directory.
	ErrNotADirectory = errors.New("gitstore: not a directory")

	// ErrPermission is returned for a mutation attempted on a read-only
	// (tag or detached) snapshot.
	ErrPermission = errors.New("gitstore: permission denied")

	// ErrStaleSnapshot is returned when a commit's compare-and-swap fails
	// because the branch tip moved since the snapshot was read. Retryable.
	ErrStaleSnapshot = errors.New("gitstore: stale snapshot")

	// ErrKeyNotFound is returned by the notes namespace when removing a note
	// that does not exist. NoteDict.Get reports an absent note with ok ==
	// false and a nil error.
	ErrKeyNotFound = errors.New("gitstore: key not found")

	// ErrKeyExists is returned when setting a tag that already exists.
	ErrKeyExists = errors.New("gitstore: key already exists")

	// ErrInvalidPath is returned when path normalization rejects the input.
	ErrInvalidPath = errors.New("gitstore: invalid path")

	// ErrInvalidHash is returned when a string is not 40 lowercase hex chars.
	ErrInvalidHash = errors.New("gitstore: invalid hash")

	// ErrInvalidRefName is returned when a ref name fails validation.
	ErrInvalidRefName = errors.New("gitstore: invalid ref name")

	// ErrBatchClosed is returned by any operation on an already-committed Batch.
	ErrBatchClosed = errors.New("gitstore: batch already closed")

	// ErrCrossRepo is returned when an operation mixes snapshots or refs from
	// two different backing repositories.
	ErrCrossRepo = errors.New("gitstore: snapshot belongs to a different repository")
)
