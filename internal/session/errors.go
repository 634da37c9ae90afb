package session

import "errors"

var (
	// ErrSessionBusy is returned when the session file is held by another
	// process's advisory lock (§4.4 "Append operation").
	ErrSessionBusy = errors.New("session: file is locked by another process")
	// ErrSessionCorrupt is returned when the first line is missing or is
	// not a valid session header (§4.4 "Load operation").
	ErrSessionCorrupt = errors.New("session: missing or invalid header")
	// ErrUnknownParent is returned by Fork/AppendMessage when the given
	// parent id does not exist in the tree.
	ErrUnknownParent = errors.New("session: unknown parent id")
	// ErrDuplicateID is returned when a record's id collides with one
	// already present (I2).
	ErrDuplicateID = errors.New("session: duplicate message id")
)
