package room

import "errors"

var (
	// ErrRoomNotFound means the record is absent or was never created.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomAlreadyExists means create was called on an initialized room.
	ErrRoomAlreadyExists = errors.New("room already exists")

	// ErrForbidden means a non-moderator attempted a moderator-only change.
	ErrForbidden = errors.New("only the moderator can change room settings")

	// ErrStorageUnavailable means the durable store failed. The enclosing
	// operation is aborted without any partial write.
	ErrStorageUnavailable = errors.New("room storage unavailable")
)
