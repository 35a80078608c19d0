package capture

import "errors"

var (
	// ErrInvalidSource is returned when a reader is asked to activate a
	// source it does not own.
	ErrInvalidSource = errors.New("source is not owned by this reader")

	// ErrNotConnected is returned when recording or ingesting on a live
	// source that is disconnected.
	ErrNotConnected = errors.New("live source is not connected")

	// ErrAlreadyRecording is returned by StartRecording while a recording
	// session is open.
	ErrAlreadyRecording = errors.New("recording already in progress")

	// ErrNotRecording is returned by StopRecording when no session is open.
	ErrNotRecording = errors.New("no recording in progress")

	// ErrBufferNotFound is returned when a buffer name is not in the store.
	ErrBufferNotFound = errors.New("buffer not found")

	// ErrBufferNotOwned is returned when selecting a buffer that belongs to
	// another store.
	ErrBufferNotOwned = errors.New("buffer does not belong to the source's store")

	// ErrNoBufferSelected is returned by StartPlayback with no selection.
	ErrNoBufferSelected = errors.New("no buffer selected")

	// ErrAlreadyPlaying is returned by StartPlayback while playing.
	ErrAlreadyPlaying = errors.New("playback already in progress")

	// ErrNoBufferStore is returned when an operation needs a buffer store
	// and none has been assigned yet.
	ErrNoBufferStore = errors.New("no buffer store assigned")

	// ErrDuplicateBufferName is returned when a store already holds a
	// buffer with the requested name.
	ErrDuplicateBufferName = errors.New("buffer name already exists in store")

	// ErrInvalidBufferName is returned for empty buffer names.
	ErrInvalidBufferName = errors.New("buffer name must not be empty")
)
