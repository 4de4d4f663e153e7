package crawler

import "errors"

// Configuration errors. They are returned before a run starts.
var (
	ErrInvalidSingle   = errors.New("value can not be smaller than 1")
	ErrEmptyList       = errors.New("entry list is empty")
	ErrInvalidRange    = errors.New("range start can not be bigger than range end")
	ErrDegenerateRange = errors.New("range start can not be equal to range end")
	ErrInvalidMode     = errors.New("unsupported parsing mode")
	ErrNoParser        = errors.New("no parser selected")
	ErrUnknownParser   = errors.New("unknown parser")
	ErrAlreadyStarted  = errors.New("worker already started")
)

// Lookup errors shared by store implementations.
var (
	ErrRunNotFound    = errors.New("run not found")
	ErrRunExists      = errors.New("run already exists")
	ErrObjectNotFound = errors.New("object not found")
)
