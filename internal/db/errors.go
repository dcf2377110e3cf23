package db

import "errors"

// Sentinel errors for backend operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
)

// Op constants name backend operations for error context.
const (
	OpPing        = "PING"
	OpGet         = "GET"
	OpSet         = "SET"
	OpSearch      = "_search"
	OpIndexExists = "HEAD index"
	OpCreateIndex = "PUT index"
	OpBulk        = "_bulk"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
