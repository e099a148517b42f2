package credentials

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a store failure
type ErrorType int

const (
	// ErrTypeInvalidSlot indicates a slot index outside 0..1
	ErrTypeInvalidSlot ErrorType = iota
	// ErrTypeIO indicates the backing file or database could not be read or written
	ErrTypeIO
	// ErrTypeCorrupt indicates stored data could not be decoded
	ErrTypeCorrupt
)

func (et ErrorType) String() string {
	switch et {
	case ErrTypeInvalidSlot:
		return "Invalid Slot"
	case ErrTypeIO:
		return "Storage I/O Error"
	case ErrTypeCorrupt:
		return "Corrupt Store"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// StoreError is returned by every Store backend.
type StoreError struct {
	Type    ErrorType
	Message string
	Path    string
	Err     error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewInvalidSlotError creates an error for an out-of-range slot index
func NewInvalidSlotError(index int) *StoreError {
	return &StoreError{
		Type:    ErrTypeInvalidSlot,
		Message: fmt.Sprintf("slot index %d out of range", index),
	}
}

// NewIOError creates an error for a failed read or write
func NewIOError(message, path string, err error) *StoreError {
	return &StoreError{Type: ErrTypeIO, Message: message, Path: path, Err: err}
}

// NewCorruptError creates an error for undecodable stored data
func NewCorruptError(message, path string, err error) *StoreError {
	return &StoreError{Type: ErrTypeCorrupt, Message: message, Path: path, Err: err}
}

func isType(err error, t ErrorType) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Type == t
}

// IsInvalidSlotError checks if err is an invalid slot error
func IsInvalidSlotError(err error) bool { return isType(err, ErrTypeInvalidSlot) }

// IsIOError checks if err is a storage I/O error
func IsIOError(err error) bool { return isType(err, ErrTypeIO) }

// IsCorruptError checks if err is a decoding error
func IsCorruptError(err error) bool { return isType(err, ErrTypeCorrupt) }
