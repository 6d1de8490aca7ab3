package app

import (
	"errors"

	"github.com/drosenbaum/shiurcast/internal/ports"
)

var (
	ErrNotFound = ports.ErrNotFound
	ErrConflict = ports.ErrConflict
)

// Error kinds. Closed set: every failure the engine logs or persists carries
// one of these.
const (
	KindNetwork    = "network"
	KindStorage    = "storage"
	KindIO         = "io"
	KindPermission = "permission"
	KindConflict   = "conflict"
	KindInvalid    = "invalid"
)

// CodedError porte un kind stable, décodé aux frontières d'orchestration au
// lieu de deviner la forme d'une erreur inconnue.
type CodedError struct {
	Kind    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CodedError) Unwrap() error { return e.Err }

func Coded(kind, message string, err error) *CodedError {
	return &CodedError{Kind: kind, Message: message, Err: err}
}

// KindOf extrait le kind d'une erreur, "" si elle n'est pas codée.
func KindOf(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
