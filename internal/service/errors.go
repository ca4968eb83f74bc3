package service

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is missing or invalid input. Fields maps field name → message.
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return e.Msg + " (" + strings.Join(parts, ", ") + ")"
}

func newValidation(msg string, fields map[string]string) *ValidationError {
	if fields == nil {
		fields = map[string]string{}
	}
	return &ValidationError{Msg: msg, Fields: fields}
}

// PersistenceError wraps a database failure. Its message is never shown to clients.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// UploadError is a blob storage failure. The order or product was not written.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "no se pudo subir el archivo: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// ConflictError means the write lost against concurrent state (second open
// shift, order already moved, operation already running).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// TransitionError is a status change outside the order state machine.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transición no permitida: %s → %s", e.From, e.To)
}

type NotFoundError struct {
	Recurso string
}

func (e *NotFoundError) Error() string { return e.Recurso + " no encontrado" }

var (
	ErrCredenciales = errors.New("credenciales inválidas")
	ErrPermisos     = errors.New("permisos insuficientes")
)
