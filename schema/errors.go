package schema

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match on these with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrData              = errors.New("data error")
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
	ErrSampler           = errors.New("sampler error")
)

// StageError wraps a failure with the pipeline stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}

// WrapStage tags err with stage. A nil err stays nil and an existing
// StageError keeps its original stage.
func WrapStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, or "" when there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Configf builds a configuration error with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Dataf builds a data error with a formatted message.
func Dataf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrData, fmt.Sprintf(format, args...))
}

// Degeneracyf builds a numeric degeneracy error with a formatted message.
func Degeneracyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNumericDegeneracy, fmt.Sprintf(format, args...))
}

// Samplerf builds a sampler error with a formatted message.
func Samplerf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSampler, fmt.Sprintf(format, args...))
}
