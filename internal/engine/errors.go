package engine

import (
	"errors"
	"fmt"

	"github.com/scrypster/reverie/internal/retry"
	"github.com/scrypster/reverie/internal/storage"
)

// ErrValidation marks requests rejected before any collaborator was called.
var ErrValidation = errors.New("validation failed")

// Stage names the pipeline step an error came from.
type Stage string

// Pipeline stages, in execution order.
const (
	StageParse    Stage = "parse"
	StageEmbed    Stage = "embed"
	StageRetrieve Stage = "retrieve"
	StageProfile  Stage = "profile"
	StagePrompt   Stage = "prompt"
	StageGenerate Stage = "generate"
	StageStream   Stage = "stream"
	StageStore    Stage = "store"
)

// StageError wraps a collaborator failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StageOf returns the stage recorded in err, or "" when there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// classifyStoreErr stops retries on errors a second attempt cannot fix.
func classifyStoreErr(err error) error {
	if err != nil && (errors.Is(err, storage.ErrInvalidInput) || errors.Is(err, storage.ErrNotFound)) {
		return retry.Permanent(err)
	}
	return err
}
