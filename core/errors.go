// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
)

// Error kinds
var (
	// ErrValidation indicates the input was malformed. Retrying cannot help.
	ErrValidation = errors.New("validation error")

	// ErrCapability indicates an external capability (storage, embedding
	// provider, index backend) failed. These are the only retryable errors.
	ErrCapability = errors.New("capability error")

	// ErrPrecondition indicates an upstream artifact is missing or unusable.
	ErrPrecondition = errors.New("precondition failed")
)

// Per-stage failures
var (
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrEmbeddingStageFailed = errors.New("embedding stage failed")
	ErrIndexingStageFailed  = errors.New("indexing stage failed")
	ErrSummaryStageFailed   = errors.New("summary stage failed")

	// ErrNoEmbeddings is wrapped by the indexing stage when the embeddings
	// artifact holds no vectors.
	ErrNoEmbeddings = errors.New("no embeddings to index")

	// ErrUnknownStage is returned for a stage name outside Stages.
	ErrUnknownStage = errors.New("unknown stage")

	errInvalidLength = errors.New("invalid length")
)

// ErrorKind classifies a StageError.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindCapability   ErrorKind = "capability"
	KindPrecondition ErrorKind = "precondition"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindCapability:
		return ErrCapability
	case KindPrecondition:
		return ErrPrecondition
	}
	return nil
}

// StageError is the error every stage returns. errors.Is matches the
// stage's failure sentinel, the kind sentinel and anything in the wrapped
// cause chain.
type StageError struct {
	Stage StageName
	Kind  ErrorKind
	Err   error
}

// NewStageError builds a StageError. Formatting follows fmt.Errorf, so %w
// verbs keep the cause matchable.
func NewStageError(stage StageName, kind ErrorKind, format string, args ...any) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", StageSentinel(e.Stage), e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", StageSentinel(e.Stage), e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (e *StageError) Is(target error) bool {
	if target == nil {
		return false
	}
	if s := StageSentinel(e.Stage); s != nil && target == s {
		return true
	}
	return target == e.Kind.sentinel()
}

// StageSentinel returns the failure sentinel of a stage.
func StageSentinel(stage StageName) error {
	switch stage {
	case StageExtraction:
		return ErrExtractionFailed
	case StageEmbeddings:
		return ErrEmbeddingStageFailed
	case StageIndexing:
		return ErrIndexingStageFailed
	case StageSummary:
		return ErrSummaryStageFailed
	}
	return ErrUnknownStage
}

// IsRetryable reports whether err is a capability failure. Validation and
// precondition failures are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind == KindCapability
	}
	return errors.Is(err, ErrCapability)
}
