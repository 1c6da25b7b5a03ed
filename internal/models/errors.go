package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Concrete errors below match these with errors.Is.
var (
	ErrMissingInput      = errors.New("missing input file")
	ErrAmbiguousInput    = errors.New("ambiguous input file")
	ErrEmptyMask         = errors.New("empty reference mask")
	ErrInvalidReference  = errors.New("invalid reference mean")
	ErrGridMismatch      = errors.New("voxel grid mismatch")
	ErrExternalOperation = errors.New("external operation failed")
	ErrMissingArtifact   = errors.New("missing intermediate artifact")
)

// MissingInputError reports a required input that does not exist.
type MissingInputError struct {
	Subject string
	Role    string
	Path    string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: missing %s: expected %s", e.Subject, e.Role, e.Path)
}

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// AmbiguousInputError reports a glob that matched more than one candidate.
type AmbiguousInputError struct {
	Subject string
	Role    string
	Pattern string
	Matches []string
}

func (e *AmbiguousInputError) Error() string {
	return fmt.Sprintf("%s: %d candidates for %s (%s): %s",
		e.Subject, len(e.Matches), e.Role, e.Pattern, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousInputError) Is(target error) bool { return target == ErrAmbiguousInput }

// EmptyMaskError reports a reference mask without a single nonzero voxel.
type EmptyMaskError struct {
	Region string
}

func (e *EmptyMaskError) Error() string {
	return fmt.Sprintf("reference mask %s has no nonzero voxels", e.Region)
}

func (e *EmptyMaskError) Is(target error) bool { return target == ErrEmptyMask }

// InvalidReferenceError reports a reference mean that cannot be used as a
// denominator (zero, negative or NaN).
type InvalidReferenceError struct {
	Region string
	Mean   float64
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("reference mean for %s is %g", e.Region, e.Mean)
}

func (e *InvalidReferenceError) Is(target error) bool { return target == ErrInvalidReference }

// GridMismatchError reports two volumes combined on different voxel grids.
type GridMismatchError struct {
	Op   string
	A, B Role
	GA   Grid
	GB   Grid
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("%s: %s grid %v does not match %s grid %v",
		e.Op, e.A, e.GA.Dims, e.B, e.GB.Dims)
}

func (e *GridMismatchError) Is(target error) bool { return target == ErrGridMismatch }

// ExternalOperationError reports a black-box tool that exited non-zero or
// produced no output.
type ExternalOperationError struct {
	Op     string
	Tool   string
	Output string
	Err    error
}

func (e *ExternalOperationError) Error() string {
	return fmt.Sprintf("%s (%s) -> %s: %v", e.Op, e.Tool, e.Output, e.Err)
}

func (e *ExternalOperationError) Unwrap() error { return e.Err }

func (e *ExternalOperationError) Is(target error) bool { return target == ErrExternalOperation }

// MissingArtifactError reports an upstream output absent when a downstream
// step starts.
type MissingArtifactError struct {
	Role string
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing %s: %s", e.Role, e.Path)
}

func (e *MissingArtifactError) Is(target error) bool { return target == ErrMissingArtifact }
