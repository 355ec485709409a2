// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

import "errors"

// Sentinel errors mirroring the kernel's errno taxonomy for KMS/DRM
// atomic-commit failures (spec §6/§7). Backend implementations translate
// raw errno values into these (e.g., via fmt.Errorf("%w: ...", ErrInvalid))
// so that the allocator can classify failures without depending on any
// platform-specific error type.
var (
	// ErrInvalid means a property write or kernel configuration was
	// rejected as invalid. Absorbed by the search as a feasibility
	// signal.
	ErrInvalid = errors.New("kms: invalid argument")

	// ErrRange means coordinates or a similar numeric value were out
	// of range. Absorbed by the search as a feasibility signal.
	ErrRange = errors.New("kms: value out of range")

	// ErrNoSpace means source coordinates could not be satisfied.
	// Absorbed by the search as a feasibility signal.
	ErrNoSpace = errors.New("kms: invalid source coordinates")

	// ErrAgain means the kernel asked the caller to retry the
	// operation. Test commits retry forever on this error.
	ErrAgain = errors.New("kms: resource temporarily unavailable")

	// ErrInterrupted means a syscall was interrupted by a signal.
	// Test commits retry forever on this error.
	ErrInterrupted = errors.New("kms: interrupted")

	// ErrNoMemory means the kernel or driver ran out of memory. Fatal.
	ErrNoMemory = errors.New("kms: out of memory")

	// ErrExist means an object with the given identity already
	// exists, e.g. registering the same plane twice.
	ErrExist = errors.New("kms: object already exists")

	// ErrNotExist means the referenced kernel object (commonly a
	// framebuffer) does not exist.
	ErrNotExist = errors.New("kms: no such object")

	// ErrNotOwned is a programmer error: the caller tried to mutate a
	// layer or plane it does not own (e.g. a layer that belongs to a
	// different output).
	ErrNotOwned = errors.New("kms: object not owned by this output")

	// ErrReadOnly is a programmer error: the caller tried to set a
	// property that the allocator manages itself, such as CRTC_ID.
	ErrReadOnly = errors.New("kms: property is read-only to clients")

	// ErrUnknownProperty means a property name reported by the
	// kernel does not match any recognized index. No function in this
	// package returns it: unknown names are silently ignored at
	// registration (spec §6), and a plane lacking a layer's property is
	// reported by planeApply as ErrInvalid.
	ErrUnknownProperty = errors.New("kms: unknown property")
)

// errKind classifies an error returned by a Backend call made during the
// search, per spec §7.
type errKind int

const (
	// kindFeasible means the candidate node is not viable; the search
	// continues with the next candidate or sibling branch.
	kindFeasible errKind = iota
	// kindTransient means the call should be retried.
	kindTransient
	// kindFatal means the error must propagate to the caller of Apply.
	kindFatal
)

// classify inspects a non-nil error returned from a Backend call and
// reports how the search should react to it.
func classify(err error) errKind {
	switch {
	case errors.Is(err, ErrInterrupted), errors.Is(err, ErrAgain):
		return kindTransient
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrRange), errors.Is(err, ErrNoSpace):
		return kindFeasible
	default:
		return kindFatal
	}
}
