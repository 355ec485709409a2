// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

// WriteOp is a single staged property write: set propID on objID to
// value. Backends translate a slice of WriteOp into the kernel's atomic
// request blob.
type WriteOp struct {
	ObjID  uint32
	PropID uint32
	Value  uint64
}

// AtomicRequest is the caller-owned, append-only buffer that Apply
// mutates as a side effect (spec §1/§5). It is an append-only log of
// pending writes with an index cursor: every speculative write captures
// the cursor beforehand (Mark) and restores it on any non-success path
// (Truncate). Implementations must not be used from another goroutine
// while Apply is running.
type AtomicRequest interface {
	// Mark returns the current cursor position, suitable for a later
	// call to Truncate.
	Mark() int

	// Truncate discards every write appended after mark. Passing a
	// value obtained from an earlier Mark call rewinds the log to
	// that point; it is the scoped truncation token of spec §9.
	Truncate(mark int)

	// Write stages a property write. It always succeeds; rejecting an
	// invalid value is the property model's job (Metadata.Validate),
	// not the request's.
	Write(objID, propID uint32, value uint64)

	// Ops returns the writes staged so far, oldest first.
	Ops() []WriteOp
}

// Request is the default in-memory AtomicRequest implementation. Backends
// never see it directly: they receive its staged writes as the []WriteOp
// passed to Backend.TestCommit.
type Request struct {
	ops []WriteOp
}

// NewRequest returns an empty Request.
func NewRequest() *Request {
	return &Request{}
}

func (r *Request) Mark() int { return len(r.ops) }

func (r *Request) Truncate(mark int) {
	r.ops = r.ops[:mark]
}

func (r *Request) Write(objID, propID uint32, value uint64) {
	r.ops = append(r.ops, WriteOp{ObjID: objID, PropID: propID, Value: value})
}

func (r *Request) Ops() []WriteOp {
	out := make([]WriteOp, len(r.ops))
	copy(out, r.ops)
	return out
}

// Reset empties the request, e.g. for reuse across independent Apply
// sequences in a test.
func (r *Request) Reset() { r.ops = r.ops[:0] }
