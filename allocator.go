// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

import "math"

// searchCtx holds the data shared by every node of one Apply's search:
// the device and output being solved, the request being mutated, and
// the running best result (spec §4.5.1).
type searchCtx struct {
	device  *Device
	output  *Output
	req     AtomicRequest
	flags   uint32
	hasComp bool
	n       int // count of visible, non-composition layers
	best    *searchResult
}

// searchResult records the best partial seen so far: the winning
// assignment vector, its score, and whether it used composition.
type searchResult struct {
	alloc      []*Layer
	score      int
	composited bool
}

// stepState is one ply in the depth-first search (spec §4.5.1). alloc is
// shared across the whole search and mutated/restored by the caller
// around each recursive call (classic backtracking with undo), rather
// than copied per node.
type stepState struct {
	alloc []*Layer // alloc[i] = layer placed on device.planes[i], or nil

	depth int
	score int

	lastLayerZpos    int64
	primaryLayerZpos int64
	primaryPlaneZpos int64
	composited       bool
}

func newStepState(nplanes int) stepState {
	return stepState{
		alloc:            make([]*Layer, nplanes),
		lastLayerZpos:    math.MaxInt64,
		primaryLayerZpos: math.MinInt64,
		primaryPlaneZpos: math.MaxInt64,
	}
}

// validTerminal implements spec §4.5.4.
func validTerminal(hasComp bool, n, score int, composited bool) bool {
	if hasComp && !composited && score != n {
		return false
	}
	if composited && score == n {
		return false
	}
	return true
}

func cloneAlloc(a []*Layer) []*Layer {
	out := make([]*Layer, len(a))
	copy(out, a)
	return out
}

// isAllocated reports whether l appears anywhere in the partial
// allocation recorded so far.
func isAllocated(st stepState, l *Layer) bool {
	for _, x := range st.alloc {
		if x == l {
			return true
		}
	}
	return false
}

// advance computes the child step state produced by placing l on plane
// (or, if l is nil, leaving plane unassigned), per spec §4.5.5.
func advance(st stepState, plane *Plane, l *Layer, out *Output) stepState {
	child := st
	child.depth++

	if l == nil {
		return child
	}

	if plane.hwType != TypePrimary {
		if z, ok := l.zpos(); ok {
			child.lastLayerZpos = z
		}
	}
	if plane.hwType == TypePrimary {
		if z, ok := l.zpos(); ok {
			child.primaryLayerZpos = z
			child.primaryPlaneZpos = plane.zpos
		}
	}
	if l == out.compositionLayer {
		child.composited = true
	}
	if l != out.compositionLayer {
		child.score++
	}
	return child
}
