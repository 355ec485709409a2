// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

// PriorityPeriod is the number of device page-flip ticks between
// priority aging passes (spec §4.4).
const PriorityPeriod = 60

// Rect is a layer's destination rectangle on the CRTC.
type Rect struct {
	X, Y, W, H int32
}

// overlaps reports whether r and o cover any common pixel.
func (r Rect) overlaps(o Rect) bool {
	if r.W <= 0 || r.H <= 0 || o.W <= 0 || o.H <= 0 {
		return false
	}
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Layer is a client-visible unit to display, owned by exactly one
// Output for its entire lifetime (spec §3).
type Layer struct {
	output *Output

	props   propertyBag
	changed bool

	forceComposition bool

	fbInfo      FBInfo
	haveFBInfo  bool
	prevFBInfo  FBInfo
	havePrevFB  bool

	pendingPriority int
	currentPriority int

	// candidates records every plane driver ID this layer has been
	// offered to as a search candidate since the set was last reset
	// (spec §3, "a set of plane ids previously attempted").
	candidates map[uint32]struct{}

	plane *Plane // nullable assigned plane (spec invariant 3)
}

// NewLayer creates a layer owned by out.
func (out *Output) NewLayer() *Layer {
	l := &Layer{
		output:     out,
		props:      make(propertyBag),
		candidates: make(map[uint32]struct{}),
	}
	out.layers = append(out.layers, l)
	out.layersChanged = true
	return l
}

// Destroy removes the layer from its output. It does not destroy planes
// or other layers.
func (l *Layer) Destroy() {
	out := l.output
	for i, x := range out.layers {
		if x == l {
			out.layers = append(out.layers[:i], out.layers[i+1:]...)
			break
		}
	}
	if out.compositionLayer == l {
		out.compositionLayer = nil
	}
	if l.plane != nil {
		l.plane.assigned = nil
		l.plane = nil
	}
	out.layersChanged = true
}

// SetProperty sets the value of the property identified by idx.
// Setting CRTC_ID is a programmer error (spec §6): it is allocator-
// managed and never settable by clients.
func (l *Layer) SetProperty(idx PropertyIndex, value uint64) error {
	if idx == PropCRTCID {
		return ErrReadOnly
	}
	if idx == PropFBID {
		if old, ok := l.props.get(PropFBID); ok && old.value != value {
			l.pendingPriority++
		}
	}
	l.props.set(idx, 0, Metadata{}, value)
	l.changed = true
	return nil
}

// UnsetProperty removes idx from the layer's property bag, reverting it
// to its default value.
func (l *Layer) UnsetProperty(idx PropertyIndex) {
	if _, ok := l.props[idx]; ok {
		delete(l.props, idx)
		l.changed = true
	}
}

// GetProperty returns the current value of idx and whether it is set.
func (l *Layer) GetProperty(idx PropertyIndex) (uint64, bool) {
	p, ok := l.props.get(idx)
	if !ok {
		return 0, false
	}
	return p.value, true
}

// MarkComposited forces the layer to be handled by GPU composition: it
// will never be offered to the search as a plane candidate, and its
// FB_ID is cleared since the hardware no longer needs to scan it out.
func (l *Layer) MarkComposited() {
	l.forceComposition = true
	l.props.set(PropFBID, 0, Metadata{}, 0)
	l.changed = true
}

// Plane returns the plane currently assigned to the layer, or nil.
func (l *Layer) Plane() *Plane { return l.plane }

// NeedsComposition reports whether this layer, specifically, was left
// without a plane by the most recent Apply and must be handled by GPU
// composition instead. Distinct from Output.NeedsComposition, which
// reports the output-wide aggregate.
func (l *Layer) NeedsComposition() bool { return l.plane == nil && l.Visible() }

// Visible reports whether the layer should be considered for display at
// all (spec §4.4).
func (l *Layer) Visible() bool {
	if a, ok := l.props.get(PropAlpha); ok && a.value == 0 {
		return false
	}
	if l.forceComposition {
		return true
	}
	fb, ok := l.props.get(PropFBID)
	return ok && fb.value != 0
}

// Rect returns the layer's destination rectangle, each field defaulting
// to 0 if unset.
func (l *Layer) Rect() Rect {
	get := func(idx PropertyIndex) int32 {
		v, _ := l.GetProperty(idx)
		return int32(v)
	}
	return Rect{
		X: get(PropCRTCX),
		Y: get(PropCRTCY),
		W: get(PropCRTCW),
		H: get(PropCRTCH),
	}
}

// zpos returns the layer's zpos value and whether it is set.
func (l *Layer) zpos() (int64, bool) {
	v, ok := l.GetProperty(PropZpos)
	return int64(v), ok
}

// intersects reports whether a and b are both visible and their
// rectangles overlap (spec §4.4).
func intersects(a, b *Layer) bool {
	return a.Visible() && b.Visible() && a.Rect().overlaps(b.Rect())
}

// IsCandidatePlane reports whether p was already offered to l as a
// search candidate since the candidate set was last reset.
func (l *Layer) IsCandidatePlane(p *Plane) bool {
	_, ok := l.candidates[p.driverID]
	return ok
}

// addCandidate records p as a historical candidate of l.
func (l *Layer) addCandidate(p *Plane) {
	l.candidates[p.driverID] = struct{}{}
}

// resetCandidates clears the historical-candidate set, done at the
// start of every fresh search (spec §4.5.6 step 4).
func (l *Layer) resetCandidates() {
	clear(l.candidates)
}

// agePriority moves pendingPriority into currentPriority and resets
// pendingPriority, called every PriorityPeriod page-flip ticks. The
// result is retained for diagnostics only; the search does not consult
// it (spec §9, open question).
func (l *Layer) agePriority() {
	l.currentPriority = l.pendingPriority
	l.pendingPriority = 0
}

// CurrentPriority returns the layer's priority as of the last aging
// pass.
func (l *Layer) CurrentPriority() int { return l.currentPriority }

// markClean snapshots every property's value into its previous-value
// slot and the current fb_info into prev_fb_info, then clears the
// changed flag. Done for every layer at the end of a successful Apply
// (spec §4.5.6 step 10).
func (l *Layer) markClean() {
	for _, p := range l.props {
		p.snapshot()
	}
	l.prevFBInfo = l.fbInfo
	l.havePrevFB = l.haveFBInfo
	l.changed = false
}

// fbChanged reports whether the layer's fb_info differs from its
// prior-frame snapshot in a way that affects plane feasibility (spec
// §4.5.7): width, height, pixel format or modifier.
func (l *Layer) fbChanged() bool {
	if l.haveFBInfo != l.havePrevFB {
		return true
	}
	if !l.haveFBInfo {
		return false
	}
	a, b := l.fbInfo, l.prevFBInfo
	return a.Width != b.Width || a.Height != b.Height ||
		a.PixelFormat != b.PixelFormat || a.Modifier != b.Modifier ||
		a.HasModifier != b.HasModifier
}
