// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

import "errors"

// Output drives one CRTC, owning an ordered list of layers and an
// optional composition layer (spec §3).
type Output struct {
	device *Device

	crtcID  uint32
	crtcIdx int

	layers           []*Layer
	compositionLayer *Layer
	layersChanged    bool
	composited       bool

	reuseCount int

	// applying is a best-effort reentrancy check, not a lock (spec §5
	// forbids internal locking; the caller is responsible for
	// serializing Apply calls on one output).
	applying bool
}

// NewOutput creates an output driving crtcID on d.
func NewOutput(d *Device, crtcID uint32) (*Output, error) {
	idx, ok := d.crtcIndex(crtcID)
	if !ok {
		return nil, ErrNotExist
	}
	o := &Output{device: d, crtcID: crtcID, crtcIdx: idx}
	d.outputs = append(d.outputs, o)
	return o, nil
}

// Destroy removes the output from its device. It does not destroy the
// output's layers (client responsibility, spec §3).
func (o *Output) Destroy() {
	for i, x := range o.device.outputs {
		if x == o {
			o.device.outputs = append(o.device.outputs[:i], o.device.outputs[i+1:]...)
			break
		}
	}
	for _, p := range o.device.planes {
		if p.assigned != nil && p.assigned.output == o {
			p.assigned.plane = nil
			p.assigned = nil
		}
	}
}

// SetCompositionLayer designates l as the output's composition layer,
// the fallback destination for every layer the allocator can't place on
// hardware. Passing nil clears the designation.
func (o *Output) SetCompositionLayer(l *Layer) {
	if l != nil && l.output != o {
		return
	}
	o.compositionLayer = l
	o.layersChanged = true
}

// NeedsComposition reports whether the most recent Apply resorted to
// GPU composition for at least one layer.
func (o *Output) NeedsComposition() bool { return o.composited }

// ReuseCount returns the number of times Apply has taken the reuse fast
// path for this output (spec §8, scenario 5).
func (o *Output) ReuseCount() int { return o.reuseCount }

// Apply is the allocator's entry point (spec §4.5.6): it binds the
// output's visible layers to planes, falling back to GPU composition
// for any it cannot place, and stages the winning configuration into
// req. Flags are forwarded to the backend verbatim except for the
// page-flip-event bit, which is always stripped for a test-only probe.
func (o *Output) Apply(req AtomicRequest, flags uint32) error {
	if o.applying {
		logf(LogWarning, "kms: output %d: reentrant Apply call", o.crtcID)
	}
	o.applying = true
	defer func() { o.applying = false }()

	d := o.device
	d.tick()

	if err := o.refreshFBInfo(); err != nil {
		return err
	}

	if o.tryReuse(req, flags) {
		return nil
	}

	for _, l := range o.layers {
		l.resetCandidates()
	}

	for _, p := range d.planes {
		if p.assigned != nil && p.assigned.output == o {
			p.assigned.plane = nil
			p.assigned = nil
		}
	}
	for _, p := range d.planes {
		if p.assigned == nil {
			p.disable(req)
		}
	}

	hasComp := o.compositionLayer != nil
	n := 0
	for _, l := range o.layers {
		if l.Visible() && l != o.compositionLayer {
			n++
		}
	}

	ctx := &searchCtx{
		device:  d,
		output:  o,
		req:     req,
		flags:   flags,
		hasComp: hasComp,
		n:       n,
		best:    &searchResult{score: -1},
	}
	st := newStepState(len(d.planes))

	if err := search(ctx, st); err != nil {
		return err
	}

	if ctx.best.alloc != nil {
		for i, l := range ctx.best.alloc {
			p := d.planes[i]
			p.assigned = l
			if l != nil {
				l.plane = p
			}
			if err := planeApply(p, l, req); err != nil {
				return err
			}
		}
		o.composited = ctx.best.composited
	} else {
		o.composited = false
		logf(LogWarning, "kms: output %d: no valid allocation found", o.crtcID)
	}

	for _, l := range o.layers {
		l.markClean()
	}
	o.layersChanged = false
	return nil
}

// refreshFBInfo fetches fb_info for every visible layer (spec §4.7).
func (o *Output) refreshFBInfo() error {
	for _, l := range o.layers {
		if !l.Visible() {
			l.haveFBInfo = false
			continue
		}
		fb, ok := l.props.get(PropFBID)
		if !ok || fb.value == 0 {
			l.haveFBInfo = false
			continue
		}
		info, err := o.device.backend.FBInfo(uint32(fb.value))
		if err != nil {
			if errors.Is(err, ErrNotExist) {
				l.haveFBInfo = false
				continue
			}
			return err
		}
		closeHandles(o.device.backend, info.Handles)
		l.fbInfo = info
		l.haveFBInfo = true
	}
	return nil
}

// closeHandles releases every distinct non-zero GEM handle in handles,
// deduplicating repeats (spec §4.7).
func closeHandles(b Backend, handles [4]uint32) {
	var seen [4]uint32
	n := 0
	for _, h := range handles {
		if h == 0 {
			continue
		}
		dup := false
		for i := 0; i < n; i++ {
			if seen[i] == h {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[n] = h
		n++
		b.CloseHandle(h)
	}
}
