// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

// blocksReuse reports whether l's state since the last successful apply
// disqualifies the output's previous assignment from being reused
// (spec §4.5.7). ALPHA changes that stay strictly within (0, 0xFFFF),
// IN_FENCE_FD and FB_DAMAGE_CLIPS are exempt from this check; every
// other property mutation, an FB_ID 0/nonzero toggle, or an fb_info
// change forces a fresh search.
func (l *Layer) blocksReuse() bool {
	if l.fbChanged() {
		return true
	}

	fbNow, nowOK := l.props.get(PropFBID)
	fbWasSet := fbNow != nil && fbNow.prevValue != 0
	fbIsSet := nowOK && fbNow.value != 0
	if fbIsSet != fbWasSet {
		return true
	}

	for idx, p := range l.props {
		if p.value == p.prevValue {
			continue
		}
		switch idx {
		case PropAlpha:
			if p.value == 0 || p.value == 0xFFFF || p.prevValue == 0 || p.prevValue == 0xFFFF {
				return true
			}
		case PropInFenceFD, PropFBDamageClips:
			// exempt: per-frame, do not affect placement feasibility.
		default:
			return true
		}
	}
	return false
}

// tryReuse implements spec §4.5.7. On success it stamps the layers
// clean and returns true; on any disqualifying condition, or a failed
// probe, it leaves req untouched (beyond a rewound speculative write)
// and returns false so the caller runs a fresh search.
func (o *Output) tryReuse(req AtomicRequest, flags uint32) bool {
	if o.layersChanged {
		return false
	}
	for _, l := range o.layers {
		if l.blocksReuse() {
			return false
		}
	}

	mark := req.Mark()
	for _, p := range o.device.planes {
		if p.assigned == nil || p.assigned.output != o {
			continue
		}
		if err := planeApply(p, p.assigned, req); err != nil {
			req.Truncate(mark)
			return false
		}
	}

	if err := o.device.testCommit(req.Ops(), flags); err != nil {
		req.Truncate(mark)
		return false
	}

	o.reuseCount++
	for _, l := range o.layers {
		l.markClean()
	}
	return true
}
