// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

// search implements the depth-first plane/layer search of spec §4.5.1-
// §4.5.3. It mutates ctx.req speculatively and always leaves it rewound
// to its entry cursor position on return.
func search(ctx *searchCtx, st stepState) error {
	planes := ctx.device.planes
	total := len(planes)

	// 1. Terminal.
	if st.depth == total {
		if st.score > ctx.best.score && validTerminal(ctx.hasComp, ctx.n, st.score, st.composited) {
			ctx.best.score = st.score
			ctx.best.alloc = cloneAlloc(st.alloc)
			ctx.best.composited = st.composited
		}
		return nil
	}

	// 2. Upper bound prune.
	if remaining := total - st.depth; ctx.best.score >= st.score+remaining {
		return nil
	}

	plane := planes[st.depth]

	// 3. Skip plane if it cannot serve this output's CRTC at all.
	if !plane.canDrive(ctx.output.crtcIdx) {
		return search(ctx, advance(st, plane, nil, ctx.output))
	}

	// 4. Snapshot the atomic-request cursor.
	mark := ctx.req.Mark()

	// 5. Try every visible layer as a candidate for this plane.
	for _, l := range ctx.output.layers {
		if !l.Visible() || !feasible(ctx, st, plane, l) {
			continue
		}

		if err := planeApply(plane, l, ctx.req); err != nil {
			l.addCandidate(plane)
			if classify(err) == kindFeasible {
				continue
			}
			return err
		}
		l.addCandidate(plane)

		if l.forceComposition || !plane.Supports(l.fbInfo, l.haveFBInfo) {
			ctx.req.Truncate(mark)
			continue
		}

		if err := probe(ctx, plane); err != nil {
			ctx.req.Truncate(mark)
			if classify(err) == kindFatal {
				return err
			}
			continue
		}

		st.alloc[st.depth] = l
		err := search(ctx, advance(st, plane, l, ctx.output))
		st.alloc[st.depth] = nil
		ctx.req.Truncate(mark)
		if err != nil {
			return err
		}
	}

	// 6. Null branch: always explored, even when candidates succeeded.
	return search(ctx, advance(st, plane, nil, ctx.output))
}

// probe issues the kernel test-commit, looping forever on transient
// errors (spec §4.5.3 step 5, §7).
func probe(ctx *searchCtx, plane *Plane) error {
	for {
		err := ctx.device.testCommit(ctx.req.Ops(), ctx.flags)
		if err == nil {
			return nil
		}
		if classify(err) == kindTransient {
			continue
		}
		return err
	}
}

// feasible implements the six rejection rules of spec §4.5.2.
func feasible(ctx *searchCtx, st stepState, plane *Plane, l *Layer) bool {
	// 1. Already assigned at a shallower depth.
	if isAllocated(st, l) {
		return false
	}

	z, hasZ := l.zpos()
	nonPrimary := plane.hwType != TypePrimary

	if hasZ {
		// 2. Would invert stacking against a shallower overlapping
		// placement with lower zpos.
		if z > st.lastLayerZpos && overlapsPlacedAbove(ctx, st, l, z) {
			return false
		}
		// 3. Can't place a topmost layer onto a lower plane, judged
		// against any already-placed layer on a lower-zpos plane.
		if z < st.lastLayerZpos && overlapsPlacedDeeper(ctx, st, plane, l) {
			return false
		}
	}

	// 4. Layer belongs below the primary, but the plane sits above it.
	if nonPrimary && hasZ && z < st.primaryLayerZpos && plane.zpos > st.primaryPlaneZpos {
		return false
	}

	// 5. An unallocated, overlapping layer with strictly greater zpos
	// would have to be composited above, occluding this one.
	if nonPrimary {
		for _, other := range ctx.output.layers {
			if other == l || !other.Visible() || isAllocated(st, other) {
				continue
			}
			oz, ok := other.zpos()
			if ok && oz > z && intersects(other, l) {
				return false
			}
		}
	}

	// 6. The composition layer is never assigned to a non-primary plane.
	if nonPrimary && l == ctx.output.compositionLayer {
		return false
	}

	return true
}

// overlapsPlacedAbove reports whether some already-placed layer on a
// non-primary plane overlaps l and has a lower zpos than z (rule 2).
func overlapsPlacedAbove(ctx *searchCtx, st stepState, l *Layer, z int64) bool {
	for i, other := range st.alloc {
		if other == nil || other == l || ctx.device.planes[i].hwType == TypePrimary {
			continue
		}
		oz, ok := other.zpos()
		if ok && oz < z && intersects(other, l) {
			return true
		}
	}
	return false
}

// overlapsPlacedDeeper reports whether some already-placed layer sits on
// a non-primary plane with a lower zpos than plane and overlaps l (rule
// 3). Under the plane-list ordering invariant (§3) already-placed
// entries never occupy a deeper plane than the one currently under
// consideration; the check is kept for completeness and defense against
// any future relaxation of that invariant.
func overlapsPlacedDeeper(ctx *searchCtx, st stepState, plane *Plane, l *Layer) bool {
	for i, other := range st.alloc {
		if other == nil || other == l {
			continue
		}
		op := ctx.device.planes[i]
		if op.hwType == TypePrimary || op.zpos >= plane.zpos {
			continue
		}
		if intersects(other, l) {
			return true
		}
	}
	return false
}
