// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

import "fmt"

// RotationIdentity is the DRM_MODE_ROTATE_0 bitmask value: the no-op
// rotation, used to recognize a layer's ROTATION write as a default that
// a plane lacking the property may silently ignore (spec §4.6).
const RotationIdentity uint64 = 1

// Plane is a hardware scanout surface, owned by the Device (spec §3).
type Plane struct {
	device        *Device
	driverID      uint32
	hwType        HWType
	possibleCRTCs uint32
	zpos          int64
	blob          *FormatBlob
	props         propertyBag

	assigned *Layer // nullable (spec invariant 3)
}

// Destroy removes the plane from its device, e.g. on hot-unplug. Any
// layer currently assigned to it is left without a plane, to be picked
// up by the next successful Apply or handled by composition.
func (p *Plane) Destroy() {
	if p.assigned != nil {
		p.assigned.plane = nil
		p.assigned = nil
	}
	d := p.device
	if d == nil {
		return
	}
	for i, x := range d.planes {
		if x == p {
			d.planes = append(d.planes[:i], d.planes[i+1:]...)
			break
		}
	}
	p.device = nil
}

// ID returns the plane's driver object ID.
func (p *Plane) ID() uint32 { return p.driverID }

// Type returns the plane's hardware type.
func (p *Plane) Type() HWType { return p.hwType }

// Zpos returns the plane's zpos, either the driver-declared value or the
// one synthesized at registration (spec §4.3).
func (p *Plane) Zpos() int64 { return p.zpos }

// Assigned returns the layer currently bound to the plane, or nil.
func (p *Plane) Assigned() *Layer { return p.assigned }

// canDrive reports whether the plane can be routed to crtcIdx, per its
// possible-CRTC bitmask.
func (p *Plane) canDrive(crtcIdx int) bool {
	return p.possibleCRTCs&(1<<uint(crtcIdx)) != 0
}

// Supports reports whether the plane can scan out a framebuffer with the
// given metadata (spec §4.2). When haveFB is false (no fb_info could be
// fetched) or fb lacks a modifier, or the plane has no IN_FORMATS blob,
// there is insufficient information to reject the pairing, so Supports
// returns true.
func (p *Plane) Supports(fb FBInfo, haveFB bool) bool {
	if !haveFB || !fb.HasModifier || p.blob == nil {
		return true
	}
	f := -1
	for i, fmtID := range p.blob.Formats {
		if fmtID == fb.PixelFormat {
			f = i
			break
		}
	}
	if f < 0 {
		return false
	}
	for _, m := range p.blob.Mods {
		if m.Modifier != fb.Modifier {
			continue
		}
		if f < m.Offset || f >= m.Offset+64 {
			return false
		}
		bit := uint(f - m.Offset)
		return m.Formats&(1<<bit) != 0
	}
	return false
}

// isNoOpDefault reports whether value is the no-op default for a
// property that a plane may legitimately lack (spec §4.6).
func isNoOpDefault(idx PropertyIndex, value uint64) bool {
	switch idx {
	case PropAlpha:
		return value == 0xFFFF
	case PropRotation:
		return value == RotationIdentity
	case PropScalingFilter:
		return value == 0
	case PropPixelBlendMode:
		return value == 0
	case PropFBDamageClips:
		return true
	default:
		return false
	}
}

// disable stages the writes that turn the plane off: FB_ID and CRTC_ID
// both cleared to 0.
func (p *Plane) disable(req AtomicRequest) {
	if fb, ok := p.props.get(PropFBID); ok {
		req.Write(p.driverID, fb.DriverID, 0)
	}
	if crtc, ok := p.props.get(PropCRTCID); ok {
		req.Write(p.driverID, crtc.DriverID, 0)
	}
}

// planeApply idempotently stages the property writes that turn plane p
// into "displays l" (or, if l is nil, "disabled"), per spec §4.6. Every
// failure path rewinds req to the cursor position captured on entry.
func planeApply(p *Plane, l *Layer, req AtomicRequest) error {
	mark := req.Mark()

	if l == nil {
		p.disable(req)
		return nil
	}

	crtcProp, ok := p.props.get(PropCRTCID)
	if !ok {
		return fmt.Errorf("%w: plane %d lacks CRTC_ID", ErrInvalid, p.driverID)
	}
	crtcID := uint64(l.output.crtcID)
	if err := crtcProp.Meta.Validate(crtcID); err != nil {
		req.Truncate(mark)
		return err
	}
	req.Write(p.driverID, crtcProp.DriverID, crtcID)

	for idx, lp := range l.props {
		if idx == PropZpos || idx == PropCRTCID {
			// ZPOS is allocator-managed and never written to
			// planes; CRTC_ID was just written above using the
			// output's CRTC, not the layer's bag.
			continue
		}
		pp, ok := p.props.get(idx)
		if !ok {
			if isNoOpDefault(idx, lp.value) {
				continue
			}
			req.Truncate(mark)
			return fmt.Errorf("%w: plane %d lacks property %s", ErrInvalid, p.driverID, idx)
		}
		if idx == PropFBDamageClips {
			// Blob property; nothing to validate as a scalar, but
			// still staged like any other property the plane
			// declares support for.
			req.Write(p.driverID, pp.DriverID, lp.value)
			continue
		}
		if err := pp.Meta.Validate(lp.value); err != nil {
			req.Truncate(mark)
			return err
		}
		req.Write(p.driverID, pp.DriverID, lp.value)
	}
	return nil
}
