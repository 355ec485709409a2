// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

import "fmt"

// Device owns the kernel connection (via Backend), the device's planes
// and outputs, and the CRTC-id array (spec §3).
type Device struct {
	backend Backend

	planes  []*Plane
	outputs []*Output
	crtcIDs []uint32

	testCommitCount int
	flipCount       uint64
}

// NewDevice creates a Device driven by backend. It loads the CRTC-id
// array immediately; RegisterPlanes must be called separately to
// populate the plane list (spec §6).
func NewDevice(backend Backend) (*Device, error) {
	d := &Device{backend: backend}
	ids, err := backend.CRTCs()
	if err != nil {
		return nil, err
	}
	d.crtcIDs = ids
	return d, nil
}

// Destroy releases the device's planes and outputs. It does not destroy
// the layers owned by those outputs (client responsibility, spec §3).
func (d *Device) Destroy() {
	d.planes = nil
	d.outputs = nil
}

// CRTCs returns the device's CRTC object IDs, index order matching the
// backend's internal CRTC index.
func (d *Device) CRTCs() []uint32 { return d.crtcIDs }

// crtcIndex resolves a CRTC object ID to its array index.
func (d *Device) crtcIndex(crtcID uint32) (int, bool) {
	for i, id := range d.crtcIDs {
		if id == crtcID {
			return i, true
		}
	}
	return 0, false
}

// hwTypeFromValue maps a plane's "type" property value to a HWType. The
// mapping is an internal contract with the Backend implementation (the
// real DRM backend normalizes the kernel's enum to this order).
func hwTypeFromValue(v uint64) HWType {
	switch v {
	case uint64(TypeOverlay):
		return TypeOverlay
	case uint64(TypeCursor):
		return TypeCursor
	default:
		return TypePrimary
	}
}

// peekType scans raw properties for "type" without allocating a Plane,
// used during RegisterPlanes' first pass to find the first PRIMARY
// plane's ID (spec §4.3).
func peekType(props []RawProperty) (HWType, bool) {
	for _, p := range props {
		if p.Name == "type" {
			return hwTypeFromValue(p.Value), true
		}
	}
	return 0, false
}

// RegisterPlanes enumerates the device's planes through the backend and
// populates d.planes in the order required by invariant 1 of spec §3:
// PRIMARY planes first, then non-primary planes ordered by descending
// zpos.
func (d *Device) RegisterPlanes() error {
	infos, err := d.backend.Planes()
	if err != nil {
		return err
	}

	var firstPrimaryID uint32
	haveFirstPrimary := false
	for _, info := range infos {
		if t, ok := peekType(info.Properties); ok && t == TypePrimary && !haveFirstPrimary {
			firstPrimaryID = info.ID
			haveFirstPrimary = true
		}
	}

	for _, info := range infos {
		pl, err := d.newPlane(info, firstPrimaryID)
		if err != nil {
			return err
		}
		d.insertPlane(pl)
	}
	return nil
}

// newPlane parses one PlaneInfo into a registered Plane, synthesizing
// zpos when the driver does not report one (spec §4.3).
func (d *Device) newPlane(info PlaneInfo, firstPrimaryID uint32) (*Plane, error) {
	for _, existing := range d.planes {
		if existing.driverID == info.ID {
			return nil, ErrExist
		}
	}

	pl := &Plane{
		device:        d,
		driverID:      info.ID,
		possibleCRTCs: info.PossibleCRTCs,
		props:         make(propertyBag),
	}

	var haveType, haveZpos, haveBlob bool
	var zposVal, blobVal uint64

	for _, raw := range info.Properties {
		idx, ok := propertyIndexByName(raw.Name)
		if !ok {
			continue // unknown property names are silently ignored (spec §6)
		}
		pl.props.set(idx, raw.ID, raw.Meta, raw.Value)
		switch idx {
		case PropType:
			haveType = true
			pl.hwType = hwTypeFromValue(raw.Value)
		case PropZpos:
			haveZpos = true
			zposVal = raw.Value
		case PropInFormats:
			haveBlob = true
			blobVal = raw.Value
		}
	}
	if !haveType {
		return nil, fmt.Errorf("%w: plane %d missing type property", ErrInvalid, info.ID)
	}

	if haveZpos {
		pl.zpos = int64(zposVal)
	} else {
		switch pl.hwType {
		case TypePrimary:
			pl.zpos = 0
		case TypeCursor:
			pl.zpos = 2
		default: // TypeOverlay
			if info.ID > firstPrimaryID {
				pl.zpos = 1
			} else {
				pl.zpos = -1
			}
		}
	}

	if haveBlob {
		blob, err := d.backend.FormatBlob(blobVal)
		if err != nil {
			return nil, err
		}
		pl.blob = blob
	}

	return pl, nil
}

// insertPlane inserts p into d.planes per the ordering policy of spec
// §4.3: PRIMARY planes are prepended; non-primary planes are inserted
// immediately before the first non-primary plane with a lower-or-equal
// zpos, or appended if none exists.
func (d *Device) insertPlane(p *Plane) {
	if p.hwType == TypePrimary {
		d.planes = append([]*Plane{p}, d.planes...)
		return
	}
	at := len(d.planes)
	for i, x := range d.planes {
		if x.hwType == TypePrimary {
			continue
		}
		if x.zpos <= p.zpos {
			at = i
			break
		}
	}
	d.planes = append(d.planes, nil)
	copy(d.planes[at+1:], d.planes[at:])
	d.planes[at] = p
}

// tick advances the device's page-flip counter, aging every output's
// layer priorities once PriorityPeriod ticks have elapsed (spec §4.4).
func (d *Device) tick() {
	d.flipCount++
	if d.flipCount%PriorityPeriod == 0 {
		for _, o := range d.outputs {
			for _, l := range o.layers {
				l.agePriority()
			}
		}
	}
}

// TestCommitCount returns the number of test-only atomic commits issued
// so far, a debug counter (spec §3).
func (d *Device) TestCommitCount() int { return d.testCommitCount }

func (d *Device) testCommit(ops []WriteOp, flags uint32) error {
	d.testCommitCount++
	return d.backend.TestCommit(ops, flags&^FlagPageFlipEvent)
}
