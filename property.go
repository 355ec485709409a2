// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

import "fmt"

// PropertyIndex identifies a recognized KMS property by a small closed
// enum. Downstream code indexes properties by this enum, never by the
// kernel's string name (spec §9).
type PropertyIndex int

// Recognized property indices, in the order spec.md §3 lists them.
const (
	PropType PropertyIndex = iota
	PropFBID
	PropCRTCID
	PropCRTCX
	PropCRTCY
	PropCRTCW
	PropCRTCH
	PropSRCX
	PropSRCY
	PropSRCW
	PropSRCH
	PropZpos
	PropAlpha
	PropRotation
	PropScalingFilter
	PropPixelBlendMode
	PropFBDamageClips
	PropInFenceFD
	PropInFormats

	propCount
)

// propertyNames maps the closed enum to the kernel's property name,
// bit-exact per spec §6.
var propertyNames = [propCount]string{
	PropType:           "type",
	PropFBID:           "FB_ID",
	PropCRTCID:         "CRTC_ID",
	PropCRTCX:          "CRTC_X",
	PropCRTCY:          "CRTC_Y",
	PropCRTCW:          "CRTC_W",
	PropCRTCH:          "CRTC_H",
	PropSRCX:           "SRC_X",
	PropSRCY:           "SRC_Y",
	PropSRCW:           "SRC_W",
	PropSRCH:           "SRC_H",
	PropZpos:           "zpos",
	PropAlpha:          "alpha",
	PropRotation:       "rotation",
	PropScalingFilter:  "SCALING FILTER",
	PropPixelBlendMode: "pixel blend mode",
	PropFBDamageClips:  "FB_DAMAGE_CLIPS",
	PropInFenceFD:      "IN_FENCE_FD",
	PropInFormats:      "IN_FORMATS",
}

// propertyIndexByName resolves the kernel's property name to its enum
// value. Names outside the closed set resolve to ok == false and must be
// silently ignored by callers (spec §6).
func propertyIndexByName(name string) (idx PropertyIndex, ok bool) {
	for i, n := range propertyNames {
		if n == name {
			return PropertyIndex(i), true
		}
	}
	return 0, false
}

func (idx PropertyIndex) String() string {
	if idx < 0 || int(idx) >= len(propertyNames) {
		return fmt.Sprintf("PropertyIndex(%d)", int(idx))
	}
	return propertyNames[idx]
}

// Kind describes how the kernel declared a property's valid values.
type Kind int

// Kind values, matching spec §4.1.
const (
	KindRange Kind = iota
	KindSignedRange
	KindEnum
	KindBitmask
	KindImmutable
)

// Metadata carries the kernel's declared kind and bounds/valid values for
// a property, used to reject invalid writes before a test commit is ever
// issued.
type Metadata struct {
	Kind Kind

	// Lo, Hi bound a KindRange value (inclusive, unsigned).
	Lo, Hi uint64

	// SLo, SHi bound a KindSignedRange value (inclusive, signed).
	SLo, SHi int64

	// Enums lists the valid discrete values of a KindEnum property.
	Enums []uint64

	// Mask is the union of (1 << enum value) over every declared bit
	// of a KindBitmask property.
	Mask uint64
}

// Validate reports whether value is an acceptable write for a property
// with this metadata. A non-nil error is always ErrInvalid: validation
// failures are never promoted to ErrRange or any other kind, per spec
// §4.1 ("reported as invalid-argument errors").
func (m *Metadata) Validate(value uint64) error {
	switch m.Kind {
	case KindRange:
		if value < m.Lo || value > m.Hi {
			return fmt.Errorf("%w: %d outside range [%d, %d]", ErrInvalid, value, m.Lo, m.Hi)
		}
	case KindSignedRange:
		v := int64(value)
		if v < m.SLo || v > m.SHi {
			return fmt.Errorf("%w: %d outside signed range [%d, %d]", ErrInvalid, v, m.SLo, m.SHi)
		}
	case KindEnum:
		for _, e := range m.Enums {
			if e == value {
				return nil
			}
		}
		return fmt.Errorf("%w: %d is not a declared enum value", ErrInvalid, value)
	case KindBitmask:
		if value&^m.Mask != 0 {
			return fmt.Errorf("%w: %#x has bits outside mask %#x", ErrInvalid, value, m.Mask)
		}
	case KindImmutable:
		return fmt.Errorf("%w: property is immutable", ErrInvalid)
	default:
		return fmt.Errorf("%w: unrecognized property kind %d", ErrInvalid, m.Kind)
	}
	return nil
}

// Property is a single typed, value-holding slot in a layer's or plane's
// property bag.
type Property struct {
	Index    PropertyIndex
	DriverID uint32
	Meta     Metadata

	value     uint64
	prevValue uint64
}

// Value returns the property's current value.
func (p *Property) Value() uint64 { return p.value }

// Prev returns the value the property held as of the last successful
// Apply (spec §4.5.6 step 10).
func (p *Property) Prev() uint64 { return p.prevValue }

// snapshot copies the current value into the previous-value slot,
// as done for every property of every layer at the end of a
// successful Apply.
func (p *Property) snapshot() { p.prevValue = p.value }

// propertyBag is a property-index-keyed set of Properties, one entry per
// property that has been observed or set, as used by both Layer and
// Plane (spec §3).
type propertyBag map[PropertyIndex]*Property

func (b propertyBag) get(idx PropertyIndex) (*Property, bool) {
	p, ok := b[idx]
	return p, ok
}

func (b propertyBag) set(idx PropertyIndex, driverID uint32, meta Metadata, value uint64) *Property {
	p, ok := b[idx]
	if !ok {
		p = &Property{Index: idx, DriverID: driverID, Meta: meta}
		b[idx] = p
	}
	p.value = value
	return p
}
