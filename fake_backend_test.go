// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

import (
	"math"
	"testing"
)

// fakeBackend is an in-memory Backend used by the allocator tests, in
// place of a real kernel (spec §5: the allocator only ever talks to
// Backend, which is what makes the search testable without a device).
type fakeBackend struct {
	crtcIDs []uint32
	planes  []PlaneInfo
	blobs   map[uint64]*FormatBlob
	fbs     map[uint32]FBInfo

	closed  []uint32
	commits int

	// reject, when non-nil, inspects a candidate atomic-commit and
	// returns the error the kernel would have returned, or nil to
	// accept it.
	reject func(ops []WriteOp) error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		blobs: make(map[uint64]*FormatBlob),
		fbs:   make(map[uint32]FBInfo),
	}
}

func (f *fakeBackend) CRTCs() ([]uint32, error) { return f.crtcIDs, nil }
func (f *fakeBackend) Planes() ([]PlaneInfo, error) { return f.planes, nil }

func (f *fakeBackend) FormatBlob(blobID uint64) (*FormatBlob, error) {
	if b, ok := f.blobs[blobID]; ok {
		return b, nil
	}
	return &FormatBlob{}, nil
}

func (f *fakeBackend) FBInfo(fbID uint32) (FBInfo, error) {
	if fb, ok := f.fbs[fbID]; ok {
		return fb, nil
	}
	return FBInfo{}, ErrNotExist
}

func (f *fakeBackend) CloseHandle(handle uint32) error {
	f.closed = append(f.closed, handle)
	return nil
}

func (f *fakeBackend) TestCommit(ops []WriteOp, flags uint32) error {
	f.commits++
	if f.reject != nil {
		return f.reject(ops)
	}
	return nil
}

// --- fixture builders -------------------------------------------------

const (
	propBase = 100 // first synthetic driver property id, bumped per plane
)

// rangeMeta is the everything-goes range metadata used for coordinate
// and identifier properties in tests that don't care about rejection.
func rangeMeta() Metadata { return Metadata{Kind: KindRange, Lo: 0, Hi: math.MaxUint32} }

// newTestPlane builds a PlaneInfo with every property a real plane
// would expose, driver id and declared zpos as given.
func newTestPlane(id uint32, hw HWType, zpos int64, crtcMask uint32, blobID uint64) PlaneInfo {
	typeVal := uint64(hw)
	props := []RawProperty{
		{Name: "type", ID: propBase, Value: typeVal, Meta: Metadata{Kind: KindEnum, Enums: []uint64{0, 1, 2}}},
		{Name: "FB_ID", ID: propBase + 1, Value: 0, Meta: rangeMeta()},
		{Name: "CRTC_ID", ID: propBase + 2, Value: 0, Meta: rangeMeta()},
		{Name: "CRTC_X", ID: propBase + 3, Value: 0, Meta: Metadata{Kind: KindSignedRange, SLo: math.MinInt32, SHi: math.MaxInt32}},
		{Name: "CRTC_Y", ID: propBase + 4, Value: 0, Meta: Metadata{Kind: KindSignedRange, SLo: math.MinInt32, SHi: math.MaxInt32}},
		{Name: "CRTC_W", ID: propBase + 5, Value: 0, Meta: rangeMeta()},
		{Name: "CRTC_H", ID: propBase + 6, Value: 0, Meta: rangeMeta()},
		{Name: "SRC_X", ID: propBase + 7, Value: 0, Meta: rangeMeta()},
		{Name: "SRC_Y", ID: propBase + 8, Value: 0, Meta: rangeMeta()},
		{Name: "SRC_W", ID: propBase + 9, Value: 0, Meta: rangeMeta()},
		{Name: "SRC_H", ID: propBase + 10, Value: 0, Meta: rangeMeta()},
		{Name: "zpos", ID: propBase + 11, Value: uint64(zpos), Meta: Metadata{Kind: KindSignedRange, SLo: -100, SHi: 100}},
		{Name: "alpha", ID: propBase + 12, Value: 0xFFFF, Meta: Metadata{Kind: KindRange, Lo: 0, Hi: 0xFFFF}},
		{Name: "rotation", ID: propBase + 13, Value: RotationIdentity, Meta: Metadata{Kind: KindBitmask, Mask: RotationIdentity}},
		{Name: "SCALING FILTER", ID: propBase + 14, Value: 0, Meta: Metadata{Kind: KindEnum, Enums: []uint64{0, 1}}},
		{Name: "pixel blend mode", ID: propBase + 15, Value: 0, Meta: Metadata{Kind: KindEnum, Enums: []uint64{0, 1, 2}}},
		{Name: "FB_DAMAGE_CLIPS", ID: propBase + 16, Value: 0, Meta: rangeMeta()},
		{Name: "IN_FENCE_FD", ID: propBase + 17, Value: 0, Meta: Metadata{Kind: KindSignedRange, SLo: -1, SHi: math.MaxInt32}},
	}
	if blobID != 0 {
		props = append(props, RawProperty{Name: "IN_FORMATS", ID: propBase + 18, Value: blobID, Meta: Metadata{Kind: KindImmutable}})
	}
	return PlaneInfo{ID: id, PossibleCRTCs: crtcMask, Properties: props}
}

// setupOutput builds a Device+Output pair backed by a fakeBackend with
// the given planes already registered, and one CRTC at index 0.
func setupOutput(t testing.TB, planes []PlaneInfo) (*fakeBackend, *Device, *Output) {
	t.Helper()
	fb := newFakeBackend()
	fb.crtcIDs = []uint32{1}
	fb.planes = planes

	d, err := NewDevice(fb)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := d.RegisterPlanes(); err != nil {
		t.Fatalf("RegisterPlanes: %v", err)
	}
	out, err := NewOutput(d, 1)
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
	return fb, d, out
}

// setLayerRect is a small test convenience wrapping the four CRTC_*
// property writes a visible layer needs.
func setLayerRect(l *Layer, x, y, w, h int32) {
	l.SetProperty(PropCRTCX, uint64(uint32(x)))
	l.SetProperty(PropCRTCY, uint64(uint32(y)))
	l.SetProperty(PropCRTCW, uint64(w))
	l.SetProperty(PropCRTCH, uint64(h))
}
