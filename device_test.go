// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

import (
	"errors"
	"testing"
)

func TestNewDeviceLoadsCRTCs(t *testing.T) {
	fb := newFakeBackend()
	fb.crtcIDs = []uint32{1, 2, 3}
	d, err := NewDevice(fb)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if got := d.CRTCs(); len(got) != 3 || got[1] != 2 {
		t.Fatalf("CRTCs: have %v, want [1 2 3]", got)
	}
	if idx, ok := d.crtcIndex(2); !ok || idx != 1 {
		t.Fatalf("crtcIndex(2): have (%d, %v), want (1, true)", idx, ok)
	}
	if _, ok := d.crtcIndex(99); ok {
		t.Fatalf("crtcIndex on an unknown id: ok = true, want false")
	}
}

// RegisterPlanes must order the device's planes PRIMARY-first, then by
// descending zpos among the rest, regardless of discovery order (spec
// §4.3).
func TestRegisterPlanesOrdering(t *testing.T) {
	fb := newFakeBackend()
	fb.crtcIDs = []uint32{1}
	fb.planes = []PlaneInfo{
		newTestPlane(30, TypeOverlay, 1, 1, 0),
		newTestPlane(10, TypePrimary, 0, 1, 0),
		newTestPlane(40, TypeOverlay, 3, 1, 0),
		newTestPlane(20, TypeCursor, 2, 1, 0),
		newTestPlane(50, TypeOverlay, 2, 1, 0),
	}
	d, err := NewDevice(fb)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := d.RegisterPlanes(); err != nil {
		t.Fatalf("RegisterPlanes: %v", err)
	}
	if d.planes[0].ID() != 10 || d.planes[0].Type() != TypePrimary {
		t.Fatalf("planes[0]: have id %d type %v, want the primary plane first", d.planes[0].ID(), d.planes[0].Type())
	}
	for i := 1; i < len(d.planes)-1; i++ {
		if d.planes[i].Zpos() < d.planes[i+1].Zpos() {
			t.Fatalf("planes not in descending zpos order after the primary: %+v", d.planes)
		}
	}
}

// A plane without a declared zpos gets one synthesized from its
// hardware type and position relative to the first PRIMARY plane (spec
// §4.3).
func TestRegisterPlanesSynthesizesZpos(t *testing.T) {
	fb := newFakeBackend()
	fb.crtcIDs = []uint32{1}
	primary := newTestPlane(10, TypePrimary, 0, 1, 0)
	cursor := newTestPlane(20, TypeCursor, 0, 1, 0)
	below := newTestPlane(5, TypeOverlay, 0, 1, 0) // id below the primary's
	above := newTestPlane(15, TypeOverlay, 0, 1, 0)

	stripZpos := func(p *PlaneInfo) {
		out := p.Properties[:0]
		for _, rp := range p.Properties {
			if rp.Name != "zpos" {
				out = append(out, rp)
			}
		}
		p.Properties = out
	}
	stripZpos(&primary)
	stripZpos(&cursor)
	stripZpos(&below)
	stripZpos(&above)
	fb.planes = []PlaneInfo{primary, cursor, below, above}

	d, err := NewDevice(fb)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := d.RegisterPlanes(); err != nil {
		t.Fatalf("RegisterPlanes: %v", err)
	}

	find := func(id uint32) *Plane {
		for _, p := range d.planes {
			if p.ID() == id {
				return p
			}
		}
		t.Fatalf("plane %d not registered", id)
		return nil
	}
	if z := find(10).Zpos(); z != 0 {
		t.Errorf("synthesized primary zpos: have %d, want 0", z)
	}
	if z := find(20).Zpos(); z != 2 {
		t.Errorf("synthesized cursor zpos: have %d, want 2", z)
	}
	if z := find(5).Zpos(); z != -1 {
		t.Errorf("synthesized zpos for an overlay whose id is below the primary's: have %d, want -1", z)
	}
	if z := find(15).Zpos(); z != 1 {
		t.Errorf("synthesized zpos for an overlay whose id is above the primary's: have %d, want 1", z)
	}
}

func TestRegisterPlanesRejectsDuplicateID(t *testing.T) {
	fb := newFakeBackend()
	fb.crtcIDs = []uint32{1}
	fb.planes = []PlaneInfo{
		newTestPlane(10, TypePrimary, 0, 1, 0),
		newTestPlane(10, TypeOverlay, 1, 1, 0),
	}
	d, err := NewDevice(fb)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	err = d.RegisterPlanes()
	if !errors.Is(err, ErrExist) {
		t.Fatalf("RegisterPlanes with a duplicate id: err = %v, want ErrExist", err)
	}
}

func TestRegisterPlanesRejectsMissingType(t *testing.T) {
	fb := newFakeBackend()
	fb.crtcIDs = []uint32{1}
	fb.planes = []PlaneInfo{{ID: 10, PossibleCRTCs: 1}}
	d, err := NewDevice(fb)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := d.RegisterPlanes(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("RegisterPlanes on a plane without a type property: err = %v, want ErrInvalid", err)
	}
}

func TestDeviceTickAgesPriorityOncePerPeriod(t *testing.T) {
	fb := newFakeBackend()
	fb.crtcIDs = []uint32{1}
	fb.planes = []PlaneInfo{newTestPlane(10, TypePrimary, 0, 1, 0)}
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
	l := out.NewLayer()
	l.SetProperty(PropFBID, 1)
	l.SetProperty(PropFBID, 2) // bumps pendingPriority

	for i := 0; i < PriorityPeriod-1; i++ {
		d.tick()
	}
	if l.CurrentPriority() != 0 {
		t.Fatalf("priority aged early: have %d, want 0 before the period elapses", l.CurrentPriority())
	}
	d.tick()
	if l.CurrentPriority() != 1 {
		t.Fatalf("CurrentPriority after one full period: have %d, want 1", l.CurrentPriority())
	}
}

// Destroying a plane (e.g. on hot-unplug) removes it from its device and
// leaves any layer it was driving without a plane.
func TestPlaneDestroyRemovesFromDevice(t *testing.T) {
	fb := newFakeBackend()
	fb.crtcIDs = []uint32{1}
	fb.planes = []PlaneInfo{
		newTestPlane(10, TypePrimary, 0, 1, 0),
		newTestPlane(11, TypeOverlay, 1, 1, 0),
	}
	d, err := NewDevice(fb)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := d.RegisterPlanes(); err != nil {
		t.Fatalf("RegisterPlanes: %v", err)
	}
	if len(d.planes) != 2 {
		t.Fatalf("before Destroy: have %d planes, want 2", len(d.planes))
	}

	victim := d.planes[1]
	l := newBareLayer()
	victim.assigned = l
	l.plane = victim

	victim.Destroy()

	if len(d.planes) != 1 {
		t.Fatalf("after Destroy: have %d planes, want 1", len(d.planes))
	}
	if d.planes[0].ID() == victim.ID() {
		t.Fatalf("the destroyed plane is still registered on the device")
	}
	if l.Plane() != nil {
		t.Fatalf("the layer previously assigned to the destroyed plane still reports a plane")
	}
}
