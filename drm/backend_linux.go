// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build linux

package drm

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"kmsplane.dev/kms"
)

// Backend drives a Linux DRM device node through raw ioctls.
type Backend struct {
	f *os.File
}

// New opens path (typically "/dev/dri/cardN"), enables the universal-
// planes and atomic client capabilities, and returns a ready Backend.
func New(path string) (*Backend, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("drm: open %s: %w", path, err)
	}
	b := &Backend{f: f}
	if err := b.setClientCap(clientCapUniversalPlanes); err != nil {
		f.Close()
		return nil, err
	}
	if err := b.setClientCap(clientCapAtomic); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the underlying device file.
func (b *Backend) Close() error { return b.f.Close() }

func (b *Backend) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return translate(errno)
	}
	return nil
}

// translate maps a raw errno from a kernel ioctl into the sentinel
// error taxonomy the allocator classifies (spec §7).
func translate(errno unix.Errno) error {
	switch errno {
	case unix.EINVAL:
		return fmt.Errorf("%w: %v", kms.ErrInvalid, errno)
	case unix.ERANGE:
		return fmt.Errorf("%w: %v", kms.ErrRange, errno)
	case unix.ENOSPC:
		return fmt.Errorf("%w: %v", kms.ErrNoSpace, errno)
	case unix.EAGAIN:
		return fmt.Errorf("%w: %v", kms.ErrAgain, errno)
	case unix.EINTR:
		return fmt.Errorf("%w: %v", kms.ErrInterrupted, errno)
	case unix.ENOMEM:
		return fmt.Errorf("%w: %v", kms.ErrNoMemory, errno)
	case unix.EEXIST:
		return fmt.Errorf("%w: %v", kms.ErrExist, errno)
	case unix.ENOENT:
		return fmt.Errorf("%w: %v", kms.ErrNotExist, errno)
	default:
		return fmt.Errorf("drm: ioctl failed: %v", errno)
	}
}

func (b *Backend) setClientCap(cap uint64) error {
	type setClientCap struct{ Capability, Value uint64 }
	req := setClientCap{Capability: cap, Value: 1}
	return b.ioctl(ioctlSetClientCap, unsafe.Pointer(&req))
}

// CRTCs implements kms.Backend.
func (b *Backend) CRTCs() ([]uint32, error) {
	var res modeCardRes
	if err := b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return nil, err
	}
	if res.CountCrtcs == 0 {
		return nil, nil
	}
	ids := make([]uint32, res.CountCrtcs)
	res2 := modeCardRes{
		CrtcIDPtr:  uint64(uintptr(unsafe.Pointer(&ids[0]))),
		CountCrtcs: res.CountCrtcs,
	}
	if err := b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res2)); err != nil {
		return nil, err
	}
	return ids, nil
}

// Planes implements kms.Backend.
func (b *Backend) Planes() ([]kms.PlaneInfo, error) {
	var pres modeGetPlaneRes
	if err := b.ioctl(ioctlModeGetPlaneResources, unsafe.Pointer(&pres)); err != nil {
		return nil, err
	}
	if pres.CountPlanes == 0 {
		return nil, nil
	}
	ids := make([]uint32, pres.CountPlanes)
	pres2 := modeGetPlaneRes{
		PlaneIDPtr:  uint64(uintptr(unsafe.Pointer(&ids[0]))),
		CountPlanes: pres.CountPlanes,
	}
	if err := b.ioctl(ioctlModeGetPlaneResources, unsafe.Pointer(&pres2)); err != nil {
		return nil, err
	}

	infos := make([]kms.PlaneInfo, 0, len(ids))
	for _, id := range ids {
		var gp modeGetPlane
		gp.PlaneID = id
		if err := b.ioctl(ioctlModeGetPlane, unsafe.Pointer(&gp)); err != nil {
			return nil, err
		}
		props, err := b.objectProperties(id, objTypePlane)
		if err != nil {
			return nil, err
		}
		// The kernel's plane type enum is OVERLAY=0, PRIMARY=1,
		// CURSOR=2; kms.HWType orders them PRIMARY, OVERLAY, CURSOR.
		for i := range props {
			if props[i].Name != "type" {
				continue
			}
			switch props[i].Value {
			case 0:
				props[i].Value = uint64(kms.TypeOverlay)
			case 1:
				props[i].Value = uint64(kms.TypePrimary)
			}
		}
		infos = append(infos, kms.PlaneInfo{
			ID:            id,
			PossibleCRTCs: gp.PossibleCRTCs,
			Properties:    props,
		})
	}
	return infos, nil
}

const objTypePlane uint32 = 0xeeeeeeee // DRM_MODE_OBJECT_PLANE

// objectProperties enumerates every property on objID and resolves
// each one's kernel metadata into kms.Metadata.
func (b *Backend) objectProperties(objID, objType uint32) ([]kms.RawProperty, error) {
	var op modeObjGetProperties
	op.ObjID, op.ObjType = objID, objType
	if err := b.ioctl(ioctlModeObjGetProperties, unsafe.Pointer(&op)); err != nil {
		return nil, err
	}
	if op.CountProps == 0 {
		return nil, nil
	}

	propIDs := make([]uint32, op.CountProps)
	values := make([]uint64, op.CountProps)
	op2 := modeObjGetProperties{
		ObjID:         objID,
		ObjType:       objType,
		CountProps:    op.CountProps,
		PropsPtr:      uint64(uintptr(unsafe.Pointer(&propIDs[0]))),
		PropValuesPtr: uint64(uintptr(unsafe.Pointer(&values[0]))),
	}
	if err := b.ioctl(ioctlModeObjGetProperties, unsafe.Pointer(&op2)); err != nil {
		return nil, err
	}

	out := make([]kms.RawProperty, 0, len(propIDs))
	for i, id := range propIDs {
		name, meta, err := b.propertyMeta(id)
		if err != nil {
			return nil, err
		}
		out = append(out, kms.RawProperty{
			Name:  name,
			ID:    id,
			Value: values[i],
			Meta:  meta,
		})
	}
	return out, nil
}

// propertyMeta fetches a property's name and kernel-declared kind
// (spec §4.1).
func (b *Backend) propertyMeta(propID uint32) (string, kms.Metadata, error) {
	var gp modeGetProperty
	gp.PropID = propID
	if err := b.ioctl(ioctlModeGetProperty, unsafe.Pointer(&gp)); err != nil {
		return "", kms.Metadata{}, err
	}
	name := cString(gp.Name[:])

	values := make([]uint64, gp.CountValues)
	enums := make([]modePropertyEnum, gp.CountEnum)
	gp2 := gp
	if gp.CountValues > 0 {
		gp2.ValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	}
	if gp.CountEnum > 0 {
		gp2.EnumBlobPtr = uint64(uintptr(unsafe.Pointer(&enums[0])))
	}
	if gp.CountValues > 0 || gp.CountEnum > 0 {
		if err := b.ioctl(ioctlModeGetProperty, unsafe.Pointer(&gp2)); err != nil {
			return "", kms.Metadata{}, err
		}
	}

	meta := kms.Metadata{}
	switch {
	case gp.Flags&propImmutable != 0:
		meta.Kind = kms.KindImmutable
	case gp.Flags&propBitmask != 0:
		meta.Kind = kms.KindBitmask
		for _, e := range enums {
			meta.Mask |= 1 << e.Value
		}
	case gp.Flags&propEnum != 0:
		meta.Kind = kms.KindEnum
		for _, e := range enums {
			meta.Enums = append(meta.Enums, e.Value)
		}
	case gp.Flags&propExtended == propSignedRange && len(values) >= 2:
		meta.Kind = kms.KindSignedRange
		meta.SLo, meta.SHi = int64(values[0]), int64(values[1])
	case gp.Flags&propRange != 0 && len(values) >= 2:
		meta.Kind = kms.KindRange
		meta.Lo, meta.Hi = values[0], values[1]
	default:
		meta.Kind = kms.KindRange
		meta.Lo, meta.Hi = 0, ^uint64(0)
	}
	return name, meta, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// FormatBlob implements kms.Backend.
func (b *Backend) FormatBlob(blobID uint64) (*kms.FormatBlob, error) {
	var gb modeGetPropBlob
	gb.BlobID = uint32(blobID)
	if err := b.ioctl(ioctlModeGetPropBlob, unsafe.Pointer(&gb)); err != nil {
		return nil, err
	}
	if gb.Length == 0 {
		return &kms.FormatBlob{}, nil
	}
	data := make([]byte, gb.Length)
	gb2 := modeGetPropBlob{
		BlobID: uint32(blobID),
		Length: gb.Length,
		Data:   uint64(uintptr(unsafe.Pointer(&data[0]))),
	}
	if err := b.ioctl(ioctlModeGetPropBlob, unsafe.Pointer(&gb2)); err != nil {
		return nil, err
	}
	return parseFormatModifierBlob(data)
}

func parseFormatModifierBlob(data []byte) (*kms.FormatBlob, error) {
	const hdrSize = 24
	if len(data) < hdrSize {
		return nil, fmt.Errorf("%w: IN_FORMATS blob too small", kms.ErrInvalid)
	}
	var hdr formatModifierBlob
	hdr.Version = binary.LittleEndian.Uint32(data[0:4])
	hdr.Flags = binary.LittleEndian.Uint32(data[4:8])
	hdr.CountFormats = binary.LittleEndian.Uint32(data[8:12])
	hdr.FormatsOffset = binary.LittleEndian.Uint32(data[12:16])
	hdr.CountModifiers = binary.LittleEndian.Uint32(data[16:20])
	hdr.ModifiersOffset = binary.LittleEndian.Uint32(data[20:24])

	out := &kms.FormatBlob{
		Formats: make([]uint32, hdr.CountFormats),
		Mods:    make([]kms.ModifierDescriptor, hdr.CountModifiers),
	}
	fo := int(hdr.FormatsOffset)
	for i := range out.Formats {
		off := fo + i*4
		if off+4 > len(data) {
			return nil, fmt.Errorf("%w: IN_FORMATS blob truncated", kms.ErrInvalid)
		}
		out.Formats[i] = binary.LittleEndian.Uint32(data[off : off+4])
	}
	const modSize = 24 // struct drm_format_modifier: u64 + u32 + u32 + u64
	mo := int(hdr.ModifiersOffset)
	for i := range out.Mods {
		off := mo + i*modSize
		if off+modSize > len(data) {
			return nil, fmt.Errorf("%w: IN_FORMATS blob truncated", kms.ErrInvalid)
		}
		formats := binary.LittleEndian.Uint64(data[off : off+8])
		offset := binary.LittleEndian.Uint32(data[off+8 : off+12])
		modifier := binary.LittleEndian.Uint64(data[off+16 : off+24])
		out.Mods[i] = kms.ModifierDescriptor{
			Modifier: modifier,
			Offset:   int(offset),
			Formats:  formats,
		}
	}
	return out, nil
}

// FBInfo implements kms.Backend.
func (b *Backend) FBInfo(fbID uint32) (kms.FBInfo, error) {
	var fb modeFB2
	fb.FbID = fbID
	if err := b.ioctl(ioctlModeGetFB2, unsafe.Pointer(&fb)); err != nil {
		return kms.FBInfo{}, err
	}
	hasMod := fb.Flags&fbFlagHasModifier != 0
	var mod uint64
	if hasMod {
		mod = fb.Modifier[0]
	}
	return kms.FBInfo{
		Width:       fb.Width,
		Height:      fb.Height,
		PixelFormat: fb.PixelFormat,
		Modifier:    mod,
		HasModifier: hasMod,
		Handles:     fb.Handles,
	}, nil
}

// CloseHandle implements kms.Backend.
func (b *Backend) CloseHandle(handle uint32) error {
	req := gemCloseReq{Handle: handle}
	return b.ioctl(ioctlGEMClose, unsafe.Pointer(&req))
}

// TestCommit implements kms.Backend.
func (b *Backend) TestCommit(ops []kms.WriteOp, flags uint32) error {
	if len(ops) == 0 {
		return nil
	}
	objs := make([]uint32, 0, len(ops))
	counts := make([]uint32, 0, len(ops))
	props := make([]uint32, 0, len(ops))
	values := make([]uint64, 0, len(ops))

	lastObj := ^uint32(0)
	for _, op := range ops {
		if op.ObjID != lastObj {
			objs = append(objs, op.ObjID)
			counts = append(counts, 0)
			lastObj = op.ObjID
		}
		counts[len(counts)-1]++
		props = append(props, op.PropID)
		values = append(values, op.Value)
	}

	req := modeAtomic{
		Flags:         flags | atomicFlagTestOnly,
		CountObjs:     uint32(len(objs)),
		ObjsPtr:       uint64(uintptr(unsafe.Pointer(&objs[0]))),
		CountPropsPtr: uint64(uintptr(unsafe.Pointer(&counts[0]))),
		PropsPtr:      uint64(uintptr(unsafe.Pointer(&props[0]))),
		PropValuesPtr: uint64(uintptr(unsafe.Pointer(&values[0]))),
	}
	return b.ioctl(ioctlModeAtomic, unsafe.Pointer(&req))
}

var _ kms.Backend = (*Backend)(nil)
