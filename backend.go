// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

// RawProperty is the kernel's view of one object property, as reported
// by property enumeration, before it is folded into the closed
// PropertyIndex set (spec §9: unknown names are dropped at this
// boundary).
type RawProperty struct {
	Name  string
	ID    uint32
	Value uint64
	Meta  Metadata
}

// HWType is a plane's hardware type (spec §3).
type HWType int

// HWType values.
const (
	TypePrimary HWType = iota
	TypeOverlay
	TypeCursor
)

// PlaneInfo is everything the device wrapper needs to register one
// hardware plane (spec §4.3).
type PlaneInfo struct {
	ID            uint32
	PossibleCRTCs uint32
	Properties    []RawProperty
}

// ModifierDescriptor is one entry of an IN_FORMATS blob: the modifier it
// describes, and the bitmap window over the blob's format array that
// lists which formats support it (spec §4.2).
type ModifierDescriptor struct {
	Modifier uint64
	Offset   int
	Formats  uint64 // bitmap over formats[Offset : Offset+64]
}

// FormatBlob is a plane's parsed IN_FORMATS capability matrix.
type FormatBlob struct {
	Formats []uint32
	Mods    []ModifierDescriptor
}

// FBInfo is the framebuffer metadata the allocator needs to test plane
// compatibility (spec §4.2/§4.7). HasModifier distinguishes a legacy
// (no-modifier) framebuffer from one with an explicit modifier of zero
// (DRM_FORMAT_MOD_LINEAR), since the two have different fallback
// behavior in Plane.Supports.
type FBInfo struct {
	Width, Height uint32
	PixelFormat   uint32
	Modifier      uint64
	HasModifier   bool

	// Handles are the driver object handles transferred to the
	// caller by the metadata call; the caller (fetchFBInfo) is
	// responsible for closing every non-zero, de-duplicated handle.
	Handles [4]uint32
}

// Backend is the external collaborator contract for the KMS ioctl
// surface (spec §1, "out of scope"): resource/property enumeration,
// IN_FORMATS and framebuffer metadata retrieval, handle release, and the
// atomic test-commit call. The allocator core never talks to the kernel
// directly; it only ever calls through this interface, which is what
// makes the search testable with an in-memory fake (see fakeBackend in
// fake_backend_test.go).
type Backend interface {
	// CRTCs returns the device's CRTC object IDs, index order
	// matching the kernel's internal CRTC index.
	CRTCs() ([]uint32, error)

	// Planes returns every plane the device exposes, in no
	// particular order; Device.RegisterPlanes is responsible for
	// sorting them per spec §4.3.
	Planes() ([]PlaneInfo, error)

	// FormatBlob parses the IN_FORMATS blob identified by blobID.
	FormatBlob(blobID uint64) (*FormatBlob, error)

	// FBInfo fetches framebuffer metadata for fbID. Returning
	// ErrNotExist means "no such fb"; the caller treats that as a
	// degraded-but-usable layer per spec §4.7.
	FBInfo(fbID uint32) (FBInfo, error)

	// CloseHandle releases a framebuffer object handle obtained from
	// FBInfo.
	CloseHandle(handle uint32) error

	// TestCommit probes whether ops would succeed as a single atomic
	// transaction, without applying it. flags is caller-supplied,
	// with PAGE_FLIP_EVENT already stripped (spec §6).
	TestCommit(ops []WriteOp, flags uint32) error
}
