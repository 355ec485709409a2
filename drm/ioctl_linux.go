// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build linux

package drm

// DRM ioctl numbers, encoded the standard Linux way:
//   _IO(type, nr)         = (type << 8) | nr
//   _IOR/_IOW/_IOWR(...)  = dir<<30 | size<<16 | type<<8 | nr
// 'd' (0x64) is the DRM ioctl type; sizes below match the 64-bit uapi
// struct layouts declared in this file.
const (
	ioctlSetClientCap          = 0x4010_640d
	ioctlModeGetResources      = 0xc040_64a0
	ioctlModeGetPlaneResources = 0xc010_64b5
	ioctlModeGetPlane          = 0xc020_64b6
	ioctlModeObjGetProperties  = 0xc020_64b9
	ioctlModeGetProperty       = 0xc040_64aa
	ioctlModeGetPropBlob       = 0xc010_64ac
	ioctlModeGetFB2            = 0xc068_64ce
	ioctlGEMClose              = 0x4008_6409
	ioctlModeAtomic            = 0xc038_64bc
)

// Client capabilities (DRM_CLIENT_CAP_*).
const (
	clientCapUniversalPlanes uint64 = 2
	clientCapAtomic          uint64 = 3
)

// Property flags (DRM_MODE_PROP_*).
const (
	propRange       uint32 = 1 << 1
	propImmutable   uint32 = 1 << 2
	propEnum        uint32 = 1 << 3
	propBlob        uint32 = 1 << 4
	propBitmask     uint32 = 1 << 5
	propExtended    uint32 = 0x0000ffc0
	propSignedRange uint32 = 2 << 6 // DRM_MODE_PROP_SIGNED_RANGE, an extended type
)

const (
	maxPropNameLen         = 32
	atomicFlagTestOnly     = 0x0100 // DRM_MODE_ATOMIC_TEST_ONLY
	fbFlagHasModifier      = 1 << 1 // DRM_MODE_FB_MODIFIERS
)

type modeCardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

type modeGetPlaneRes struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
	_           uint32
}

type modeGetPlane struct {
	PlaneID          uint32
	CrtcID           uint32
	FbID             uint32
	PossibleCRTCs    uint32
	GammaSize        uint32
	CountFormatTypes uint32
	FormatTypePtr    uint64
}

type modeObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
	_             uint32
}

type modeGetProperty struct {
	ValuesPtr   uint64
	EnumBlobPtr uint64
	PropID      uint32
	Flags       uint32
	Name        [maxPropNameLen]byte
	CountValues uint32
	CountEnum   uint32
}

type modeGetPropBlob struct {
	BlobID uint32
	Length uint32
	Data   uint64
}

type modeFB2 struct {
	FbID        uint32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Flags       uint32
	Handles     [4]uint32
	Pitches     [4]uint32
	Offsets     [4]uint32
	Modifier    [4]uint64
}

type gemCloseReq struct {
	Handle uint32
	Pad    uint32
}

type modeAtomic struct {
	Flags         uint32
	CountObjs     uint32
	ObjsPtr       uint64
	CountPropsPtr uint64
	PropsPtr      uint64
	PropValuesPtr uint64
	Reserved      uint64
	UserData      uint64
}

// formatModifierBlob is the header of a DRM_FORMAT_MODIFIER_BLOB
// (struct drm_format_modifier_blob). The formats array (count_formats
// uint32s) begins formats_offset bytes from the blob start; the
// modifiers array (count_modifiers struct drm_format_modifier, 24
// bytes each) begins at modifiers_offset.
type formatModifierBlob struct {
	Version         uint32
	Flags           uint32
	CountFormats    uint32
	FormatsOffset   uint32
	CountModifiers  uint32
	ModifiersOffset uint32
}

// drmFormatModifier mirrors struct drm_format_modifier.
type drmFormatModifier struct {
	Formats  uint64 // bitmask over formats[offset : offset+64]
	Offset   uint32
	Pad      uint32
	Modifier uint64
}
