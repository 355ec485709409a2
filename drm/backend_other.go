// Copyright 2022 Gustavo C. Viegas. All rights reserved.

//go:build !linux

package drm

import (
	"fmt"

	"kmsplane.dev/kms"
)

// Backend is a non-functional stand-in used on platforms without a DRM
// ioctl surface, so that code importing this package still links. Every
// query and TestCommit fails; Close and CloseHandle are no-ops that
// return nil. New never returns an error itself since opening a device
// node is meaningless here.
type Backend struct{}

// New returns a Backend whose queries and TestCommit report the backend
// as unsupported. path is accepted but ignored.
func New(path string) (*Backend, error) {
	return &Backend{}, nil
}

// Close is a no-op.
func (b *Backend) Close() error { return nil }

var errUnsupported = fmt.Errorf("%w: drm backend unavailable on this platform", kms.ErrNotExist)

func (b *Backend) CRTCs() ([]uint32, error)                       { return nil, errUnsupported }
func (b *Backend) Planes() ([]kms.PlaneInfo, error)               { return nil, errUnsupported }
func (b *Backend) FormatBlob(uint64) (*kms.FormatBlob, error)     { return nil, errUnsupported }
func (b *Backend) FBInfo(uint32) (kms.FBInfo, error)              { return kms.FBInfo{}, errUnsupported }
func (b *Backend) CloseHandle(uint32) error                       { return nil }
func (b *Backend) TestCommit(ops []kms.WriteOp, flags uint32) error { return errUnsupported }

var _ kms.Backend = (*Backend)(nil)
