// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package drm implements kms.Backend against the Linux DRM/KMS ioctl
// surface using raw syscalls (no cgo, no libdrm). On platforms other
// than Linux, New returns a backend whose queries and TestCommit report
// the backend as unsupported (Close and CloseHandle are no-ops), so
// programs built for other targets still link.
package drm
