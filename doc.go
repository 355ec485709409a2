// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package kms implements a hardware-plane allocator for Linux KMS/DRM
// atomic modesetting: given a set of client layers and a device's
// scanout planes, it searches for an assignment of layers to planes
// that displays as many layers as possible on dedicated hardware,
// falling back to a client-designated composition layer for the rest.
//
// The package never talks to the kernel directly; every kernel
// interaction goes through the Backend interface, which the drm
// subpackage implements against the real ioctl surface.
package kms
