// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

// FlagPageFlipEvent mirrors DRM_MODE_PAGE_FLIP_EVENT. It requests that
// the kernel notify the caller when a real (non-test) commit completes;
// it is meaningless for a test-only probe and is always stripped before
// issuing one (spec §6).
const FlagPageFlipEvent uint32 = 1 << 0
