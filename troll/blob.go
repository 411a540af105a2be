// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package troll

import "math/rand"

const (
	smallBlobSize  = 1024
	mediumBlobSize = 1 << 20  // 1 MiB
	largeBlobSize  = 16 << 20 // 16 MiB
	hugeBlobSize   = 192 << 20
)

// blobSize draws a size from the weighted distribution the "replace
// with a BLOB" perturbation uses: 0.1% at 192 MiB, 0.9% at 16 MiB, 1%
// at the small 1 KiB size, and the remaining 98% at 1 MiB. Only the
// 1 KiB draw is reported as retainable. The perturbation menus discard
// that flag; Runner sets the retained flag only when republishing a
// BLOB-classified message whose perturbed payload is at most 1 KiB, so
// a large payload is never retained.
func blobSize(rng *rand.Rand) (size int, retained bool) {
	switch roll := rng.Float64(); {
	case roll < 0.001:
		return hugeBlobSize, false
	case roll < 0.010:
		return largeBlobSize, false
	case roll < 0.020:
		return smallBlobSize, true
	default:
		return mediumBlobSize, false
	}
}

// smallBlob returns a retained, 1 KiB random payload -- the BLOB size
// used wherever the weighted distribution in blobSize lands on the
// small, retainable draw rather than a large one.
func smallBlob(rng *rand.Rand) []byte {
	return randomBytes(rng, smallBlobSize)
}

// largeBlob draws a size from the weighted distribution and returns
// that many random bytes, plus whether the draw is retainable.
func largeBlob(rng *rand.Rand) ([]byte, bool) {
	size, retained := blobSize(rng)
	if retained {
		return smallBlob(rng), true
	}
	return randomBytes(rng, size), false
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rng.Read(b) //nolint:errcheck // math/rand.Rand.Read never errors
	return b
}
