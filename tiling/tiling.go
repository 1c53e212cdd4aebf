// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package tiling converts between linear row-major texel data and the
// console's 8x8 Morton-tiled storage layout.
//
// Tiled images are split into 8x8 tiles. Each tile is composed of four 4x4
// subtiles, each of which is composed of four 2x2 subtiles of four texels.
// Each structure is embedded into the next-bigger one in a diagonal pattern.
// Viewed with y growing upwards, a full tile is ordered like this:
//
//	42 43 46 47 58 59 62 63
//	40 41 44 45 56 57 60 61
//	34 35 38 39 50 51 54 55
//	32 33 36 37 48 49 52 53
//	10 11 14 15 26 27 30 31
//	08 09 12 13 24 25 28 29
//	02 03 06 07 18 19 22 23
//	00 01 04 05 16 17 20 21
//
// Tiles themselves are stored left to right, then by tile row.
package tiling

import "errors"

// TileSize is the edge length of a hardware tile in texels.
const TileSize = 8

// TexelsPerTile is the number of texels in one tile.
const TexelsPerTile = TileSize * TileSize

// tileLevels is the number of nested 2x2 levels in a tile (2x2, 4x4, 8x8).
const tileLevels = 3

var (
	// ErrUnaligned is returned when an image dimension is not a multiple of TileSize.
	ErrUnaligned = errors.New("tiling: dimensions must be multiples of 8")

	// ErrShortBuffer is returned when a source or destination buffer is too small.
	ErrShortBuffer = errors.New("tiling: buffer too small for image")

	// ErrInvalidTexelSize is returned for a zero or negative bytes-per-texel.
	ErrInvalidTexelSize = errors.New("tiling: bytes per texel must be positive")
)

// MortonIndex returns the index of texel (x, y) inside its 8x8 tile.
// Only the low three bits of x and y are significant.
func MortonIndex(x, y uint32) uint32 {
	var idx uint32
	for level := uint32(0); level < tileLevels; level++ {
		bit := uint32(1) << level
		idx += (x & bit) << level
		idx += 2 * ((y & bit) << level)
	}
	return idx
}

// MortonCoords is the inverse of MortonIndex for i in [0, 64).
func MortonCoords(i uint32) (x, y uint32) {
	for level := uint32(0); level < tileLevels; level++ {
		x |= (i >> (2 * level)) & 1 << level
		y |= (i >> (2*level + 1)) & 1 << level
	}
	return x, y
}

// Offset returns the byte offset of texel (x, y) in a tiled image of the
// given width, with bpp bytes per texel.
func Offset(x, y, width, bpp uint32) uint32 {
	coarseX := x &^ (TileSize - 1)
	coarseY := y &^ (TileSize - 1)
	rowStride := width * bpp
	return coarseX*TileSize*bpp + coarseY*rowStride + MortonIndex(x, y)*bpp
}

// Tile re-orders a linear row-major image in src into tiled order in dst.
func Tile(dst, src []byte, width, height, bpp int) error {
	if err := check(dst, src, width, height, bpp); err != nil {
		return err
	}
	rowStride := width * bpp
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := int(Offset(uint32(x), uint32(y), uint32(width), uint32(bpp))) //nolint:gosec // G115: dimensions validated above
			lin := y*rowStride + x*bpp
			copy(dst[off:off+bpp], src[lin:lin+bpp])
		}
	}
	return nil
}

// Untile re-orders a tiled image in src into linear row-major order in dst.
func Untile(dst, src []byte, width, height, bpp int) error {
	if err := check(dst, src, width, height, bpp); err != nil {
		return err
	}
	rowStride := width * bpp
	return UntileFunc(src, width, height, bpp, func(x, y int, texel []byte) {
		lin := y*rowStride + x*bpp
		copy(dst[lin:lin+bpp], texel)
	})
}

// UntileFunc calls fn for every texel of a tiled image in row-major order.
// The texel slice aliases src and must not be retained.
func UntileFunc(src []byte, width, height, bpp int, fn func(x, y int, texel []byte)) error {
	if err := checkDims(width, height, bpp); err != nil {
		return err
	}
	if len(src) < width*height*bpp {
		return ErrShortBuffer
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := int(Offset(uint32(x), uint32(y), uint32(width), uint32(bpp))) //nolint:gosec // G115: dimensions validated above
			fn(x, y, src[off:off+bpp])
		}
	}
	return nil
}

// Size returns the byte size of a width x height image with bpp bytes per texel.
func Size(width, height, bpp int) int {
	return width * height * bpp
}

func check(dst, src []byte, width, height, bpp int) error {
	if err := checkDims(width, height, bpp); err != nil {
		return err
	}
	n := Size(width, height, bpp)
	if len(dst) < n || len(src) < n {
		return ErrShortBuffer
	}
	return nil
}

func checkDims(width, height, bpp int) error {
	if bpp <= 0 {
		return ErrInvalidTexelSize
	}
	if width <= 0 || height <= 0 || width%TileSize != 0 || height%TileSize != 0 {
		return ErrUnaligned
	}
	return nil
}
