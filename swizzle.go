// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texcache

import "fmt"

// SwizzleSource selects what one output channel of a view reads.
// The zero value keeps the channel unchanged.
type SwizzleSource uint8

// Swizzle sources.
const (
	SwizzleIdentity SwizzleSource = iota
	SwizzleZero
	SwizzleOne
	SwizzleR
	SwizzleG
	SwizzleB
	SwizzleA
)

func (s SwizzleSource) String() string {
	switch s {
	case SwizzleIdentity:
		return "Identity"
	case SwizzleZero:
		return "Zero"
	case SwizzleOne:
		return "One"
	case SwizzleR:
		return "R"
	case SwizzleG:
		return "G"
	case SwizzleB:
		return "B"
	case SwizzleA:
		return "A"
	default:
		return fmt.Sprintf("SwizzleSource(%d)", uint8(s))
	}
}

// Swizzle remaps the four channels of a view.
type Swizzle struct {
	X, Y, Z, W SwizzleSource
}

// IdentitySwizzle reads every channel from itself.
var IdentitySwizzle = Swizzle{}

// RGBASwizzle names each channel explicitly. It samples like IdentitySwizzle
// but is cached under its own key.
var RGBASwizzle = Swizzle{SwizzleR, SwizzleG, SwizzleB, SwizzleA}

// Key packs the four selectors into the 32-bit view cache key.
func (s Swizzle) Key() uint32 {
	return uint32(s.X)<<24 | uint32(s.Y)<<16 | uint32(s.Z)<<8 | uint32(s.W)
}

// SwizzleFromKey unpacks a key produced by Swizzle.Key.
func SwizzleFromKey(key uint32) Swizzle {
	return Swizzle{
		X: SwizzleSource(key >> 24),
		Y: SwizzleSource(key >> 16),
		Z: SwizzleSource(key >> 8),
		W: SwizzleSource(key),
	}
}

func (s Swizzle) String() string {
	return fmt.Sprintf("%s%s%s%s", s.X, s.Y, s.Z, s.W)
}

func (s Swizzle) valid() bool {
	for _, c := range [4]SwizzleSource{s.X, s.Y, s.Z, s.W} {
		if c > SwizzleA {
			return false
		}
	}
	return true
}

// Matrix returns the channel mix applied by shaders that honor the swizzle:
// out[i] = dot(m[i], sample) + k[i].
func (s Swizzle) Matrix() (m [4][4]float32, k [4]float32) {
	for i, c := range [4]SwizzleSource{s.X, s.Y, s.Z, s.W} {
		switch c {
		case SwizzleIdentity:
			m[i][i] = 1
		case SwizzleOne:
			k[i] = 1
		case SwizzleR, SwizzleG, SwizzleB, SwizzleA:
			m[i][c-SwizzleR] = 1
		}
	}
	return m, k
}
