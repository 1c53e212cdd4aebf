// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/gogpu/texcache"
)

// Header magics of the shader binary container.
const (
	MagicDVLB uint32 = 0x424C5644 // "DVLB"
	MagicDVLP uint32 = 0x504C5644 // "DVLP"
	MagicDVLE uint32 = 0x454C5644 // "DVLE"
)

// ShaderType is the program kind stored in a DVLE header.
type ShaderType uint8

const (
	ShaderVertex   ShaderType = 0
	ShaderGeometry ShaderType = 1
)

// Semantic is the value of one vertex shader output attribute map field.
type Semantic uint8

const (
	PositionX   Semantic = 0
	PositionY   Semantic = 1
	PositionZ   Semantic = 2
	PositionW   Semantic = 3
	ColorR      Semantic = 8
	ColorG      Semantic = 9
	ColorB      Semantic = 10
	ColorA      Semantic = 11
	Texcoord0U  Semantic = 12
	Texcoord0V  Semantic = 13
	Texcoord1U  Semantic = 14
	Texcoord1V  Semantic = 15
	Texcoord2U  Semantic = 22
	Texcoord2V  Semantic = 23
	SemanticNil Semantic = 31
)

// NumOutputAttributes is the number of vertex shader output attributes.
const NumOutputAttributes = 7

// OutputAttribute maps the four components of one shader output register.
type OutputAttribute struct {
	MapX, MapY, MapZ, MapW Semantic
}

func (a OutputAttribute) maps() [4]Semantic {
	return [4]Semantic{a.MapX, a.MapY, a.MapZ, a.MapW}
}

// RegisterType is the semantic class of an output register entry.
type RegisterType uint16

const (
	RegisterPosition  RegisterType = 0
	RegisterColor     RegisterType = 2
	RegisterTexcoord0 RegisterType = 3
	RegisterTexcoord1 RegisterType = 5
	RegisterTexcoord2 RegisterType = 6
)

type semanticInfo struct {
	typ  RegisterType
	mask uint8
}

var semantics = map[Semantic]semanticInfo{
	PositionX:  {RegisterPosition, 1},
	PositionY:  {RegisterPosition, 2},
	PositionZ:  {RegisterPosition, 4},
	PositionW:  {RegisterPosition, 8},
	ColorR:     {RegisterColor, 1},
	ColorG:     {RegisterColor, 2},
	ColorB:     {RegisterColor, 4},
	ColorA:     {RegisterColor, 8},
	Texcoord0U: {RegisterTexcoord0, 1},
	Texcoord0V: {RegisterTexcoord0, 2},
	Texcoord1U: {RegisterTexcoord1, 1},
	Texcoord1V: {RegisterTexcoord1, 2},
	Texcoord2U: {RegisterTexcoord2, 1},
	Texcoord2V: {RegisterTexcoord2, 2},
}

// OutputRegister is one entry of the DVLE output register table.
type OutputRegister struct {
	Type          RegisterType
	ID            uint16
	ComponentMask uint8
}

// Pack encodes the entry: type in bits 0..15, id in bits 16..31 and the
// component mask in bits 32..35.
func (r OutputRegister) Pack() uint64 {
	return uint64(r.Type) | uint64(r.ID)<<16 | uint64(r.ComponentMask&0xF)<<32
}

// UnpackOutputRegister decodes an entry written by Pack.
func UnpackOutputRegister(v uint64) OutputRegister {
	return OutputRegister{
		Type:          RegisterType(v & 0xFFFF),
		ID:            uint16(v >> 16),
		ComponentMask: uint8(v>>32) & 0xF,
	}
}

// ShaderProgram is a shader as configured on the emulated GPU.
type ShaderProgram struct {
	Type ShaderType

	// Binary holds the program words. MainOffset and EndMainOffset index it.
	Binary        []uint32
	MainOffset    uint32
	EndMainOffset uint32

	// Swizzles holds the operand descriptor patterns.
	Swizzles []uint32

	Outputs [NumOutputAttributes]OutputAttribute
}

// OutputRegisters translates the output attribute maps into register
// table entries. Entries for the same register and type merge their masks.
// Unmapped components are skipped. An unknown semantic yields an
// *texcache.UnsupportedConfigurationError.
func (p *ShaderProgram) OutputRegisters() ([]OutputRegister, error) {
	var table []OutputRegister
	for i, attr := range p.Outputs {
		for _, sem := range attr.maps() {
			if sem == SemanticNil {
				continue
			}
			info, ok := semantics[sem]
			if !ok {
				return nil, &texcache.UnsupportedConfigurationError{
					What: "output attribute mapping",
					Detail: fmt.Sprintf("attribute %d: %03x, %03x, %03x, %03x",
						i, attr.MapX, attr.MapY, attr.MapZ, attr.MapW),
				}
			}
			merged := false
			for j := range table {
				if table[j].ID == uint16(i) && table[j].Type == info.typ {
					table[j].ComponentMask |= info.mask
					merged = true
					break
				}
			}
			if !merged {
				table = append(table, OutputRegister{Type: info.typ, ID: uint16(i), ComponentMask: info.mask})
			}
		}
	}
	return table, nil
}

// DVLBHeader opens a shader binary. DVLEOffset is the single entry of the
// DVLE offset table that follows it.
type DVLBHeader struct {
	Magic       uint32
	NumPrograms uint32
	DVLEOffset  uint32
}

// DVLPHeader describes the program blob. Offsets are relative to the DVLP
// header.
type DVLPHeader struct {
	Magic                     uint32
	Version                   uint32
	BinaryOffset              uint32
	BinarySizeWords           uint32
	SwizzlePatternsOffset     uint32
	SwizzlePatternsNumEntries uint32
	Unk2                      uint32
}

// DVLEHeader describes one executable. Table offsets are relative to the
// DVLE header.
type DVLEHeader struct {
	Magic              uint32
	Pad1               uint16
	Type               ShaderType
	Pad2               uint8
	MainOffsetWords    uint32
	EndMainOffsetWords uint32
	Pad3               uint32
	Pad4               uint32

	ConstantTableOffset       uint32
	ConstantTableSize         uint32
	LabelTableOffset          uint32
	LabelTableSize            uint32
	OutputRegisterTableOffset uint32
	OutputRegisterTableSize   uint32
	UniformTableOffset        uint32
	UniformTableSize          uint32
	SymbolTableOffset         uint32
	SymbolTableSize           uint32
}

// Header sizes as stored. The DVLB size does not include its offset table.
const (
	dvlbSize = 8
	dvlpSize = 28
	dvleSize = 64
)

// WriteShader writes p as a shader binary: DVLB header and DVLE offset,
// DVLP, DVLE, the program words, the swizzle patterns each followed by a
// zero word, then the output register table.
func WriteShader(w io.Writer, p *ShaderProgram) error {
	return writeShader(w, p, texcache.Logger())
}

func writeShader(w io.Writer, p *ShaderProgram, log *slog.Logger) error {
	outputs, err := p.OutputRegisters()
	if err != nil {
		log.Error("dump: unknown output attribute mapping", "err", err)
		return err
	}

	const (
		dvlpOffset = dvlbSize + 4
		dvleOffset = dvlpOffset + dvlpSize
		dataOffset = dvleOffset + dvleSize
	)
	binaryBytes := uint32(len(p.Binary)) * 4     //nolint:gosec // G115: program size bounded by the emulated GPU
	swizzleBytes := uint32(len(p.Swizzles)) * 8 //nolint:gosec // G115: as above

	dvlb := DVLBHeader{Magic: MagicDVLB, NumPrograms: 1, DVLEOffset: dvleOffset}
	dvlp := DVLPHeader{
		Magic:                     MagicDVLP,
		BinaryOffset:              dataOffset - dvlpOffset,
		BinarySizeWords:           uint32(len(p.Binary)), //nolint:gosec // G115: as above
		SwizzlePatternsOffset:     dataOffset + binaryBytes - dvlpOffset,
		SwizzlePatternsNumEntries: uint32(len(p.Swizzles)), //nolint:gosec // G115: as above
	}
	dvle := DVLEHeader{
		Magic:                     MagicDVLE,
		Type:                      p.Type,
		MainOffsetWords:           p.MainOffset,
		EndMainOffsetWords:        p.EndMainOffset,
		OutputRegisterTableOffset: dataOffset + binaryBytes + swizzleBytes - dvleOffset,
		OutputRegisterTableSize:   uint32(len(outputs)), //nolint:gosec // G115: at most 28 entries
	}

	var buf bytes.Buffer
	buf.Grow(int(dataOffset+binaryBytes+swizzleBytes) + 8*len(outputs))
	put := func(v any) {
		// bytes.Buffer writes never fail.
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	put(&dvlb)
	put(&dvlp)
	put(&dvle)
	if len(p.Binary) > 0 {
		put(p.Binary)
	}
	for _, s := range p.Swizzles {
		put([2]uint32{s, 0})
	}
	for _, o := range outputs {
		put(o.Pack())
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("dump: write shader: %w", err)
	}
	return nil
}

// ShaderFile is a parsed shader binary.
type ShaderFile struct {
	DVLB DVLBHeader
	DVLP DVLPHeader
	DVLE DVLEHeader

	Binary   []uint32
	Swizzles []uint32
	Outputs  []OutputRegister
}

// ReadShader parses a shader binary written by WriteShader.
func ReadShader(r io.Reader) (*ShaderFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dump: read shader: %w", err)
	}
	f := &ShaderFile{}

	// span returns count elements of size elem at off, checking the bounds
	// before anything sized by the file is allocated.
	span := func(off, count, elem uint64, what string) ([]byte, error) {
		if count > uint64(len(data))/elem || off > uint64(len(data))-count*elem {
			return nil, fmt.Errorf("dump: shader %s at %d: %w", what, off, io.ErrUnexpectedEOF)
		}
		return data[off : off+count*elem], nil
	}
	read := func(off uint64, what string, v any) error {
		b, err := span(off, 1, uint64(binary.Size(v)), what) //nolint:gosec // G115: header sizes are small constants
		if err != nil {
			return err
		}
		_, err = binary.Decode(b, binary.LittleEndian, v)
		return err
	}

	if err := read(0, "DVLB", &f.DVLB); err != nil {
		return nil, err
	}
	if f.DVLB.Magic != MagicDVLB {
		return nil, fmt.Errorf("dump: bad DVLB magic %#08x", f.DVLB.Magic)
	}
	if f.DVLB.NumPrograms != 1 {
		return nil, &texcache.UnsupportedConfigurationError{
			What:   "shader binary",
			Detail: fmt.Sprintf("%d programs", f.DVLB.NumPrograms),
		}
	}
	const dvlpOffset = dvlbSize + 4
	if err := read(dvlpOffset, "DVLP", &f.DVLP); err != nil {
		return nil, err
	}
	if f.DVLP.Magic != MagicDVLP {
		return nil, fmt.Errorf("dump: bad DVLP magic %#08x", f.DVLP.Magic)
	}
	dvleOffset := uint64(f.DVLB.DVLEOffset)
	if err := read(dvleOffset, "DVLE", &f.DVLE); err != nil {
		return nil, err
	}
	if f.DVLE.Magic != MagicDVLE {
		return nil, fmt.Errorf("dump: bad DVLE magic %#08x", f.DVLE.Magic)
	}

	b, err := span(dvlpOffset+uint64(f.DVLP.BinaryOffset), uint64(f.DVLP.BinarySizeWords), 4, "binary")
	if err != nil {
		return nil, err
	}
	f.Binary = make([]uint32, f.DVLP.BinarySizeWords)
	for i := range f.Binary {
		f.Binary[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	b, err = span(dvlpOffset+uint64(f.DVLP.SwizzlePatternsOffset), uint64(f.DVLP.SwizzlePatternsNumEntries), 8, "swizzle patterns")
	if err != nil {
		return nil, err
	}
	for i := range int(f.DVLP.SwizzlePatternsNumEntries) {
		f.Swizzles = append(f.Swizzles, binary.LittleEndian.Uint32(b[8*i:]))
	}
	b, err = span(dvleOffset+uint64(f.DVLE.OutputRegisterTableOffset), uint64(f.DVLE.OutputRegisterTableSize), 8, "output registers")
	if err != nil {
		return nil, err
	}
	for i := range int(f.DVLE.OutputRegisterTableSize) {
		f.Outputs = append(f.Outputs, UnpackOutputRegister(binary.LittleEndian.Uint64(b[8*i:])))
	}
	return f, nil
}
