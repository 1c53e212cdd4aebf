package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/texcache/dump"
)

func newShaderCmd() *cobra.Command {
	var (
		mainOffset, endOffset uint32
		swizzleFile           string
		outputs               string
		geometry              bool
	)
	cmd := &cobra.Command{
		Use:   "shader IN OUT",
		Short: "Wrap raw little-endian shader words into a shbin file",
		Long: `shader wraps raw little-endian program words into a shbin container.

Output attribute maps are given as a comma separated list, one entry per
output register, each with four hex semantics separated by colons, e.g.
"0:1:2:3,8:9:a:b". Registers not listed are unmapped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			p := &dump.ShaderProgram{MainOffset: mainOffset, EndMainOffset: endOffset}
			if geometry {
				p.Type = dump.ShaderGeometry
			}
			if p.Binary, err = readWords(args[0]); err != nil {
				return err
			}
			if swizzleFile != "" {
				if p.Swizzles, err = readWords(swizzleFile); err != nil {
					return err
				}
			}
			if p.Outputs, err = parseOutputs(outputs); err != nil {
				return err
			}

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, out.Close()) }()
			if err := dump.WriteShader(out, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d words, %d swizzles)\n", args[1], len(p.Binary), len(p.Swizzles))
			return nil
		},
	}
	cmd.Flags().Uint32Var(&mainOffset, "main", 0, "main entry point in words")
	cmd.Flags().Uint32Var(&endOffset, "endmain", 0, "end of main in words")
	cmd.Flags().StringVar(&swizzleFile, "swizzle", "", "file of raw little-endian swizzle patterns")
	cmd.Flags().StringVar(&outputs, "outputs", "", "output attribute maps")
	cmd.Flags().BoolVar(&geometry, "geometry", false, "mark the program as a geometry shader")
	return cmd
}

func readWords(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%s: size %d is not a multiple of 4", path, len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words, nil
}

func parseOutputs(maps string) ([dump.NumOutputAttributes]dump.OutputAttribute, error) {
	var out [dump.NumOutputAttributes]dump.OutputAttribute
	for i := range out {
		out[i] = dump.OutputAttribute{MapX: dump.SemanticNil, MapY: dump.SemanticNil, MapZ: dump.SemanticNil, MapW: dump.SemanticNil}
	}
	if maps == "" {
		return out, nil
	}
	attrs := strings.Split(maps, ",")
	if len(attrs) > dump.NumOutputAttributes {
		return out, fmt.Errorf("outputs: %d attributes, at most %d", len(attrs), dump.NumOutputAttributes)
	}
	for i, attr := range attrs {
		fields := strings.Split(attr, ":")
		if len(fields) != 4 {
			return out, fmt.Errorf("outputs: attribute %d: want 4 semantics, got %q", i, attr)
		}
		var sem [4]dump.Semantic
		for j, f := range fields {
			v, err := strconv.ParseUint(strings.TrimSpace(f), 16, 8)
			if err != nil {
				return out, fmt.Errorf("outputs: attribute %d: %w", i, err)
			}
			sem[j] = dump.Semantic(v)
		}
		out[i] = dump.OutputAttribute{MapX: sem[0], MapY: sem[1], MapZ: sem[2], MapW: sem[3]}
	}
	return out, nil
}
