package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/texcache"
	"github.com/gogpu/texcache/internal/memhal"
)

func newRoundtripCmd() *cobra.Command {
	var (
		width, height, levels uint32
		format                string
		linear                bool
	)
	cmd := &cobra.Command{
		Use:   "roundtrip",
		Short: "Upload and download a surface through the in-memory backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pf, err := texcache.ParsePixelFormat(format)
			if err != nil {
				return err
			}
			params := texcache.SurfaceParams{
				Format:    pf,
				Target:    texcache.Target2D,
				Width:     width,
				Height:    height,
				Depth:     1,
				NumLevels: levels,
				NumLayers: 1,
				Tiled:     !linear,
			}
			return roundtrip(cmd, params)
		},
	}
	cmd.Flags().Uint32Var(&width, "width", 16, "surface width")
	cmd.Flags().Uint32Var(&height, "height", 16, "surface height")
	cmd.Flags().Uint32Var(&levels, "levels", 1, "mip levels")
	cmd.Flags().StringVar(&format, "format", "RGBA8", "pixel format")
	cmd.Flags().BoolVar(&linear, "linear", false, "treat guest data as linear instead of tiled")
	return cmd
}

func roundtrip(cmd *cobra.Command, params texcache.SurfaceParams) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	dev, q := memhal.New()
	sched := texcache.NewHALScheduler(dev, q)
	defer sched.Close()
	m, err := texcache.NewManager(dev, sched)
	if err != nil {
		return err
	}
	defer m.Close()

	s, err := m.GetSurface(0x1000, params)
	if err != nil {
		return err
	}
	in := make([]byte, params.SizeInBytes())
	for i := range in {
		in[i] = byte(i*7 + 3)
	}
	if err := s.UploadTexture(ctx, in); err != nil {
		return err
	}
	out := make([]byte, len(in))
	if err := s.DownloadTexture(ctx, out); err != nil {
		return err
	}
	if !bytes.Equal(in, out) {
		return fmt.Errorf("%s %dx%d: download differs from upload", params.Format, params.Width, params.Height)
	}

	backing := "texture"
	if s.IsBuffer() {
		backing = "buffer"
	}
	st := dev.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d levels=%d tiled=%t backing=%s: ok, %d bytes, %d submits\n",
		params.Format, params.Width, params.Height, params.NumLevels, params.Tiled, backing, len(in), st.Submits)
	return nil
}
