package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/texcache/dump"
)

func newTextureCmd() *cobra.Command {
	var (
		width, height int
		format        string
		scale         int
	)
	cmd := &cobra.Command{
		Use:   "texture IN OUT",
		Short: "Convert a tiled BGR888 texture dump to an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			var opts []dump.TextureOption
			switch format {
			case "png":
			case "bmp":
				opts = append(opts, dump.WithBMP())
			default:
				return fmt.Errorf("unknown image format %q (want png or bmp)", format)
			}
			if scale > 1 {
				opts = append(opts, dump.WithScale(scale))
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, out.Close()) }()

			info := dump.TextureInfo{Width: width, Height: height}
			if err := dump.WriteTexture(out, info, data, opts...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d %s)\n", args[1], width*max(scale, 1), height*max(scale, 1), format)
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "texture width in texels, a multiple of 8")
	cmd.Flags().IntVar(&height, "height", 0, "texture height in texels, a multiple of 8")
	cmd.Flags().StringVar(&format, "format", "png", "output format: png or bmp")
	cmd.Flags().IntVar(&scale, "scale", 1, "nearest-neighbor enlargement factor")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}
