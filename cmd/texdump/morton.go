package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/texcache/tiling"
)

func newMortonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "morton",
		Short: "Print the texel order inside an 8x8 tile",
		Long:  "morton prints the index of every texel of an 8x8 tile, top row first with y growing upwards.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			for y := tiling.TileSize - 1; y >= 0; y-- {
				for x := 0; x < tiling.TileSize; x++ {
					if x > 0 {
						fmt.Fprint(w, " ")
					}
					fmt.Fprintf(w, "%02d", tiling.MortonIndex(uint32(x), uint32(y)))
				}
				fmt.Fprintln(w)
			}
		},
	}
}
