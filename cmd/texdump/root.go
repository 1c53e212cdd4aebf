package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gogpu/texcache"
)

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "texdump",
		Short: "Inspect texture cache dumps",
		Long: `texdump converts the raw diagnostic dumps written by the texture cache
into viewable files and exercises the cache against an in-memory backend.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose {
				texcache.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newTextureCmd(),
		newShaderCmd(),
		newMortonCmd(),
		newTraceCmd(),
		newRoundtripCmd(),
	)
	return root
}
