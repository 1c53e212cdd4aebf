package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/texcache/regtrace"
)

func newTraceCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trace IN",
		Short: "Print a serialized register trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			tr, err := regtrace.ReadTrace(f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, wr := range tr.Writes {
				if limit > 0 && i == limit {
					fmt.Fprintf(w, "... %d more\n", len(tr.Writes)-limit)
					break
				}
				fmt.Fprintf(w, "%6d  0x%03x = 0x%08x\n", i, wr.ID, wr.Value)
			}
			fmt.Fprintf(w, "%d writes\n", len(tr.Writes))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many writes (0 prints all)")
	return cmd
}
