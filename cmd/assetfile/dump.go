package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <FILE...>",
	Short: "Dump the metadata of serialized files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(args)
		if err != nil {
			return err
		}
		defer ws.Close()

		w := bufio.NewWriter(cmd.OutOrStdout())
		for _, f := range ws.Files() {
			fmt.Fprintf(w, "== %s", f.Name())
			if f.Bundle != nil {
				fmt.Fprintf(w, " (bundle %s)", f.Bundle.Path)
			}
			w.WriteString(" ==\n")
			if err := f.Dump(w); err != nil {
				return err
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
