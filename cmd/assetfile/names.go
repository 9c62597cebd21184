package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/assetfile/assetfile/names"
)

var (
	usePrefix    bool
	showProgress bool
)

// namesCmd represents the names command
var namesCmd = &cobra.Command{
	Use:   "names <FILE...>",
	Short: "List the display names of objects",
	Long: `Each named file is loaded, and a line is printed for every object of every
serialized file: the file name, the path ID, the type, and the display name,
separated by tabs. Script references between the named files are followed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(args)
		if err != nil {
			return err
		}
		defer ws.Close()

		files := ws.Files()
		var bar *pb.ProgressBar
		if showProgress {
			total := 0
			for _, f := range files {
				total += len(f.Objects)
			}
			bar = pb.New(total).Prefix("Objects:")
			bar.Output = os.Stderr
			bar.Start()
		}

		r := names.NewResolver(ws, 0)
		w := bufio.NewWriter(cmd.OutOrStdout())
		degraded := 0
		for _, f := range files {
			for _, obj := range f.Objects {
				res := r.Resolve(obj, usePrefix)
				if res.Degraded() {
					degraded++
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", f.Name(), obj.PathID, res.Type, res.Name)
				if bar != nil {
					bar.Increment()
				}
			}
		}
		if bar != nil {
			bar.Finish()
		}
		if degraded > 0 {
			logrus.Infof("%d objects named by fallback", degraded)
		}
		return w.Flush()
	},
}

func init() {
	namesCmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress bar on stderr")
	namesCmd.Flags().BoolVar(&usePrefix, "prefix", false, "prefix GameObject names with their type")
	rootCmd.AddCommand(namesCmd)
}
