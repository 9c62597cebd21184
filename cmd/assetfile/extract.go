package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"

	"github.com/assetfile/assetfile/names"
	"github.com/assetfile/assetfile/resource"
	"github.com/assetfile/assetfile/serialized"
)

var extractFlags struct {
	source string
	offset uint64
	size   uint64
	wav    bool
}

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <FILE> <PATHID> [OUTPUT]",
	Short: "Extract the external payload of an object",
	Long: `The payload of object PATHID is read from the location described by its
resource field, or by the --source, --offset and --size flags. It is written to
OUTPUT, or to standard output. If OUTPUT is a directory, the payload is written
to a file inside it named after the object.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pathID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad path ID: %w", err)
		}
		ws, err := openWorkspace(args[:1])
		if err != nil {
			return err
		}
		defer ws.Close()

		var obj *serialized.Object
		for _, f := range ws.Files() {
			if o, ok := f.Object(pathID); ok {
				obj = o
				break
			}
		}
		if obj == nil {
			return fmt.Errorf("no object with path ID %d in %s", pathID, args[0])
		}

		loc := resource.Locator{Source: extractFlags.source, Offset: extractFlags.offset, Size: extractFlags.size}
		if loc.Source == "" {
			if loc, err = resource.LocatorOf(obj); err != nil {
				return err
			}
		}
		data, err := resource.Extract(obj.File, loc)
		if err != nil {
			return fmt.Errorf("extract %s: %w", loc, err)
		}
		ext := "bin"
		if extractFlags.wav {
			ext = "wav"
			if err := resource.PatchWAVHeader(data); err != nil {
				return err
			}
		}

		sum := blake2b.Sum256(data)
		l := logrus.WithFields(logrus.Fields{"source": loc.Source, "size": len(data)})
		if len(args) < 3 {
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}
			l.Infof("blake2b-256 %x", sum)
			return nil
		}

		out := args[2]
		if info, err := os.Stat(out); err == nil && info.IsDir() {
			res := names.NewResolver(ws, 0).Resolve(obj, false)
			out = filepath.Join(out, names.ExportFileName(res.Name, obj.File.Name(), obj.PathID, ext))
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		l.WithField("output", out).Infof("blake2b-256 %x", sum)
		return nil
	},
}

func init() {
	fl := extractCmd.Flags()
	fl.StringVar(&extractFlags.source, "source", "", "source path of the payload")
	fl.Uint64Var(&extractFlags.offset, "offset", 0, "byte offset of the payload within the source")
	fl.Uint64Var(&extractFlags.size, "size", 0, "byte size of the payload")
	fl.BoolVar(&extractFlags.wav, "wav", false, "fix the sizes in the RIFF header of the payload")
	rootCmd.AddCommand(extractCmd)
}
