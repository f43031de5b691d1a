package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/icco/melodyplay/internal/melody"
)

var (
	exportOut           string
	exportRaw           bool
	exportAccompaniment bool
)

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export a melody as a Standard MIDI File",
	Long: `Write a melody's notes to a Standard MIDI File with a tempo track and a
melody track using the genre's General MIDI program. With --accompaniment
a bass line and a drum groove are added on their own tracks.

With --raw the MIDI file embedded in the melody's audio_url is saved as-is.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default FILE with .mid extension)")
	exportCmd.Flags().BoolVar(&exportRaw, "raw", false, "save the audio_url payload instead of rendering notes")
	exportCmd.Flags().BoolVar(&exportAccompaniment, "accompaniment", false, "add bass and drum tracks")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	in := args[0]
	mel, err := melody.LoadFile(in)
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		if in == "-" {
			return errors.New("--out is required when reading stdin")
		}
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".mid"
	}

	if exportRaw {
		data, err := melody.DecodeAudioURL(mel.AudioURL)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0600); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
	} else {
		var opts []melody.ExportOption
		if exportAccompaniment {
			opts = append(opts, melody.WithAccompaniment())
		}
		if err := melody.WriteSMF(out, mel, opts...); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
	return nil
}
