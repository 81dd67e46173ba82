package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/shortform/internal/narration"
	"github.com/therealutkarshpriyadarshi/shortform/internal/subtitle"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

func newCaptionsCommand() *cobra.Command {
	var (
		out    string
		offset float64
		trim   bool
	)

	cmd := &cobra.Command{
		Use:   "captions [words.json]",
		Short: "Compile SRT captions from word timings",
		Long: "Reads a JSON array of {text,start,end} word timings from a file or stdin\n" +
			"and writes SRT captions to --out or stdout.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open timings: %w", err)
				}
				defer f.Close()
				in = f
			}

			var words []models.WordTiming
			if err := json.NewDecoder(in).Decode(&words); err != nil {
				return fmt.Errorf("decode timings: %w", err)
			}

			if trim {
				trimmed, boundary, err := narration.TrimPreamble(words)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v, keeping all words\n", err)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "trimmed preamble ending at %.3fs\n", boundary)
				}
				words = trimmed
			}

			if out != "" {
				n, err := subtitle.WriteFile(out, words, offset)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d cues to %s\n", n, out)
				return nil
			}
			return subtitle.Encode(cmd.OutOrStdout(), subtitle.Compile(words, offset))
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output SRT path (stdout when empty)")
	cmd.Flags().Float64Var(&offset, "offset", subtitle.DefaultOffset, "Seconds added to every timestamp")
	cmd.Flags().BoolVar(&trim, "trim-preamble", false, "Drop words up to and including the preamble boundary")

	return cmd
}
