package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/shortform/internal/media"
	"github.com/therealutkarshpriyadarshi/shortform/internal/narration"
	"github.com/therealutkarshpriyadarshi/shortform/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/shortform/internal/speech"
)

type localOptions struct {
	title       string
	image       string
	music       string
	background  string
	out         string
	captionsOut string
	voice       string
	keepTemp    bool
	compress    bool
}

func (o localOptions) validate() error {
	if o.title == "" {
		return errors.New("--title is required")
	}
	for flag, path := range map[string]string{
		"--image":      o.image,
		"--music":      o.music,
		"--background": o.background,
	} {
		if path == "" {
			return fmt.Errorf("%s is required", flag)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s: %w", flag, err)
		}
	}
	if o.out == "" {
		return errors.New("--out is required")
	}
	return nil
}

func newLocalCommand(ctx *commandContext) *cobra.Command {
	var opts localOptions

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Render one video from local files",
		Long: "Runs the full pipeline on local inputs without the database, queue or\n" +
			"object storage. Only the speech provider is contacted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}

			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			renderCfg := cfg.Render
			if cmd.Flags().Changed("compress") {
				renderCfg.Compress = opts.compress
			}
			voice := cfg.Speech.Voice
			if opts.voice != "" {
				voice.VoiceID = opts.voice
			}

			log := ctx.logger(cmd.ErrOrStderr())

			speechClient := speech.NewClient(cfg.Speech)
			ffmpeg := media.NewFFmpeg(renderCfg.FFmpegPath, renderCfg.FFprobePath)
			engine := narration.NewEngine(speechClient, speechClient, ffmpeg, log.Zerolog())
			renderer := pipeline.NewRenderer(ffmpeg, engine, renderCfg, log)

			root := renderCfg.TempDir
			if root == "" {
				root = os.TempDir()
			}
			ws, err := media.NewWorkspace(root)
			if err != nil {
				return err
			}
			if opts.keepTemp {
				fmt.Fprintf(cmd.ErrOrStderr(), "workspace kept at %s\n", ws.Dir())
			} else {
				defer ws.Cleanup()
			}

			result, err := renderer.Render(cmd.Context(), ws, pipeline.RenderRequest{
				RenderID:       uuid.New().String(),
				Title:          opts.title,
				ImagePath:      opts.image,
				MusicPath:      opts.music,
				BackgroundPath: opts.background,
				Voice:          voice,
			})
			if err != nil {
				return err
			}

			if err := copyFile(result.Output.Path, opts.out); err != nil {
				return err
			}
			rows := [][]string{
				{"video", opts.out},
				{"narration", fmt.Sprintf("%.3fs", result.NarrationDuration)},
				{"duration", fmt.Sprintf("%.3fs", result.TargetDuration)},
				{"cues", fmt.Sprintf("%d", result.Cues)},
				{"preamble trimmed", fmt.Sprintf("%t", result.Trimmed)},
			}
			if opts.captionsOut != "" && result.CaptionsPath != "" {
				if err := copyFile(result.CaptionsPath, opts.captionsOut); err != nil {
					return err
				}
				rows = append(rows, []string{"captions", opts.captionsOut})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Output", "Value"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "Title to narrate")
	cmd.Flags().StringVar(&opts.image, "image", "", "Still image placed over the footage")
	cmd.Flags().StringVar(&opts.music, "music", "", "Background music track")
	cmd.Flags().StringVar(&opts.background, "background", "", "Background footage")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output video path")
	cmd.Flags().StringVar(&opts.captionsOut, "captions-out", "", "Also keep the SRT captions at this path")
	cmd.Flags().StringVar(&opts.voice, "voice", "", "Voice ID overriding the configured voice")
	cmd.Flags().BoolVar(&opts.keepTemp, "keep-temp", false, "Keep the workspace after rendering")
	cmd.Flags().BoolVar(&opts.compress, "compress", false, "Re-encode the final video at the configured CRF")

	return cmd
}

func copyFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", filepath.Base(dst), err)
	}
	return out.Close()
}
