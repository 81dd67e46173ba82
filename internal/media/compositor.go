package media

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// CanvasOptions describes the vertical output layout
type CanvasOptions struct {
	Width           int
	Height          int
	ForegroundWidth int
	TopMargin       int
	BackgroundCRF   int // quality of the trimmed background cut
	OverlayCRF      int // quality of the composited output
}

// DefaultCanvas is the 1080x1920 layout with the image 30px from the top
var DefaultCanvas = CanvasOptions{
	Width:           1080,
	Height:          1920,
	ForegroundWidth: 920,
	TopMargin:       30,
	BackgroundCRF:   23,
	OverlayCRF:      18,
}

// Compositor builds the video track: still clip, background overlay and subtitle burn
type Compositor struct {
	ffmpeg  *FFmpeg
	ws      *Workspace
	canvas  CanvasOptions
	style   SubtitleStyle
	uniform Uniform
	log     zerolog.Logger
}

// NewCompositor creates a compositor writing into ws
func NewCompositor(ffmpeg *FFmpeg, ws *Workspace, log zerolog.Logger) *Compositor {
	return &Compositor{
		ffmpeg:  ffmpeg,
		ws:      ws,
		canvas:  DefaultCanvas,
		style:   DefaultSubtitleStyle,
		uniform: RandomUniform,
		log:     log,
	}
}

// StillClip renders the image as a 30fps clip of exactly FrameCount(target)
// frames, each losslessly encoded from the unscaled source.
func (c *Compositor) StillClip(ctx context.Context, imagePath string, target float64) (Asset, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return Asset{}, missing(imagePath)
	}
	frames := FrameCount(target)
	if frames <= 0 {
		return Asset{}, fmt.Errorf("target duration %.3f yields no frames", target)
	}

	out := c.ws.New(KindStill, "mp4")
	err := c.ffmpeg.run(ctx, "still_clip", out,
		"-y",
		"-loop", "1",
		"-framerate", fmt.Sprint(FrameRate),
		"-i", imagePath,
		"-frames:v", fmt.Sprint(frames),
		// 4:4:4 keeps odd sizes and full chroma; qp 0 makes every frame the source image
		"-vf", "format=yuv444p",
		"-c:v", "libx264",
		"-qp", "0",
		"-tune", "stillimage",
		"-preset", "fast",
		"-r", fmt.Sprint(FrameRate),
		out.Path,
	)
	if err != nil {
		return Asset{}, err
	}

	c.log.Info().
		Str("input", imagePath).
		Str("output", out.Path).
		Float64("duration", target).
		Int("frames", frames).
		Msg("image_video_created")

	return out, nil
}

// Overlay places the still clip over a random target-long cut of the background.
// When audio is non-nil it becomes the soundtrack of the result.
func (c *Compositor) Overlay(ctx context.Context, background, still Asset, audio *Asset, target float64) (Asset, error) {
	if !still.Exists() {
		return Asset{}, missing(still.Path)
	}
	if audio != nil && !audio.Exists() {
		return Asset{}, missing(audio.Path)
	}

	trimmed, err := c.TrimBackground(ctx, background, target)
	if err != nil {
		return Asset{}, err
	}

	out := c.ws.New(KindComposite, "mp4")
	args := []string{
		"-y",
		"-i", trimmed.Path,
		"-i", still.Path,
	}
	if audio != nil {
		args = append(args, "-i", audio.Path)
	}
	args = append(args,
		"-filter_complex", c.overlayFilter(),
		"-map", "[outv]",
	)
	if audio != nil {
		args = append(args, "-map", "2:a", "-c:a", "aac", "-b:a", "192k")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", fmt.Sprint(c.canvas.OverlayCRF),
		"-shortest",
		out.Path,
	)

	if err := c.ffmpeg.run(ctx, "overlay_video", out, args...); err != nil {
		return Asset{}, err
	}

	c.log.Info().
		Str("output", out.Path).
		Str("foreground", still.Path).
		Bool("with_audio", audio != nil).
		Msg("video_overlay_complete")

	return out, nil
}

// TrimBackground cuts exactly target seconds of background at a random offset
func (c *Compositor) TrimBackground(ctx context.Context, background Asset, target float64) (Asset, error) {
	if target <= 0 {
		return Asset{}, fmt.Errorf("target duration must be positive, got %.3f", target)
	}

	backgroundDuration, err := c.ffmpeg.Duration(ctx, background.Path)
	if err != nil {
		return Asset{}, err
	}

	start := BackgroundTrimStart(backgroundDuration, target, c.uniform)
	c.log.Info().
		Float64("start_time", start).
		Float64("total_duration", backgroundDuration).
		Msg("background_trim_start")

	out := c.ws.New(KindBackground, "mp4")
	err = c.ffmpeg.run(ctx, "trim_background", out,
		"-y",
		"-ss", formatSeconds(start),
		"-i", background.Path,
		"-t", formatSeconds(target),
		"-an",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", fmt.Sprint(c.canvas.BackgroundCRF),
		out.Path,
	)
	if err != nil {
		return Asset{}, err
	}

	return out, nil
}

// overlayFilter scales the background to the canvas and centers the
// foreground horizontally, TopMargin pixels from the top
func (c *Compositor) overlayFilter() string {
	return fmt.Sprintf(
		"[0:v]scale=%d:%d,setsar=1[bg];"+
			"[1:v]scale=%d:-1:flags=lanczos,setsar=1[fg];"+
			"[bg][fg]overlay=(main_w-overlay_w)/2:%d[outv]",
		c.canvas.Width, c.canvas.Height,
		c.canvas.ForegroundWidth,
		c.canvas.TopMargin,
	)
}

// Compress re-encodes the final video to a 720px wide, upload friendly file
func (c *Compositor) Compress(ctx context.Context, video Asset, crf int) (Asset, error) {
	if !video.Exists() {
		return Asset{}, missing(video.Path)
	}

	out := c.ws.New(KindFinal, "mp4")
	err := c.ffmpeg.run(ctx, "compress_video", out,
		"-y",
		"-i", video.Path,
		"-vf", "scale=720:-2",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", fmt.Sprint(crf),
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		out.Path,
	)
	if err != nil {
		return Asset{}, err
	}

	c.log.Info().Str("input", video.Path).Str("output", out.Path).Int("crf", crf).Msg("video_compression_complete")
	return out, nil
}
