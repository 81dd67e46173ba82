package media

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SubtitleStyle holds the ASS force_style used when burning captions
type SubtitleStyle struct {
	FontName     string
	FontSize     int
	PrimaryColor string // &HAABBGGRR
	OutlineColor string
	Bold         bool
	Outline      int
	Shadow       int
	Alignment    int // ASS legacy alignment, 10 is middle-center
}

// DefaultSubtitleStyle is bold cyan-yellow Montserrat with a black outline
var DefaultSubtitleStyle = SubtitleStyle{
	FontName:     "Montserrat",
	FontSize:     12,
	PrimaryColor: "&H00FFFF00",
	OutlineColor: "&H00000000",
	Bold:         true,
	Outline:      2,
	Shadow:       0,
	Alignment:    10,
}

// ForceStyle renders the style as an ffmpeg subtitles force_style value
func (s SubtitleStyle) ForceStyle() string {
	bold := 0
	if s.Bold {
		bold = 1
	}
	return fmt.Sprintf(
		"FontName=%s,FontSize=%d,PrimaryColour=%s,Bold=%d,Outline=%d,OutlineColour=%s,Shadow=%d,Alignment=%d",
		s.FontName, s.FontSize, s.PrimaryColor, bold, s.Outline, s.OutlineColor, s.Shadow, s.Alignment,
	)
}

// BurnSubtitles draws the captions into the video and copies the audio.
// A missing or empty captions file is not an error: the input is returned as is.
func (c *Compositor) BurnSubtitles(ctx context.Context, video Asset, captionsPath string) (Asset, error) {
	info, err := os.Stat(captionsPath)
	if captionsPath == "" || err != nil || info.Size() == 0 {
		c.log.Warn().Str("captions", captionsPath).Msg("subtitle_missing_or_empty")
		return video, nil
	}
	if !video.Exists() {
		return Asset{}, missing(video.Path)
	}

	out := c.ws.New(KindFinal, "mp4")
	err = c.ffmpeg.run(ctx, "burn_subtitles", out,
		"-y",
		"-i", video.Path,
		"-vf", subtitleFilter(captionsPath, c.style),
		"-c:a", "copy",
		out.Path,
	)
	if err != nil {
		return Asset{}, err
	}

	c.log.Info().Str("input", video.Path).Str("output", out.Path).Msg("subtitle_burn_complete")
	return out, nil
}

func subtitleFilter(captionsPath string, style SubtitleStyle) string {
	// option value level: backslash, quote and colon are special
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`).Replace(captionsPath)
	// graph level: quoted, so commas and brackets are literal; ' closes, is escaped, and reopens
	quoted := "'" + strings.ReplaceAll(escaped, "'", `'\''`) + "'"
	return fmt.Sprintf("subtitles=%s:force_style='%s'", quoted, style.ForceStyle())
}
