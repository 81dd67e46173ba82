package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
)

func TestGetContentType(t *testing.T) {
	tests := []struct {
		filePath string
		wantType string
	}{
		{"renders/r-1/final.mp4", "video/mp4"},
		{"clip.MOV", "video/quicktime"},
		{"music/lofi.mp3", "audio/mpeg"},
		{"mix.m4a", "audio/mp4"},
		{"captions.srt", "application/x-subrip"},
		{"images/meme.png", "image/png"},
		{"images/meme.jpeg", "image/jpeg"},
		{"images/meme.JPG", "image/jpeg"},
		{"unknown.xyz", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filePath, func(t *testing.T) {
			contentType := getContentType(tt.filePath)
			if contentType != tt.wantType {
				t.Errorf("getContentType(%q) = %q, want %q", tt.filePath, contentType, tt.wantType)
			}
		})
	}
}

func TestPickRandom(t *testing.T) {
	keys := []string{
		"music/",
		"music/a.mp3",
		"music/readme.txt",
		"music/b.MP3",
		"music/c.wav",
	}

	t.Run("only matching extensions", func(t *testing.T) {
		var seen []string
		for i := 0; i < 2; i++ {
			key, err := pickRandom(keys, "music/", ".mp3", func(n int) int {
				assert.Equal(t, 2, n)
				return i
			})
			require.NoError(t, err)
			seen = append(seen, key)
		}
		assert.Equal(t, []string{"music/a.mp3", "music/b.MP3"}, seen)
	})

	t.Run("nothing to pick", func(t *testing.T) {
		_, err := pickRandom(keys, "music/", ".mp4", func(int) int { return 0 })
		assert.True(t, errors.Is(err, ErrNoObjects))
		assert.Contains(t, err.Error(), `"music/"`)
	})
}

// TestStorageIntegration runs against a real MinIO when MINIO_ENDPOINT is set
func TestStorageIntegration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" || testing.Short() {
		t.Skip("MINIO_ENDPOINT not set")
	}

	s, err := New(config.StorageConfig{
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("MINIO_ACCESS_KEY"),
		SecretAccessKey: os.Getenv("MINIO_SECRET_KEY"),
		BucketName:      "shortform-test",
	})
	require.NoError(t, err)

	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "track.mp3")
	require.NoError(t, os.WriteFile(src, []byte("mp3"), 0644))

	require.NoError(t, s.UploadFile(ctx, "music/test/track.mp3", src))
	defer s.Delete(ctx, "music/test/track.mp3")

	key, err := s.RandomObject(ctx, "music/test/", ".mp3")
	require.NoError(t, err)
	assert.Equal(t, "music/test/track.mp3", key)

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	dst := filepath.Join(dir, "copy.mp3")
	require.NoError(t, s.DownloadFile(ctx, key, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "mp3", string(data))

	url, err := s.GetURL(ctx, key)
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "track.mp3"))
}
