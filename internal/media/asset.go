package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies what an asset holds
type Kind string

const (
	KindNarration  Kind = "narration"
	KindMusic      Kind = "music"
	KindMix        Kind = "mix"
	KindImage      Kind = "image"
	KindStill      Kind = "still"
	KindBackground Kind = "background"
	KindComposite  Kind = "composite"
	KindCaptions   Kind = "captions"
	KindFinal      Kind = "final"
)

// Asset is an owned handle to a file produced or adopted by a Workspace.
// Every derived file gets a new Asset; an Asset's path is never rewritten
// by another stage. Durations are not stored here, callers probe on demand.
type Asset struct {
	Key  string
	Path string
	Kind Kind
}

func (a Asset) String() string {
	return fmt.Sprintf("%s(%s)", a.Kind, filepath.Base(a.Path))
}

// Exists reports whether the asset file is present
func (a Asset) Exists() bool {
	if a.Path == "" {
		return false
	}
	_, err := os.Stat(a.Path)
	return err == nil
}

// Workspace is a per-render scratch directory handing out unique asset paths
type Workspace struct {
	dir string
}

// NewWorkspace creates a fresh directory under root
func NewWorkspace(root string) (*Workspace, error) {
	dir := filepath.Join(root, uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// New reserves a path for an asset that a stage is about to write
func (w *Workspace) New(kind Kind, ext string) Asset {
	key := uuid.New().String()
	ext = strings.TrimPrefix(ext, ".")
	return Asset{
		Key:  key,
		Path: filepath.Join(w.dir, fmt.Sprintf("%s_%s.%s", kind, key, ext)),
		Kind: kind,
	}
}

// Write stores data as a new asset
func (w *Workspace) Write(kind Kind, ext string, data []byte) (Asset, error) {
	asset := w.New(kind, ext)
	if err := os.WriteFile(asset.Path, data, 0644); err != nil {
		return Asset{}, fmt.Errorf("failed to write %s: %w", kind, err)
	}
	return asset, nil
}

// Adopt wraps a file that already exists, such as a downloaded input
func (w *Workspace) Adopt(kind Kind, path string) (Asset, error) {
	if _, err := os.Stat(path); err != nil {
		return Asset{}, missing(path)
	}
	return Asset{Key: uuid.New().String(), Path: path, Kind: kind}, nil
}

// Cleanup removes the workspace and everything in it
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.dir)
}
