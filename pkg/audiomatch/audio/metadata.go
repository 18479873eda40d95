package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Tags holds the descriptive metadata embedded in an audio file.
type Tags struct {
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Format   string `json:"format,omitempty"`
}

// ReadTags reads ID3/MP4/FLAC/OGG tags from path.
func ReadTags(path string) (*Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("reading tags from %s: %w", filepath.Base(path), err)
	}

	return &Tags{
		Filename: filepath.Base(path),
		Title:    strings.TrimSpace(m.Title()),
		Artist:   strings.TrimSpace(m.Artist()),
		Album:    strings.TrimSpace(m.Album()),
		Format:   string(m.Format()),
	}, nil
}

// String renders `"Title" by Artist`, falling back to the file name.
func (t *Tags) String() string {
	if t == nil {
		return ""
	}
	switch {
	case t.Title != "" && t.Artist != "":
		return fmt.Sprintf("%q by %s", t.Title, t.Artist)
	case t.Title != "":
		return fmt.Sprintf("%q", t.Title)
	default:
		return t.Filename
	}
}
