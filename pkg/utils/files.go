package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAudioExtensions are the suffixes treated as candidate audio files.
var DefaultAudioExtensions = []string{".mp3", ".wav"}

// ListAudioFiles returns the regular files directly inside dir whose
// extension is one of exts, sorted by name. Symlinks are followed and kept
// when they resolve to a regular file. Subdirectories are not visited.
func ListAudioFiles(dir string, exts []string, caseSensitive bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !HasExtension(entry.Name(), exts, caseSensitive) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		} else if !entry.Type().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

// HasExtension reports whether name ends in one of exts.
func HasExtension(name string, exts []string, caseSensitive bool) bool {
	ext := filepath.Ext(name)
	if ext == "" {
		return false
	}
	for _, want := range exts {
		if caseSensitive && ext == want {
			return true
		}
		if !caseSensitive && strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// NormalizeExtensions trims exts, drops empty entries and makes sure each
// starts with a dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
