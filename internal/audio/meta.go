package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// TrackTitle extracts a display title for an uploaded file, preferring the
// embedded metadata tag and falling back to the bare filename.
func TrackTitle(path, originalName string) string {
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if m, err := tag.ReadFrom(f); err == nil {
			if title := strings.TrimSpace(m.Title()); title != "" {
				return title
			}
		}
	}

	name := originalName
	if name == "" {
		name = filepath.Base(path)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
