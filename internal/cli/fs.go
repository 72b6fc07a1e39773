package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
)

// mkExclDir creates a child directory of parent that did not exist prior
// to this call, appending numeric suffixes (stem-1, stem-2, ...) until an
// unused name is found. Returns the path of the created directory.
func mkExclDir(parent, stem string) (string, error) {
	name := filepath.Join(parent, stem)
	for i := 0; ; {
		switch err := os.Mkdir(name, 0755); {
		case err == nil:
			return name, nil
		case errors.Is(err, os.ErrExist):
			i++
			name = filepath.Join(parent, stem+"-"+strconv.Itoa(i))
		default:
			return "", fmt.Errorf("create directory error: %w", err)
		}
	}
}

// archiveStem derives a directory name from the archive's location, so
// "https://host/builds/app.zip?signature=..." extracts into "app".
func archiveStem(target string) string {
	base := target
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		base = u.Path
	}

	stem := path.Base(base)
	stem = stem[:len(stem)-len(path.Ext(stem))]
	if stem == "" || stem == "." || stem == "/" {
		return "archive"
	}
	return stem
}
