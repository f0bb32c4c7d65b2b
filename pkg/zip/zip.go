// Package zip bundles downloaded artifacts into a single archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

type Entry struct {
	Filename string
	Data     []byte
	Modified time.Time
}

// Archive writes entries in order. Duplicate names get a numeric suffix so no
// entry shadows another. Media is already compressed, so entries are stored.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		name := uniqueName(path.Base(strings.ReplaceAll(e.Filename, "\\", "/")), seen)
		hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: e.Modified}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueName(name string, seen map[string]int) string {
	if name == "" || name == "." || name == "/" {
		name = "download"
	}
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	candidate := strings.TrimSuffix(name, ext) + " (" + strconv.Itoa(n) + ")" + ext
	return uniqueName(candidate, seen)
}
