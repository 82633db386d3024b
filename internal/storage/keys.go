package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// GenerateKey returns "<prefix>/<uuid>.<ext>" where ext is taken from filename.
// The base name of filename is discarded. A filename without an extension
// yields "<prefix>/<uuid>" with no trailing dot.
func GenerateKey(prefix, filename string) string {
	key := prefix + "/" + uuid.NewString()
	if ext := extension(filename); ext != "" {
		key += "." + ext
	}
	return key
}

// extension returns the extension of filename without the dot. Leading dots
// belong to the name, so ".env" has no extension.
func extension(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	trimmed := strings.TrimLeft(base, ".")
	return strings.TrimPrefix(path.Ext(trimmed), ".")
}
