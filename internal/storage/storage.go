// Package storage persists equipment pictures on local disk or in an S3
// compatible bucket.
package storage

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path"
	"strings"
	"time"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrForeignRef      = errors.New("reference does not belong to this store")
)

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
}

// Extension validates that filename and contentType both name one of the
// allowed image types and returns the normalized extension.
func Extension(filename, contentType string, allowed []string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" || !contains(allowed, ext) {
		return "", ErrUnsupportedType
	}
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if want, ok := contentTypes[ext]; !ok || mime != want {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

// ObjectName builds "equipment-<unix ms>-<random>.<ext>".
func ObjectName(ext string) string {
	return fmt.Sprintf("equipment-%d-%d.%s", time.Now().UnixMilli(), rand.Int64N(1_000_000_000), ext)
}

func ContentType(ext string) string {
	return contentTypes[strings.ToLower(ext)]
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}
