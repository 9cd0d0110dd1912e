// Package util holds small helpers shared by the HTTP handlers.
package util

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"resume-intake/internal/shared/errs"
)

const maxFileNameBytes = 255

// SanitizeFileName reduces an uploaded file name to its base name. Traversal patterns are
// rejected; control characters are dropped and long names are cut at a rune boundary while
// keeping the extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errs.Invalid("filename", "must not contain ..")
	}
	s := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	s = path.Base(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == "/" {
		return "", errs.Invalid("filename", "is required")
	}
	return truncateName(s, maxFileNameBytes), nil
}

func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := path.Ext(name)
	if len(ext) >= limit/2 {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	budget := limit - len(ext)
	for budget > 0 && !utf8.RuneStart(stem[budget]) {
		budget--
	}
	return stem[:budget] + ext
}
