package storage

import (
	"path/filepath"
	"regexp"
	"strings"
)

// MaxPrefixLength caps the length of a sanitized artifact prefix.
const MaxPrefixLength = 80

// DefaultPrefix is used when a filename yields no usable stem.
const DefaultPrefix = "document"

var (
	disallowedRe  = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	underscoresRe = regexp.MustCompile(`_+`)
)

// SanitizePrefix derives a filesystem-safe artifact prefix from an uploaded
// filename, e.g. "User Guide v2.pdf" becomes "User_Guide_v2".
func SanitizePrefix(filename string) string {
	s := strings.TrimSpace(stem(filename))
	if s == "" || strings.HasPrefix(s, ".") {
		return DefaultPrefix
	}
	s = disallowedRe.ReplaceAllString(s, "_")
	s = strings.Trim(underscoresRe.ReplaceAllString(s, "_"), "_")
	if !hasAlnum(s) {
		return DefaultPrefix
	}
	if len(s) > MaxPrefixLength {
		s = s[:MaxPrefixLength]
	}
	return s
}

// stem strips the final extension from the base name. A leading dot does not
// start an extension and neither does a trailing one.
func stem(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	i := strings.LastIndexByte(name, '.')
	if i > 0 && i < len(name)-1 {
		return name[:i]
	}
	return name
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
