package domain

import (
	"path"
	"strings"
)

// NormalizePath trims the path, defaults it to DefaultFilePath, roots it at
// "/" and cleans it. "main.js", "/main.js" and "./main.js" all map to "/main.js".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultFilePath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// NormalizeLanguage trims and lowercases a language tag, defaulting to DefaultLanguage.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}
