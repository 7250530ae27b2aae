package trim

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Whitespace strips trailing spaces from every line, collapses runs of blank
// lines to one and drops leading and trailing blank lines.
var Whitespace Trimmer = Func(func(_, content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
})

var licenseMarker = regexp.MustCompile(`(?i)copyright|spdx-license-identifier|licensed under`)

// LicenseHeader drops a leading comment block mentioning a license. Prose
// files are left alone since their headings look like comments.
var LicenseHeader Trimmer = Func(func(p, content string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown", ".txt", ".rst":
		return content
	}
	lines := strings.Split(content, "\n")
	end := 0
	for end < len(lines) && isCommentLine(lines[end]) {
		end++
	}
	if end == 0 || !licenseMarker.MatchString(strings.Join(lines[:end], "\n")) {
		return content
	}
	return strings.TrimLeft(strings.Join(lines[end:], "\n"), "\n")
})

func isCommentLine(line string) bool {
	t := strings.TrimSpace(line)
	for _, prefix := range []string{"//", "#", "--", "/*", "*", ";"} {
		if strings.HasPrefix(t, prefix) && !strings.HasPrefix(t, "#!") {
			return true
		}
	}
	return false
}

// Eager is the normalization applied to every document before any budget check.
var Eager = Chain(LicenseHeader, Whitespace)

// Tail drops the last eighth of the lines (at least one). A single line is
// cut in half on a rune boundary. Non-empty content always shrinks.
func Tail(_, content string) string {
	if content == "" {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 1 {
		keep := len(lines) - max(1, len(lines)/8)
		return strings.Join(lines[:keep], "\n")
	}
	cut := len(content) / 2
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
