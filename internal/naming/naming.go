// Package naming derives canonical, filesystem-safe names for uploaded
// music files from competition, grade and user attributes.
package naming

import (
	"strconv"
	"strings"
)

// BaseName returns the canonical extension-less name for an upload:
// {year}-{competition}-{category}-{segment}-{user}, lower-cased, with every
// character outside [a-z0-9-] replaced by a dash. This is the value stored
// as an artifact's DisplayName; the file extension is re-attached at
// download time from the original upload name.
//
// No length cap is applied: very long competition or category names
// propagate directly into the output.
func BaseName(year int, competitionName, gradeCategory, gradeSegment, fullUserName string) string {
	parts := []string{
		strconv.Itoa(year),
		competitionName,
		gradeCategory,
		gradeSegment,
		FormatUser(fullUserName),
	}
	return sanitize(strings.Join(parts, "-"))
}

// Compose returns BaseName with the given extension (no leading dot)
// attached, sanitized the same way.
func Compose(year int, competitionName, gradeCategory, gradeSegment, fullUserName, fileExtension string) string {
	return BaseName(year, competitionName, gradeCategory, gradeSegment, fullUserName) +
		"." + sanitize(strings.TrimPrefix(fileExtension, "."))
}

// FormatUser shortens a full name to "first-l": the first name token plus
// the initial of the last token. Single-token names pass through unchanged,
// and an empty name yields an empty string; sanitization happens in the
// caller's global pass.
func FormatUser(fullUserName string) string {
	tokens := strings.Fields(fullUserName)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) == 1 {
		return fullUserName
	}
	last := []rune(tokens[len(tokens)-1])
	return strings.ToLower(tokens[0] + "-" + string(last[0]))
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			return r
		}
		return '-'
	}, s)
}
