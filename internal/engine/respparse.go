package engine

import (
	"regexp"
	"strings"
)

var (
	suggestion1Re = regexp.MustCompile(`(?i)Suggestion\s*1[:\s]+([^\n]+)`)
	suggestion2Re = regexp.MustCompile(`(?i)Suggestion\s*2[:\s]+([^\n]+)`)
	suggestion3Re = regexp.MustCompile(`(?i)Suggestion\s*3[:\s]+([^\n]+)`)
	rationaleRe   = regexp.MustCompile(`(?is)Rationale[:\s]+(.+)`)
)

// Suggestions is the structured content of one model reply.
type Suggestions struct {
	First     string
	Second    string
	Third     string
	Rationale string
}

// ParseReply extracts the labeled suggestion lines and rationale from the
// reply. Labels are matched case-insensitively; a missing label yields an
// empty field, never an error. The rationale spans everything after its
// label, including newlines.
func ParseReply(text string) Suggestions {
	extract := func(re *regexp.Regexp) string {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}
	return Suggestions{
		First:     extract(suggestion1Re),
		Second:    extract(suggestion2Re),
		Third:     extract(suggestion3Re),
		Rationale: extract(rationaleRe),
	}
}

// IsNone reports whether a suggestion slot was explicitly left empty.
func IsNone(suggestion string) bool {
	return strings.EqualFold(strings.TrimSpace(suggestion), "none")
}
