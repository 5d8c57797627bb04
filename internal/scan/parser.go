package scan

import (
	"regexp"
	"strings"
	"unicode"
)

// Parsed is the structured result of a scanned ID payload. Fields are
// empty when no confident match is found.
type Parsed struct {
	Name   string `json:"name"`
	Course string `json:"course"`
}

var (
	allDigitsRe   = regexp.MustCompile(`^\d{4,}$`)
	numericDashRe = regexp.MustCompile(`^\d+[-/]`)
)

// IsLikelyID reports whether a token looks like a student/serial ID.
// The thresholds are tuned against real scanner payload shapes and are
// a frozen contract.
func IsLikelyID(v string) bool {
	if allDigitsRe.MatchString(v) {
		return true
	}
	if numericDashRe.MatchString(v) {
		return true
	}

	digits, letters := 0, 0
	for _, r := range v {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		}
	}

	if strings.Contains(v, "-") && digits >= 4 && len(v) >= 8 {
		return true
	}
	if digits >= letters && digits >= 6 {
		return true
	}
	return false
}

// IsCourseLike reports whether a token looks like a course code: pure
// letters, short, and not mistakable for an ID.
func IsCourseLike(v string) bool {
	if len(v) == 0 || len(v) > 12 {
		return false
	}

	letters := 0
	for _, r := range v {
		if unicode.IsDigit(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 1 && !IsLikelyID(v)
}

// Parse extracts {name, course} from a raw scanned string. Structured
// tab-delimited payloads are preferred; otherwise positional heuristics
// over whitespace tokens apply.
func Parse(raw string) Parsed {
	cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(raw)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return Parsed{}
	}

	if p, ok := parseTabbed(cleaned); ok {
		return p
	}
	return parseTokens(strings.Fields(cleaned))
}

// parseTabbed handles multi-field payloads like "NAME\tCOURSE\tID".
func parseTabbed(s string) (Parsed, bool) {
	var parts []string
	for _, p := range strings.Split(s, "\t") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return Parsed{}, false
	}

	p := Parsed{Name: parts[0]}
	for _, part := range parts[1:] {
		if IsCourseLike(part) {
			p.Course = part
			return p, true
		}
	}
	for _, part := range parts[1:] {
		if !containsDigit(part) {
			p.Course = part
			return p, true
		}
	}
	return p, true
}

// parseTokens applies the positional heuristic to whitespace tokens.
func parseTokens(tokens []string) Parsed {
	n := len(tokens)
	if n >= 2 {
		// Trailing ID fields terminate the name and never yield a course.
		if IsLikelyID(tokens[n-1]) {
			end := n - 1
			for end > 1 && IsLikelyID(tokens[end-1]) {
				end--
			}
			return Parsed{Name: strings.Join(tokens[:end], " ")}
		}

		for i := n - 1; i >= 1; i-- {
			if IsCourseLike(tokens[i]) {
				return Parsed{Name: strings.Join(tokens[:i], " "), Course: tokens[i]}
			}
		}

		last := tokens[n-1]
		if !containsDigit(last) && !IsLikelyID(last) {
			return Parsed{Name: strings.Join(tokens[:n-1], " "), Course: last}
		}
	}

	return Parsed{Name: strings.Join(tokens, " ")}
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
