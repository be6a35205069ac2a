package postprocess

import (
	"regexp"
	"strconv"
	"strings"
)

// confidenceRe matches the trailing self-assessment line the model is asked
// to emit, tolerating emoji shortcodes and bold markers around it.
var confidenceRe = regexp.MustCompile(`(?im):?\w*:?[ \t]*\*{0,2}confidence:\s*(\d+)%\s*\*{0,2}\s*[-–]\s*(.+)`)

var emojiShortcodeRe = regexp.MustCompile(`:\w+:`)

// ExtractConfidence pulls "Confidence: N% - explanation" out of a generated
// answer. When the model skipped the line, the answer wording itself is
// scored instead.
func ExtractConfidence(answer string) (int, string) {
	if m := confidenceRe.FindStringSubmatch(answer); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			if n > 100 {
				n = 100
			}
			explanation := strings.TrimSpace(emojiShortcodeRe.ReplaceAllString(m[2], ""))
			return n, explanation
		}
	}
	return AssessConfidence(answer)
}

// AssessConfidence estimates confidence from hedging language when no
// explicit confidence line is present. Buckets are checked most-negative
// first.
func AssessConfidence(answer string) (int, string) {
	lower := strings.ToLower(answer)

	if containsAny(lower, "couldn't find", "don't have", "no information") {
		return 10, "No relevant information found"
	}
	if containsAny(lower, "not sure", "unclear", "uncertain") {
		return 30, "Limited or unclear information"
	}
	if containsAny(lower, "might", "possibly", "seems") {
		return 55, "Some relevant information but not definitive"
	}
	return 65, "Relevant information found"
}

func containsAny(s string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
