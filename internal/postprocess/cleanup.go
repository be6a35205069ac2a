package postprocess

import (
	"regexp"
	"strings"
)

var (
	// sectionHeaderRe matches standalone "Sources:" or "Related Links:"
	// headers the model sometimes appends despite instructions, including
	// emoji-prefixed and bold variants.
	sectionHeaderRe = regexp.MustCompile(`(?i)^:?\w*:?\s*\*{0,2}(?:related links?|sources?):?\*{0,2}\s*$`)

	// citationLineRe matches numbered inline citations like
	// "[1] #standup - alice: _we shipped it_".
	citationLineRe = regexp.MustCompile(`\[\d+\]\s+#[\w-]+\s+-\s+[^:]*:\s+_[^_]+_\n?`)

	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// CleanAnswer normalizes raw model output for Slack-style delivery. The
// transforms run in a fixed order: the confidence line goes first so the
// section stripper never sees it, and blank-line collapsing runs last to
// absorb gaps the earlier passes leave behind.
func CleanAnswer(answer string) string {
	answer = confidenceRe.ReplaceAllString(answer, "")
	answer = stripSections(answer)
	answer = citationLineRe.ReplaceAllString(answer, "")
	answer = emojiShortcodeRe.ReplaceAllString(answer, "")
	answer = boldRe.ReplaceAllString(answer, "*$1*")
	answer = blankLinesRe.ReplaceAllString(answer, "\n\n")
	return strings.TrimSpace(answer)
}

// stripSections removes a "Sources:"/"Related Links:" header and everything
// after it up to the next paragraph break. Works paragraph by paragraph since
// the engine's regexes cannot look ahead for the blank-line boundary.
func stripSections(answer string) string {
	paragraphs := strings.Split(answer, "\n\n")
	kept := paragraphs[:0]
	for _, para := range paragraphs {
		lines := strings.Split(para, "\n")
		cut := len(lines)
		for i, line := range lines {
			if sectionHeaderRe.MatchString(line) {
				cut = i
				break
			}
		}
		if cut == 0 {
			continue
		}
		kept = append(kept, strings.Join(lines[:cut], "\n"))
	}
	return strings.Join(kept, "\n\n")
}
