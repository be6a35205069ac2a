package postprocess

import (
	"strings"
	"testing"
)

func TestCleanAnswerStripsConfidenceLine(t *testing.T) {
	in := "The deploy is done.\nConfidence: 85% - multiple confirmations"
	got := CleanAnswer(in)
	if got != "The deploy is done." {
		t.Errorf("got %q", got)
	}
}

func TestCleanAnswerStripsSections(t *testing.T) {
	in := "The deploy is done.\n\nSources:\n[1] #dev - alice\n[2] #dev - bob\n\nMore prose after."
	got := CleanAnswer(in)
	if strings.Contains(got, "Sources:") || strings.Contains(got, "[1]") {
		t.Errorf("sources section survived: %q", got)
	}
	if !strings.Contains(got, "More prose after.") {
		t.Errorf("text after the section should survive: %q", got)
	}

	in = "Answer.\n\n:link: **Related Links:**\nhttps://example.com"
	got = CleanAnswer(in)
	if strings.Contains(got, "Related Links") || strings.Contains(got, "example.com") {
		t.Errorf("related links section survived: %q", got)
	}
}

func TestCleanAnswerStripsCitationLines(t *testing.T) {
	in := "The fix shipped.\n[1] #standup - alice: _we shipped the fix_\nAll good now."
	got := CleanAnswer(in)
	if strings.Contains(got, "[1]") {
		t.Errorf("citation line survived: %q", got)
	}
	if !strings.Contains(got, "All good now.") {
		t.Errorf("surrounding text lost: %q", got)
	}
}

func TestCleanAnswerEmojiAndBold(t *testing.T) {
	in := "Great news :tada: the **release** is out! :rocket:"
	got := CleanAnswer(in)
	if strings.Contains(got, ":tada:") || strings.Contains(got, ":rocket:") {
		t.Errorf("emoji shortcodes survived: %q", got)
	}
	if !strings.Contains(got, "*release*") || strings.Contains(got, "**") {
		t.Errorf("bold not converted: %q", got)
	}
}

func TestCleanAnswerCollapsesBlankLines(t *testing.T) {
	in := "First.\n\n\n\nSecond."
	if got := CleanAnswer(in); got != "First.\n\nSecond." {
		t.Errorf("got %q", got)
	}
}

func TestCleanAnswerFullPipeline(t *testing.T) {
	in := "Hey! The **migration** finished :white_check_mark:\n\n" +
		"Sources:\n[1] #dev - alice: _done_\n\n" +
		"Confidence: 90% - direct confirmation"
	got := CleanAnswer(in)
	want := "Hey! The *migration* finished"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
