package postprocess

import (
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestExtractProjectLinks(t *testing.T) {
	candidates := []models.Candidate{
		{
			Text:     "repo is at https://github.com/acme/widget, check it out",
			Metadata: models.MessageMetadata{ChannelName: "dev"},
		},
		{
			Text:     "docs live at https://widget.readthedocs.io/en/latest/",
			Metadata: models.MessageMetadata{ChannelName: "support"},
		},
		{
			Text:     "api reference: https://docs.acme.com/api/v2",
			Metadata: models.MessageMetadata{ChannelName: "dev"},
		},
	}

	links := ExtractProjectLinks(candidates)
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d: %+v", len(links), links)
	}
	if links[0].Type != models.LinkTypeGitHub || links[0].URL != "https://github.com/acme/widget" {
		t.Errorf("github link: %+v", links[0])
	}
	if links[0].SourceChannel != "dev" {
		t.Errorf("source channel: %+v", links[0])
	}
	if links[1].Type != models.LinkTypeDocumentation {
		t.Errorf("docs link: %+v", links[1])
	}
}

func TestExtractProjectLinksDedup(t *testing.T) {
	candidates := []models.Candidate{
		{Text: "see https://github.com/acme/widget", Metadata: models.MessageMetadata{ChannelName: "dev"}},
		{Text: "again https://github.com/acme/widget!", Metadata: models.MessageMetadata{ChannelName: "random"}},
	}
	links := ExtractProjectLinks(candidates)
	if len(links) != 1 {
		t.Fatalf("expected deduped single link, got %d", len(links))
	}
	if links[0].SourceChannel != "dev" {
		t.Errorf("first occurrence should win: %+v", links[0])
	}
}

func TestExtractProjectLinksTrimsPunctuation(t *testing.T) {
	links := ExtractProjectLinks([]models.Candidate{
		{Text: "ship it from https://github.com/acme/widget. then tag a release", Metadata: models.MessageMetadata{ChannelName: "dev"}},
	})
	if len(links) != 1 || links[0].URL != "https://github.com/acme/widget" {
		t.Errorf("trailing punctuation not trimmed: %+v", links)
	}
}

func TestExtractProjectLinksNone(t *testing.T) {
	links := ExtractProjectLinks([]models.Candidate{
		{Text: "no links here, just chatter"},
	})
	if len(links) != 0 {
		t.Errorf("expected no links, got %+v", links)
	}
}
