package postprocess

import (
	"regexp"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

var (
	githubRe = regexp.MustCompile(`(?i)https?://(?:www\.)?github\.com/[\w\-]+/[\w\-.]+`)
	docsRes  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://[\w\-]+\.(?:readthedocs\.io|github\.io)/[\w\-./]*`),
		regexp.MustCompile(`(?i)https?://docs?\.[\w\-]+\.[a-z]{2,}/[\w\-./]*`),
	}
)

// ExtractProjectLinks pulls GitHub repository and documentation URLs from the
// candidate message texts. URLs are deduplicated across the whole set, first
// occurrence wins, and the source channel is taken from the message the URL
// appeared in.
func ExtractProjectLinks(candidates []models.Candidate) []models.ProjectLink {
	var links []models.ProjectLink
	seen := make(map[string]bool)

	add := func(linkType, url, channel string) {
		url = strings.TrimRight(url, ".,!?)")
		if seen[url] {
			return
		}
		seen[url] = true
		if channel == "" {
			channel = "unknown"
		}
		links = append(links, models.ProjectLink{
			Type:          linkType,
			URL:           url,
			SourceChannel: channel,
		})
	}

	for _, cand := range candidates {
		for _, url := range githubRe.FindAllString(cand.Text, -1) {
			add(models.LinkTypeGitHub, url, cand.Metadata.ChannelName)
		}
		for _, re := range docsRes {
			for _, url := range re.FindAllString(cand.Text, -1) {
				add(models.LinkTypeDocumentation, url, cand.Metadata.ChannelName)
			}
		}
	}
	return links
}
