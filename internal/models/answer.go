package models

// Link types recognized by the post-processor.
const (
	LinkTypeGitHub        = "github"
	LinkTypeDocumentation = "documentation"
)

// Source is one cited message in an answer response.
type Source struct {
	ReferenceNumber int     `json:"reference_number"`
	Text            string  `json:"text"`
	Channel         string  `json:"channel"`
	User            string  `json:"user"`
	Timestamp       string  `json:"timestamp"`
	Distance        float64 `json:"distance"`
}

// ProjectLink is a GitHub or documentation URL extracted from retrieved
// messages, tagged with the channel it was posted in.
type ProjectLink struct {
	Type          string `json:"type"`
	URL           string `json:"url"`
	SourceChannel string `json:"source_channel"`
}

// AnswerResponse is the final artifact returned for one question.
// Confidence is always in [0, 100] and ConfidenceExplanation is never empty.
type AnswerResponse struct {
	Answer                string        `json:"answer"`
	Sources               []Source      `json:"sources"`
	Confidence            int           `json:"confidence"`
	ConfidenceExplanation string        `json:"confidence_explanation"`
	ProjectLinks          []ProjectLink `json:"project_links"`
	ContextUsed           int           `json:"context_used"`
	Model                 string        `json:"model,omitempty"`
}
