// Package models defines core data structures for questions, retrieved messages, and answers.
package models

// MessageMetadata carries the archive metadata attached to a retrieved message.
type MessageMetadata struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	// Timestamp is either a Slack-style ts ("1702652400.000100") or an
	// RFC 3339 string, depending on the ingest path.
	Timestamp string `json:"timestamp"`
}

// Candidate is a single retrieved message with its relevance distance.
// Lower distance means more similar. Candidates are read-only once produced
// by the retrieval adapter.
type Candidate struct {
	Text     string          `json:"text"`
	Distance float64         `json:"distance"`
	Metadata MessageMetadata `json:"metadata"`
}
