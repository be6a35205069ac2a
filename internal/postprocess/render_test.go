package postprocess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

type fakeDirectory struct {
	users   map[string]models.User
	err     error
	lookups int
}

func (f *fakeDirectory) ChannelName(ctx context.Context, workspaceID, channelID string) (string, error) {
	return "", nil
}

func (f *fakeDirectory) Users(ctx context.Context, workspaceID string, ids []string) ([]models.User, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestFriendlyTimestamp(t *testing.T) {
	if got := FriendlyTimestamp("2025-12-15T14:30:00"); got != "Dec 15, 2pm" {
		t.Errorf("iso: got %q", got)
	}
	if got := FriendlyTimestamp("2025-12-15T00:10:00"); got != "Dec 15, 12am" {
		t.Errorf("midnight: got %q", got)
	}
	if got := FriendlyTimestamp("2025-12-15T12:10:00"); got != "Dec 15, 12pm" {
		t.Errorf("noon: got %q", got)
	}
	if got := FriendlyTimestamp("2025-06-01T09:00:00"); got != "Jun 1, 9am" {
		t.Errorf("morning: got %q", got)
	}
	if got := FriendlyTimestamp("not a timestamp"); got != "recently" {
		t.Errorf("garbage: got %q", got)
	}
	if got := FriendlyTimestamp(""); got != "recently" {
		t.Errorf("empty: got %q", got)
	}

	// Slack timestamps render in local time.
	ts := time.Date(2025, time.December, 15, 14, 0, 0, 0, time.Local)
	slack := fmt.Sprintf("%d.000100", ts.Unix())
	if got := FriendlyTimestamp(slack); got != "Dec 15, 2pm" {
		t.Errorf("slack ts: got %q", got)
	}
}

func TestAppendEvidence(t *testing.T) {
	candidates := []models.Candidate{
		{Text: "shipped the fix", Metadata: models.MessageMetadata{ChannelName: "dev", UserName: "alice"}},
		{Text: "reviewing now", Metadata: models.MessageMetadata{ChannelName: "dev", UserName: "bob"}},
	}
	got := AppendEvidence("Answer.", candidates)

	if !strings.Contains(got, "What I found:") {
		t.Fatalf("missing evidence header: %q", got)
	}
	if !strings.Contains(got, `• alice's update in #dev (recently): "shipped the fix"`) {
		t.Errorf("evidence entry malformed: %q", got)
	}
	if strings.Contains(got, "more") {
		t.Errorf("no overflow indicator expected: %q", got)
	}
}

func TestAppendEvidenceOverflow(t *testing.T) {
	var candidates []models.Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, models.Candidate{
			Text:     fmt.Sprintf("message %d", i),
			Metadata: models.MessageMetadata{ChannelName: "dev", UserName: "alice"},
		})
	}
	got := AppendEvidence("Answer.", candidates)

	if strings.Count(got, "•") != 3 {
		t.Errorf("expected 3 evidence entries, got %d", strings.Count(got, "•"))
	}
	if !strings.Contains(got, "...and 2 more") {
		t.Errorf("missing overflow indicator: %q", got)
	}
}

func TestAppendEvidenceTruncatesQuotes(t *testing.T) {
	long := strings.Repeat("x", 400)
	got := AppendEvidence("Answer.", []models.Candidate{
		{Text: long, Metadata: models.MessageMetadata{ChannelName: "dev", UserName: "alice"}},
	})
	if !strings.Contains(got, strings.Repeat("x", 147)+`..."`) {
		t.Errorf("quote not truncated to 147 chars: %q", got)
	}
}

func TestAppendEvidenceQuoteBoundary(t *testing.T) {
	// Texts at or under 150 chars render whole; only longer ones are cut.
	meta := models.MessageMetadata{ChannelName: "dev", UserName: "alice"}

	exact := strings.Repeat("a", 150)
	got := AppendEvidence("Answer.", []models.Candidate{{Text: exact, Metadata: meta}})
	if !strings.Contains(got, `"`+exact+`"`) {
		t.Errorf("150-char quote should render whole: %q", got)
	}
	if strings.Contains(got, "...") {
		t.Errorf("150-char quote should not be truncated: %q", got)
	}

	over := strings.Repeat("b", 151)
	got = AppendEvidence("Answer.", []models.Candidate{{Text: over, Metadata: meta}})
	if !strings.Contains(got, `"`+strings.Repeat("b", 147)+`..."`) {
		t.Errorf("151-char quote should cut at 147: %q", got)
	}
}

func TestAppendEvidenceEmpty(t *testing.T) {
	if got := AppendEvidence("Answer.", nil); got != "Answer." {
		t.Errorf("got %q", got)
	}
}

func TestBuildSources(t *testing.T) {
	dir := &fakeDirectory{users: map[string]models.User{
		"U2": {ID: "U2", DisplayName: "bobby"},
	}}
	candidates := []models.Candidate{
		{Text: "first", Distance: 0.1, Metadata: models.MessageMetadata{ChannelName: "dev", UserName: "alice", Timestamp: "123"}},
		{Text: "second", Distance: 0.2, Metadata: models.MessageMetadata{ChannelName: "dev", UserID: "U2"}},
		{Text: "third", Distance: 0.3, Metadata: models.MessageMetadata{}},
	}

	sources := BuildSources(context.Background(), dir, zap.NewNop(), "W1", candidates)
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if sources[0].ReferenceNumber != 1 || sources[0].User != "alice" {
		t.Errorf("first source: %+v", sources[0])
	}
	if sources[1].User != "bobby" {
		t.Errorf("lookup user: %+v", sources[1])
	}
	if sources[2].User != "unknown" || sources[2].Channel != "unknown" {
		t.Errorf("fallbacks: %+v", sources[2])
	}
	if dir.lookups != 1 {
		t.Errorf("expected one batched lookup, got %d", dir.lookups)
	}
}

func TestBuildSourcesCapAndTruncate(t *testing.T) {
	var candidates []models.Candidate
	for i := 0; i < 12; i++ {
		candidates = append(candidates, models.Candidate{
			Text:     strings.Repeat("y", 300),
			Metadata: models.MessageMetadata{ChannelName: "dev", UserName: "alice"},
		})
	}
	sources := BuildSources(context.Background(), &fakeDirectory{}, zap.NewNop(), "W1", candidates)
	if len(sources) != 10 {
		t.Fatalf("expected cap at 10 sources, got %d", len(sources))
	}
	if len(sources[0].Text) != 203 || !strings.HasSuffix(sources[0].Text, "...") {
		t.Errorf("source text not truncated to 200 chars: len=%d", len(sources[0].Text))
	}
}

func TestBuildSourcesLookupError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("db closed")}
	sources := BuildSources(context.Background(), dir, zap.NewNop(), "W1", []models.Candidate{
		{Text: "msg", Metadata: models.MessageMetadata{UserID: "U1"}},
	})
	if len(sources) != 1 || sources[0].User != "unknown" {
		t.Errorf("lookup error should degrade to unknown: %+v", sources)
	}
}
