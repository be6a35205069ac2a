package intent

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

type fakeDirectory struct {
	channels map[string]string
	users    map[string]models.User
	err      error
	calls    int
}

func (f *fakeDirectory) ChannelName(_ context.Context, _, channelID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.channels[channelID], nil
}

func (f *fakeDirectory) Users(_ context.Context, _ string, ids []string) ([]models.User, error) {
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

func TestDetectTimeFilter(t *testing.T) {
	tests := []struct {
		question string
		want     int // -1 means nil
	}{
		{"What hackathon projects are people working on?", -1},
		{"what happened today?", 1},
		{"what happened yesterday in standup", 2},
		{"summarize this week", 7},
		{"what did we ship last week", 14},
		{"anything from this month", 30},
		{"what shipped last month", 60},
		{"any recent updates?", 7},
		{"what has been discussed recently", 7},
		{"show me the latest on the migration", 7},
		{"TODAY is the deadline", 1}, // case-insensitive
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := DetectTimeFilter(tt.question)
			if tt.want == -1 {
				if got != nil {
					t.Errorf("got %d, want nil", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("got %v, want %d", got, tt.want)
			}
		})
	}
}

func TestDetect_NoFilters(t *testing.T) {
	d := NewDetector(nil, zap.NewNop())
	f := d.Detect(context.Background(), "W1", "What hackathon projects are people working on?")
	if f.DaysBack != nil {
		t.Errorf("DaysBack = %d, want nil", *f.DaysBack)
	}
	if f.Channel != "" {
		t.Errorf("Channel = %q, want empty", f.Channel)
	}
}

func TestDetect_MentionWithInlineName(t *testing.T) {
	dir := &fakeDirectory{channels: map[string]string{"C100": "general"}}
	d := NewDetector(dir, zap.NewNop())

	f := d.Detect(context.Background(), "W1", "what happened in <#C100|general> yesterday")
	if f.DaysBack == nil || *f.DaysBack != 2 {
		t.Errorf("DaysBack = %v, want 2", f.DaysBack)
	}
	if f.Channel != "general" {
		t.Errorf("Channel = %q, want general", f.Channel)
	}
	if dir.calls != 0 {
		t.Errorf("inline name should not trigger a lookup, got %d calls", dir.calls)
	}
}

func TestDetect_MentionResolution(t *testing.T) {
	tests := []struct {
		name string
		dir  *fakeDirectory
		want string
	}{
		{"lookup hit", &fakeDirectory{channels: map[string]string{"C200": "standup"}}, "standup"},
		{"lookup miss falls back to id", &fakeDirectory{channels: map[string]string{}}, "C200"},
		{"lookup error falls back to id", &fakeDirectory{err: errors.New("db closed")}, "C200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(tt.dir, zap.NewNop())
			f := d.Detect(context.Background(), "W1", "anything new in <#C200>?")
			if f.Channel != tt.want {
				t.Errorf("Channel = %q, want %q", f.Channel, tt.want)
			}
		})
	}
}

func TestDetect_ChannelKeywords(t *testing.T) {
	d := NewDetector(nil, zap.NewNop())
	tests := []struct {
		question string
		want     string
	}{
		{"what is going on in #general", "general"},
		{"summarize the standup channel", "standup"},
		{"what happened in engineering", "engineering"},
		{"who broke prod", ""},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			f := d.Detect(context.Background(), "W1", tt.question)
			if f.Channel != tt.want {
				t.Errorf("Channel = %q, want %q", f.Channel, tt.want)
			}
		})
	}
}
