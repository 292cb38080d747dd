package extract

import (
	"testing"

	"github.com/scrypster/penchant/pkg/types"
)

func TestPatternCandidates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple like",
			text: "I really love window seats when I fly.",
			want: []string{"window seats when I fly"},
		},
		{
			name: "dislike",
			text: "I can't stand horror movies.",
			want: []string{"horror movies"},
		},
		{
			name: "habit",
			text: "I usually read fiction before bed.",
			want: []string{"read fiction before bed"},
		},
		{
			name: "favorite",
			text: "My favorite cuisine is Thai food.",
			want: []string{"Thai food"},
		},
		{
			name: "multiple statements",
			text: "I love hiking. I hate getting up early.",
			want: []string{"hiking", "getting up early"},
		},
		{
			name: "no preference",
			text: "What time is it?",
			want: nil,
		},
		{
			name: "too short a match is dropped",
			text: "I like it.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn := types.Turn{ID: "t1", Speaker: types.SpeakerUser, Text: tt.text}
			got := PatternCandidates(turn)

			if len(got) != len(tt.want) {
				t.Fatalf("expected %d candidates %v, got %d: %+v", len(tt.want), tt.want, len(got), got)
			}
			for i, want := range tt.want {
				if got[i].Text != want {
					t.Errorf("candidate %d: expected %q, got %q", i, want, got[i].Text)
				}
				if got[i].Confidence != patternConfidence {
					t.Errorf("candidate %d: expected confidence %f, got %f", i, patternConfidence, got[i].Confidence)
				}
			}
		})
	}
}

func TestPatternCandidatesDeduplicate(t *testing.T) {
	turn := types.Turn{ID: "t1", Text: "I love early mornings. I really love early mornings!"}
	got := PatternCandidates(turn)
	if len(got) != 1 {
		t.Fatalf("expected duplicate captures collapsed to 1, got %d: %+v", len(got), got)
	}
}
