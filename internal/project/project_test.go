package project

import (
	"errors"
	"testing"

	rerrors "github.com/ratco/ratco/internal/errors"
	"github.com/ratco/ratco/internal/role"
)

func TestState_CloneIsDeep(t *testing.T) {
	s := NewState("Create a 2048 game.")
	s.SetArtifact(role.KindArchitect, "design v1")

	c := s.Clone()
	c.SetArtifact(role.KindArchitect, "design v2")
	c.RoundIndex = 3

	if got, _ := s.Artifact(role.KindArchitect); got != "design v1" {
		t.Errorf("original artifact = %q, want unchanged", got)
	}
	if s.RoundIndex != 0 {
		t.Errorf("original RoundIndex = %d", s.RoundIndex)
	}
}

func TestState_SetArtifactOnZeroValue(t *testing.T) {
	s := &State{}
	s.SetArtifact(role.KindEngineer, "code")
	s.SetArtifact(role.KindEngineer, "more code")
	if got, ok := s.Artifact(role.KindEngineer); !ok || got != "more code" {
		t.Errorf("Artifact() = %q, %v, want latest output", got, ok)
	}
}

func TestSettings_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		in      Settings
		want    Settings
		wantErr bool
	}{
		{
			name: "defaults untouched",
			in:   Settings{ProjectName: "game_2048"},
			want: Settings{ProjectName: "game_2048"},
		},
		{
			name: "project path implies incremental and name",
			in:   Settings{ProjectPath: "/work/old_game/"},
			want: Settings{ProjectPath: "/work/old_game/", ProjectName: "old_game", Incremental: true},
		},
		{
			name: "explicit name wins",
			in:   Settings{ProjectPath: "/work/old_game", ProjectName: "new_game"},
			want: Settings{ProjectPath: "/work/old_game", ProjectName: "new_game", Incremental: true},
		},
		{
			name:    "incremental without path",
			in:      Settings{Incremental: true},
			wantErr: true,
		},
		{
			name:    "summaries below unlimited",
			in:      Settings{MaxAutoSummarizeCode: -2},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Resolve()
			if tt.wantErr {
				if !errors.Is(err, rerrors.ErrInvalidInput) {
					t.Fatalf("error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSettings_SummariesAllowed(t *testing.T) {
	if !(Settings{MaxAutoSummarizeCode: -1}).SummariesAllowed(1000) {
		t.Error("-1 should be unlimited")
	}
	if (Settings{MaxAutoSummarizeCode: 0}).SummariesAllowed(0) {
		t.Error("0 should allow no summaries")
	}
	s := Settings{MaxAutoSummarizeCode: 2}
	if !s.SummariesAllowed(1) || s.SummariesAllowed(2) {
		t.Error("cap of 2 should allow exactly two summaries")
	}
}
