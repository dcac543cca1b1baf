package changes

import (
	"errors"
	"testing"
)

func TestCommitMessage_Render(t *testing.T) {
	tests := []struct {
		name string
		msg  CommitMessage
		want string
	}{
		{
			name: "type only",
			msg:  NewCommitMessage(CommitTypeDocs, "update documentation"),
			want: "docs: update documentation",
		},
		{
			name: "with scope",
			msg:  NewCommitMessage(CommitTypeTest, "add or update tests", WithScope("auth")),
			want: "test(auth): add or update tests",
		},
		{
			name: "breaking with reason",
			msg:  NewCommitMessage(CommitTypeFeat, "drop v1 endpoints", WithScope("api"), WithBreaking("v1 clients must migrate")),
			want: "feat(api)!: drop v1 endpoints\n\nBREAKING CHANGE: v1 clients must migrate",
		},
		{
			name: "breaking without reason reuses description",
			msg:  NewCommitMessage(CommitTypeRefactor, "rename config keys", WithBreaking("")),
			want: "refactor!: rename config keys\n\nBREAKING CHANGE: rename config keys",
		},
		{
			name: "body and footer",
			msg:  NewCommitMessage(CommitTypeFix, "resolve issues", WithBody("- a.go (+1/-1)\n"), WithBreaking("x")),
			want: "fix!: resolve issues\n\n- a.go (+1/-1)\n\nBREAKING CHANGE: x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.msg.Render()
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
			if again := tt.msg.Render(); again != got {
				t.Errorf("Render() not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestParseCommitMessage(t *testing.T) {
	msg, err := ParseCommitMessage("# Please enter the commit message\nfeat(cli)!: add watch mode\n\nRegenerates on index changes.\n\nBREAKING CHANGE: --follow was removed\n")
	if err != nil {
		t.Fatalf("ParseCommitMessage() error = %v", err)
	}
	if msg.Type() != CommitTypeFeat || msg.Scope() != "cli" || msg.Description() != "add watch mode" {
		t.Errorf("unexpected header fields: %q", msg.Header())
	}
	if !msg.IsBreaking() || msg.BreakingReason() != "--follow was removed" {
		t.Errorf("breaking = %v reason = %q", msg.IsBreaking(), msg.BreakingReason())
	}
	if msg.Body() != "Regenerates on index changes." {
		t.Errorf("Body() = %q", msg.Body())
	}
	if msg.ReleaseType() != ReleaseTypeMajor {
		t.Errorf("ReleaseType() = %v", msg.ReleaseType())
	}
}

func TestParseCommitMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"empty", "\n\n", ErrInvalidCommitMessage},
		{"no prefix", "Update the readme", ErrInvalidCommitMessage},
		{"unknown type", "feature: add thing", ErrInvalidCommitType},
		{"revert is not produced", "revert: undo", ErrInvalidCommitType},
		{"empty description", "fix(core): ", ErrEmptyDescription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommitMessage(tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseCommitMessage(%q) error = %v, want %v", tt.text, err, tt.wantErr)
			}
		})
	}
}

func TestParseCommitMessage_RoundTrip(t *testing.T) {
	original := NewCommitMessage(CommitTypePerf, "cache parsed diffs", WithScope("pipeline"), WithBody("- a.go (+3/-0)"), WithBreaking("cache dir moved"))
	parsed, err := ParseCommitMessage(original.Render())
	if err != nil {
		t.Fatalf("ParseCommitMessage() error = %v", err)
	}
	if parsed.Render() != original.Render() {
		t.Errorf("round trip mismatch:\n%s\n---\n%s", parsed.Render(), original.Render())
	}
}

func TestCommitType_OrChore(t *testing.T) {
	if CommitType("feature").OrChore() != CommitTypeChore {
		t.Error("invalid type should map to chore")
	}
	if CommitTypeCI.OrChore() != CommitTypeCI {
		t.Error("valid type should be kept")
	}
	if len(AllCommitTypes()) != 10 {
		t.Errorf("AllCommitTypes() has %d entries, want 10", len(AllCommitTypes()))
	}
	for _, ct := range AllCommitTypes() {
		parsed, ok := ParseCommitType(" " + string(ct) + " ")
		if !ok || parsed != ct {
			t.Errorf("ParseCommitType(%q) = %q, %v", ct, parsed, ok)
		}
	}
}

func TestNextVersion(t *testing.T) {
	tests := []struct {
		current string
		release ReleaseType
		want    string
	}{
		{"1.2.3", ReleaseTypeMajor, "2.0.0"},
		{"v1.2.3", ReleaseTypeMinor, "v1.3.0"},
		{"v0.9.9", ReleaseTypePatch, "v0.9.10"},
		{"2.0.0", ReleaseTypeNone, "2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.current+"/"+tt.release.String(), func(t *testing.T) {
			got, err := NextVersion(tt.current, tt.release)
			if err != nil {
				t.Fatalf("NextVersion() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NextVersion() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := NextVersion("not-a-version", ReleaseTypePatch); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("expected ErrInvalidVersion, got %v", err)
	}
}

func TestReleaseTypeFromCommitType(t *testing.T) {
	tests := []struct {
		ct       CommitType
		breaking bool
		want     ReleaseType
	}{
		{CommitTypeFeat, false, ReleaseTypeMinor},
		{CommitTypeFix, false, ReleaseTypePatch},
		{CommitTypePerf, false, ReleaseTypePatch},
		{CommitTypeDocs, false, ReleaseTypeNone},
		{CommitTypeChore, true, ReleaseTypeMajor},
	}
	for _, tt := range tests {
		if got := ReleaseTypeFromCommitType(tt.ct, tt.breaking); got != tt.want {
			t.Errorf("ReleaseTypeFromCommitType(%s, %v) = %s, want %s", tt.ct, tt.breaking, got, tt.want)
		}
	}
}
