package models

import "testing"

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"org":         RoleOrg,
		"student_org": RoleOrg,
		"brand":       RoleBrand,
		" Brand ":     RoleBrand,
		"admin":       RoleAdmin,
		"":            RoleOrg,
		"root":        RoleOrg,
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Errorf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEventStatusTransitions(t *testing.T) {
	if !EventDraft.CanTransition(EventPublished) || !EventDraft.CanTransition(EventClosed) {
		t.Fatal("draft should move to published or closed")
	}
	if !EventPublished.CanTransition(EventClosed) {
		t.Fatal("published should close")
	}
	if EventPublished.CanTransition(EventDraft) || EventClosed.CanTransition(EventPublished) {
		t.Fatal("unexpected backwards transition")
	}
}

func TestCleanTags(t *testing.T) {
	got := CleanTags([]string{" Tech ", "", "tech", "Music", "  "})
	if len(got) != 2 || got[0] != "Tech" || got[1] != "Music" {
		t.Fatalf("CleanTags = %q", got)
	}
	if CleanTags(nil) == nil {
		t.Fatal("CleanTags(nil) should be an empty slice")
	}
}
