package models

import (
	"testing"
	"time"
)

func TestPrivateChatID(t *testing.T) {
	a := PrivateChatID("alice", "bob")
	b := PrivateChatID("bob", "alice")
	if a != b {
		t.Errorf("id must not depend on argument order: %q vs %q", a, b)
	}
	if a != "private:alice:bob" {
		t.Errorf("unexpected id %q", a)
	}
}

func TestChatParticipantHelpers(t *testing.T) {
	c := &Chat{
		Participants: []ChatParticipant{
			{UserID: "alice", UserName: "alice", IsActive: true},
			{UserID: "bob", UserName: "bob", IsActive: true},
		},
	}

	if !c.HasParticipant("alice") || c.HasParticipant("carol") {
		t.Error("HasParticipant gave wrong membership")
	}
	if other := c.OtherParticipant("alice"); other == nil || other.UserID != "bob" {
		t.Errorf("OtherParticipant = %+v", other)
	}

	c.Participants[1].IsActive = false
	if c.HasParticipant("bob") {
		t.Error("inactive member must not count as participant")
	}
}

func TestMessageHelpers(t *testing.T) {
	m := &Message{
		ReadBy:    []ReadReceipt{{UserID: "bob", ReadAt: time.Now()}},
		Reactions: []Reaction{{UserID: "bob", Emoji: "👍"}},
	}

	if !m.ReadBySet("bob") || m.ReadBySet("alice") {
		t.Error("ReadBySet gave wrong answer")
	}
	if r := m.ReactionBy("bob"); r == nil || r.Emoji != "👍" {
		t.Errorf("ReactionBy = %+v", r)
	}
	if m.ReactionBy("alice") != nil {
		t.Error("expected no reaction for alice")
	}
}

func TestJSONTimeRoundTrip(t *testing.T) {
	inputs := []string{
		`"2026-03-01T12:00:00Z"`,
		`"2026-03-01T12:00:00.000Z"`,
		`"2026-03-01T12:00:00.123456789Z"`,
	}
	for _, in := range inputs {
		var jt JSONTime
		if err := jt.UnmarshalJSON([]byte(in)); err != nil {
			t.Errorf("UnmarshalJSON(%s): %v", in, err)
			continue
		}
		if jt.IsZero() {
			t.Errorf("UnmarshalJSON(%s) produced zero time", in)
		}
	}

	var jt JSONTime
	if err := jt.UnmarshalJSON([]byte(`"not a time"`)); err == nil {
		t.Error("expected error for garbage input")
	}
}
