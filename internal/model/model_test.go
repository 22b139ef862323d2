package model

import "testing"

func TestDirectConversationIDSymmetric(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"alice", "bob", "bob-alice"},
		{"bob", "alice", "bob-alice"},
		{"uidZ", "uidA", "uidZ-uidA"},
		{"1", "2", "2-1"},
	}
	for _, tt := range tests {
		got := DirectConversationID(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("DirectConversationID(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
		// Order independence.
		if rev := DirectConversationID(tt.b, tt.a); rev != got {
			t.Errorf("DirectConversationID not symmetric: %q vs %q", got, rev)
		}
	}
}

func TestSplitDirectConversationID(t *testing.T) {
	a, b, err := SplitDirectConversationID("bob-alice")
	if err != nil {
		t.Fatal(err)
	}
	if a != "bob" || b != "alice" {
		t.Errorf("got (%q, %q), want (bob, alice)", a, b)
	}

	if _, _, err := SplitDirectConversationID("justone"); err == nil {
		t.Error("expected error for id without separator")
	}
	if _, _, err := SplitDirectConversationID("-alice"); err == nil {
		t.Error("expected error for empty participant")
	}
	if _, _, err := SplitDirectConversationID("uid-b-uid-a"); err == nil {
		t.Error("expected error for uids containing the separator")
	}
}

func TestOtherParticipant(t *testing.T) {
	id := DirectConversationID("alice", "bob")

	other, err := OtherParticipant(id, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if other != "bob" {
		t.Errorf("other = %q, want bob", other)
	}

	other, err = OtherParticipant(id, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if other != "alice" {
		t.Errorf("other = %q, want alice", other)
	}

	if _, err := OtherParticipant(id, "carol"); err == nil {
		t.Error("expected error for non-participant")
	}
}

func TestPreviewText(t *testing.T) {
	if got := PreviewText(TypeText, "hi there"); got != "hi there" {
		t.Errorf("text preview = %q", got)
	}
	if got := PreviewText(TypeImage, "https://cdn/img.jpg"); got != "\U0001F4F7 Photo" {
		t.Errorf("image preview = %q", got)
	}
	if got := PreviewText(TypeVideo, "https://cdn/v.mp4"); got != "\U0001F3A5 Video" {
		t.Errorf("video preview = %q", got)
	}
	if got := PreviewText(TypeSticker, "sticker_42"); got != "Sticker" {
		t.Errorf("sticker preview = %q", got)
	}
}
