package channel

import "testing"

func TestAssembleOrdersBySizeHint(t *testing.T) {
	t.Parallel()

	pending := []*PendingAttachment{
		resolvedPending(AttachmentRef{FileName: "big", SizeHint: 300}, nil, nil),
		resolvedPending(AttachmentRef{FileName: "unknown-1"}, nil, nil),
		resolvedPending(AttachmentRef{FileName: "small", SizeHint: 10}, nil, nil),
		resolvedPending(AttachmentRef{FileName: "unknown-2"}, nil, nil),
		resolvedPending(AttachmentRef{FileName: "mid-a", SizeHint: 50}, nil, nil),
		resolvedPending(AttachmentRef{FileName: "mid-b", SizeHint: 50}, nil, nil),
	}
	msg := Assemble("hello", pending)

	want := []string{"unknown-1", "unknown-2", "small", "mid-a", "mid-b", "big"}
	if len(msg.Attachments) != len(want) {
		t.Fatalf("expected %d attachments, got %d", len(want), len(msg.Attachments))
	}
	var prev int64 = -1
	for i, p := range msg.Attachments {
		if p.Ref().FileName != want[i] {
			t.Fatalf("attachment %d = %s, want %s", i, p.Ref().FileName, want[i])
		}
		if p.Ref().SizeHint < prev {
			t.Fatalf("attachments not non-decreasing at %d", i)
		}
		prev = p.Ref().SizeHint
	}
	if pending[0].Ref().FileName != "big" {
		t.Fatalf("Assemble must not reorder the caller's slice")
	}
}

func TestAssembleKeepsTextVerbatim(t *testing.T) {
	t.Parallel()

	if msg := Assemble("", nil); msg.HasText() || msg.Text != "" || len(msg.Attachments) != 0 {
		t.Fatalf("absent text must stay absent: %+v", msg)
	}
	if msg := Assemble("  spaced  ", nil); msg.Text != "  spaced  " {
		t.Fatalf("text changed: %q", msg.Text)
	}
}
