package channel

import "sort"

// UnifiedMessage is the platform-neutral form of one post, ready for dispatch.
// Attachments are ordered by ascending size hint; refs without a hint come first.
type UnifiedMessage struct {
	MessageID   int
	Text        string
	Attachments []*PendingAttachment
}

// HasText reports whether the message carries text.
func (m UnifiedMessage) HasText() bool {
	return m.Text != ""
}

// Assemble builds a UnifiedMessage. Text is copied verbatim. The sort is
// stable so equal hints keep classification order.
func Assemble(text string, pending []*PendingAttachment) UnifiedMessage {
	items := make([]*PendingAttachment, 0, len(pending))
	for _, p := range pending {
		if p != nil {
			items = append(items, p)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return sizeKey(items[i]) < sizeKey(items[j])
	})
	return UnifiedMessage{
		Text:        text,
		Attachments: items,
	}
}

func sizeKey(p *PendingAttachment) int64 {
	if p.ref.SizeHint < 0 {
		return 0
	}
	return p.ref.SizeHint
}
