package content

import (
	"testing"
	"time"
)

func TestNewBlock(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBlock(BlockText, map[string]any{"text": "hello"}, at)

	if b.ID == "" {
		t.Error("block must get an identifier")
	}
	if b.Metadata.Version != 1 {
		t.Errorf("Version = %d, want 1", b.Metadata.Version)
	}
	if !b.Metadata.Created.Equal(at) || !b.Metadata.Modified.Equal(at) {
		t.Errorf("timestamps = %v/%v, want %v", b.Metadata.Created, b.Metadata.Modified, at)
	}

	other := NewBlock(BlockText, nil, at)
	if other.ID == b.ID {
		t.Error("block identifiers must be unique")
	}
}

func TestBlockTouch(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBlock(BlockCode, map[string]any{"code": "x"}, created)

	prev := b.Metadata.Version
	for i := 1; i <= 3; i++ {
		at := created.Add(time.Duration(i) * time.Minute)
		b.Touch(at)
		if b.Metadata.Version <= prev {
			t.Fatalf("version %d after touch %d; versions only grow", b.Metadata.Version, i)
		}
		prev = b.Metadata.Version
		if !b.Metadata.Modified.Equal(at) {
			t.Errorf("Modified = %v, want %v", b.Metadata.Modified, at)
		}
		if !b.Metadata.Created.Equal(created) {
			t.Error("Created must not move on edit")
		}
	}
	if b.Metadata.Version != 4 {
		t.Errorf("Version = %d after 3 edits, want 4", b.Metadata.Version)
	}
}

func TestContentID(t *testing.T) {
	t.Parallel()
	a := ContentID("https://example.com/x")
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
	if a != ContentID("https://example.com/x") {
		t.Error("identifier must be deterministic")
	}
	if a == ContentID("https://example.com/y") {
		t.Error("different URLs must not collide")
	}
}
