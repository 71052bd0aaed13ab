package storage

import (
	"context"
	"testing"

	"imovel-scraper/models"
)

func TestFormatAndParseCode(t *testing.T) {
	tests := []struct {
		seq  int64
		want string
	}{
		{1, "IMV000001"},
		{42, "IMV000042"},
		{999999, "IMV999999"},
	}
	for _, tt := range tests {
		got := FormatCode(tt.seq)
		if got != tt.want {
			t.Errorf("FormatCode(%d) = %q, want %q", tt.seq, got, tt.want)
		}
		back, err := ParseCode(got)
		if err != nil || back != tt.seq {
			t.Errorf("ParseCode(%q) = %d, %v; want %d", got, back, err, tt.seq)
		}
	}

	if _, err := ParseCode("XYZ000001"); err == nil {
		t.Error("ParseCode should reject a foreign prefix")
	}
}

func TestMemoryNextCodeMonotonic(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	prev := ""
	for i := 0; i < 5; i++ {
		code, err := m.NextCode(ctx)
		if err != nil {
			t.Fatalf("NextCode: %v", err)
		}
		if code <= prev {
			t.Errorf("codes must be strictly increasing: %q after %q", code, prev)
		}
		prev = code
	}
}

func TestMemoryLinkLifecycle(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seed := []*models.SourceLink{
		{URL: "https://linktr.ee/a", Category: "aggregator"},
		{URL: "https://linktr.ee/b", Category: "aggregator"},
		{URL: "https://linktr.ee/a"}, // duplicate URL skipped
	}
	if err := m.Seed(ctx, seed); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	batch, err := m.NextBatch(ctx, 10)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("got %d links, want 2 (duplicate dropped)", len(batch))
	}

	if err := m.MarkStatus(ctx, batch[0].ID, models.LinkCompleted, "", 3); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}

	n, _ := m.CountPending(ctx)
	if n != 1 {
		t.Errorf("CountPending = %d, want 1", n)
	}

	if err := m.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	n, _ = m.CountPending(ctx)
	if n != 2 {
		t.Errorf("after reset CountPending = %d, want 2", n)
	}
}

func TestMemoryRawStateMachine(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	raw := &models.RawProperty{ID: "r1", Title: "t", Status: models.RawPending, NeedsProcessing: true}
	if err := m.InsertRaw(ctx, raw); err != nil {
		t.Fatalf("InsertRaw: %v", err)
	}

	if err := m.MarkProcessing(ctx, "r1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	got, _ := m.Raw("r1")
	if got.Status != models.RawProcessing {
		t.Errorf("Status = %s, want processing", got.Status)
	}

	if err := m.Complete(ctx, "r1", "IMV000001"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ = m.Raw("r1")
	if got.Status != models.RawCompleted || got.NeedsProcessing {
		t.Errorf("completed record: status=%s needs=%v", got.Status, got.NeedsProcessing)
	}
	if got.PropertyCode != "IMV000001" {
		t.Errorf("PropertyCode = %q", got.PropertyCode)
	}

	// Completed records no longer show up in the pending batch.
	batch, _ := m.PendingBatch(ctx, 10)
	if len(batch) != 0 {
		t.Errorf("pending batch should be empty, got %d", len(batch))
	}

	if err := m.Fail(ctx, "missing", "boom"); err != ErrNotFound {
		t.Errorf("Fail on unknown id = %v, want ErrNotFound", err)
	}
}
