package service

import (
	"testing"

	"filegate/internal/storage"
)

func TestPreShard_SplitsIntoRanges(t *testing.T) {
	result := PreShard(10_000_000, 5_000_000)

	if result.PartCount != 2 {
		t.Fatalf("expected 2 parts, got %d", result.PartCount)
	}
	if len(result.Parts) != 2 {
		t.Fatalf("expected 2 part targets, got %d", len(result.Parts))
	}
	if result.Parts[0].Index != 1 || result.Parts[0].Start != 0 || result.Parts[0].End != 5_000_000 {
		t.Fatalf("unexpected first part: %+v", result.Parts[0])
	}
	if result.Parts[1].Index != 2 || result.Parts[1].Start != 5_000_000 || result.Parts[1].End != 10_000_000 {
		t.Fatalf("unexpected second part: %+v", result.Parts[1])
	}
}

func TestPreShard_ShortLastPart(t *testing.T) {
	result := PreShard(10_000_001, 5_000_000)

	if result.PartCount != 3 {
		t.Fatalf("expected 3 parts, got %d", result.PartCount)
	}
	last := result.Parts[2]
	if last.Start != 10_000_000 || last.End != 10_000_001 {
		t.Fatalf("unexpected last part range: [%d, %d)", last.Start, last.End)
	}
}

func TestPartCountFor_InvalidInput(t *testing.T) {
	if count := PartCountFor(0, 5_000_000); count != 0 {
		t.Fatalf("expected 0 parts for empty file, got %d", count)
	}
	if count := PartCountFor(1000, 0); count != 0 {
		t.Fatalf("expected 0 parts for zero part size, got %d", count)
	}
}

func TestMissingIndexes_SparseParts(t *testing.T) {
	stored := []storage.Part{
		{Index: 1, Checksum: "a"},
		{Index: 3, Checksum: "c"},
		{Index: 99, Checksum: "out-of-range"},
	}

	missing := missingIndexes(4, stored)

	if len(missing) != 2 || missing[0] != 2 || missing[1] != 4 {
		t.Fatalf("expected missing [2 4], got %v", missing)
	}
}

func TestMissingIndexes_Complete(t *testing.T) {
	stored := []storage.Part{{Index: 1}, {Index: 2}}
	if missing := missingIndexes(2, stored); len(missing) != 0 {
		t.Fatalf("expected no missing parts, got %v", missing)
	}
}
