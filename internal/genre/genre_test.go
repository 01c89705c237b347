// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package genre

import (
	"errors"
	"testing"
)

func countOnes(vec []float64) int {
	n := 0
	for _, v := range vec {
		if v == 1.0 {
			n++
		} else if v != 0 {
			return -1
		}
	}
	return n
}

func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		genres []Genre
		ones   int
	}{
		{"empty", nil, 0},
		{"single", []Genre{Fantasy}, 1},
		{"several", []Genre{Horror, Romance, ScienceTechnology}, 3},
		{"duplicates", []Genre{Horror, Horror}, 1},
		{"unknown ignored", []Genre{"NOT_A_GENRE", SciFi}, 1},
		{"all", All(), Count},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vec := Encode(tt.genres)
			if len(vec) != Count {
				t.Fatalf("len(Encode()) = %d, want %d", len(vec), Count)
			}
			if got := countOnes(vec); got != tt.ones {
				t.Errorf("ones = %d, want %d", got, tt.ones)
			}
		})
	}
}

func TestEncode_SlotOrder(t *testing.T) {
	t.Parallel()

	vec := Encode([]Genre{Fantasy, ScienceTechnology})
	if vec[0] != 1 {
		t.Errorf("slot 0 (FANTASY) = %v, want 1", vec[0])
	}
	if vec[Count-1] != 1 {
		t.Errorf("last slot (SCIENCE_TECHNOLOGY) = %v, want 1", vec[Count-1])
	}
	if i, _ := Index(Horror); vec[i] != 0 {
		t.Errorf("HORROR slot = %v, want 0", vec[i])
	}
}

func TestCount(t *testing.T) {
	t.Parallel()
	if Count != 15 {
		t.Errorf("Count = %d, want 15", Count)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    Genre
		wantErr bool
	}{
		{"FANTASY", Fantasy, false},
		{"fantasy", Fantasy, false},
		{"sci-fi", SciFi, false},
		{" Young Adult ", YoungAdult, false},
		{"cooking", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownGenre) {
				t.Errorf("Parse(%q) error = %v, want ErrUnknownGenre", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseAll_DedupesInSlotOrder(t *testing.T) {
	t.Parallel()

	got, err := ParseAll([]string{"romance", "FANTASY", "Romance"})
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	if len(got) != 2 || got[0] != Fantasy || got[1] != Romance {
		t.Errorf("ParseAll() = %v, want [FANTASY ROMANCE]", got)
	}

	if _, err := ParseAll([]string{"FANTASY", "bogus"}); err == nil {
		t.Error("ParseAll() with unknown tag should fail")
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	t.Parallel()

	a := All()
	a[0] = "MUTATED"
	if All()[0] != Fantasy {
		t.Error("All() exposed internal slice")
	}
}
