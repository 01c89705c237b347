// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

// Package genre defines the fixed genre enumeration and the multi-hot codec
// that turns a set of genre tags into an item embedding.
//
// The enumeration order is part of the stored format: slot i of every
// embedding corresponds to All()[i]. New genres may only be appended.
package genre

import (
	"errors"
	"fmt"
	"strings"
)

// Genre is a catalog genre tag.
type Genre string

// Known genres, in embedding slot order.
const (
	Fantasy            Genre = "FANTASY"
	SciFi              Genre = "SCI_FI"
	Horror             Genre = "HORROR"
	ThrillerMystery    Genre = "THRILLER_MYSTERY"
	Romance            Genre = "ROMANCE"
	Classics           Genre = "CLASSICS"
	Contemporary       Genre = "CONTEMPORARY"
	HistoricalFiction  Genre = "HISTORICAL_FICTION"
	YoungAdult         Genre = "YOUNG_ADULT"
	GraphicNovels      Genre = "GRAPHIC_NOVELS"
	BiographyMemoir    Genre = "BIOGRAPHY_MEMOIR"
	SelfHelp           Genre = "SELF_HELP"
	PhilosophyReligion Genre = "PHILOSOPHY_RELIGION"
	HistoryPolitics    Genre = "HISTORY_POLITICS"
	ScienceTechnology  Genre = "SCIENCE_TECHNOLOGY"
)

var ordered = []Genre{
	Fantasy,
	SciFi,
	Horror,
	ThrillerMystery,
	Romance,
	Classics,
	Contemporary,
	HistoricalFiction,
	YoungAdult,
	GraphicNovels,
	BiographyMemoir,
	SelfHelp,
	PhilosophyReligion,
	HistoryPolitics,
	ScienceTechnology,
}

var index = func() map[Genre]int {
	m := make(map[Genre]int, len(ordered))
	for i, g := range ordered {
		m[g] = i
	}
	return m
}()

// Count is the embedding dimension G.
var Count = len(ordered)

// ErrUnknownGenre is returned when a tag is not part of the enumeration.
var ErrUnknownGenre = errors.New("unknown genre")

// All returns the genres in slot order. The returned slice is a copy.
func All() []Genre {
	out := make([]Genre, len(ordered))
	copy(out, ordered)
	return out
}

// Index returns the embedding slot of g.
func Index(g Genre) (int, bool) {
	i, ok := index[g]
	return i, ok
}

// Valid reports whether g is a known genre.
func (g Genre) Valid() bool {
	_, ok := index[g]
	return ok
}

// String implements fmt.Stringer.
func (g Genre) String() string {
	return string(g)
}

// Parse normalizes a raw tag ("sci-fi", "Sci Fi", "SCI_FI") and resolves it.
func Parse(raw string) (Genre, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	g := Genre(norm)
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownGenre, raw)
	}
	return g, nil
}

// ParseAll resolves every tag and returns them deduplicated in slot order.
// The first unknown tag aborts parsing.
func ParseAll(raw []string) ([]Genre, error) {
	out := make([]Genre, 0, len(raw))
	for _, r := range raw {
		g, err := Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return Dedupe(out), nil
}

// Dedupe drops unknown and repeated genres and sorts the rest by slot.
func Dedupe(genres []Genre) []Genre {
	var seen [64]bool
	for _, g := range genres {
		if i, ok := index[g]; ok {
			seen[i] = true
		}
	}
	out := make([]Genre, 0, len(genres))
	for i, g := range ordered {
		if seen[i] {
			out = append(out, g)
		}
	}
	return out
}

// Encode returns the multi-hot vector for genres: 1.0 in the slot of every
// known genre present, 0.0 elsewhere. The result always has length Count.
func Encode(genres []Genre) []float64 {
	vec := make([]float64, Count)
	for _, g := range genres {
		if i, ok := index[g]; ok {
			vec[i] = 1.0
		}
	}
	return vec
}

// Strings converts genres to their tag strings.
func Strings(genres []Genre) []string {
	out := make([]string, len(genres))
	for i, g := range genres {
		out[i] = string(g)
	}
	return out
}
