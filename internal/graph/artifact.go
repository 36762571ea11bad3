package graph

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Handle addresses an artifact relative to the run workspace.
type Handle string

// ArtifactKind says where a reference artifact came from.
type ArtifactKind string

const (
	KindPortrait ArtifactKind = "portrait"
	KindFrame    ArtifactKind = "frame"
	KindCamera   ArtifactKind = "camera"
)

// ReferenceArtifact is an immutable image paired with the text that describes it.
type ReferenceArtifact struct {
	Handle      Handle       `json:"handle" yaml:"handle"`
	Description string       `json:"description" yaml:"description"`
	Kind        ArtifactKind `json:"kind" yaml:"kind"`
	// Source names the producer, e.g. a character identifier and view or a frame key.
	Source string `json:"source" yaml:"source"`
}

// MaxReferences bounds a selection.
const MaxReferences = 8

// SelectionResult is the chosen subset of a candidate list plus a
// generation instruction whose "Image N" references are positions in Indices.
type SelectionResult struct {
	Indices     []int  `json:"indices" yaml:"indices"`
	Instruction string `json:"instruction" yaml:"instruction"`
}

// imageRefPattern matches "Image N" and lists such as "Images 1, 2 and 3",
// in any case.
var (
	imageRefPattern = regexp.MustCompile(`(?i)\b(images?)\s+(\d+(?:(?:\s*,\s*(?:and\s+)?|\s+and\s+|\s*&\s*)\d+)*)\b`)
	digitsPattern   = regexp.MustCompile(`\d+`)
)

func referenceNumbers(list string) []int {
	var out []int
	for _, digits := range digitsPattern.FindAllString(list, -1) {
		if n, err := strconv.Atoi(digits); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// LocalReferences returns the distinct referenced positions, ascending.
func LocalReferences(instruction string) []int {
	seen := map[int]bool{}
	var out []int
	for _, match := range imageRefPattern.FindAllStringSubmatch(instruction, -1) {
		for _, n := range referenceNumbers(match[2]) {
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// RewriteReferences maps every referenced position through f, keeping the
// label's case. Rejected and repeated positions are dropped from their list,
// and a reference left empty becomes "the reference".
func RewriteReferences(instruction string, f func(int) (int, bool)) string {
	return imageRefPattern.ReplaceAllStringFunc(instruction, func(match string) string {
		sub := imageRefPattern.FindStringSubmatch(match)
		var kept []string
		seen := map[int]bool{}
		for _, n := range referenceNumbers(sub[2]) {
			if mapped, ok := f(n); ok && !seen[mapped] {
				seen[mapped] = true
				kept = append(kept, strconv.Itoa(mapped))
			}
		}
		singular := sub[1][:5]
		switch len(kept) {
		case 0:
			if len(sub[1]) > 5 {
				return "the references"
			}
			return "the reference"
		case 1:
			return singular + " " + kept[0]
		default:
			plural := singular + "s"
			if strings.ToUpper(singular) == singular {
				plural = singular + "S"
			}
			return plural + " " + strings.Join(kept[:len(kept)-1], ", ") + " and " + kept[len(kept)-1]
		}
	})
}

// ErrInvalidSelection marks a selection that breaks its invariants.
var ErrInvalidSelection = errors.New("invalid selection")

// Validate checks the selection against a candidate list of length n.
func (r SelectionResult) Validate(n int) error {
	if len(r.Indices) > MaxReferences {
		return fmt.Errorf("%w: %d indices exceeds %d", ErrInvalidSelection, len(r.Indices), MaxReferences)
	}
	seen := make(map[int]bool, len(r.Indices))
	for pos, idx := range r.Indices {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: position %d index %d out of range [0,%d)", ErrInvalidSelection, pos, idx, n)
		}
		if seen[idx] {
			return fmt.Errorf("%w: index %d selected twice", ErrInvalidSelection, idx)
		}
		seen[idx] = true
	}
	for _, ref := range LocalReferences(r.Instruction) {
		if ref >= len(r.Indices) {
			return fmt.Errorf("%w: instruction references Image %d but only %d selected", ErrInvalidSelection, ref, len(r.Indices))
		}
	}
	return nil
}

// Artifacts resolves the selection against the candidate list it was made from.
func (r SelectionResult) Artifacts(candidates []ReferenceArtifact) []ReferenceArtifact {
	out := make([]ReferenceArtifact, 0, len(r.Indices))
	for _, idx := range r.Indices {
		if idx >= 0 && idx < len(candidates) {
			out = append(out, candidates[idx])
		}
	}
	return out
}
