package refselect

import (
	"framewright/internal/graph"
)

// Mapping translates positions across the cascade:
// final-local -> stage-2-local -> original candidate index.
type Mapping struct {
	// Stage2ToOriginal has one entry per stage-2 input position.
	Stage2ToOriginal []int
	// FinalToStage2 has one entry per returned position.
	FinalToStage2 []int
}

// Original returns the original candidate index behind final position pos.
func (m Mapping) Original(pos int) int {
	return m.Stage2ToOriginal[m.FinalToStage2[pos]]
}

// IdentityMapping maps n stage-2 positions onto themselves.
func IdentityMapping(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// PrefilterSurvivors cleans a pre-filter response against n candidates:
// out-of-range and duplicate indices are dropped and the rest capped.
func PrefilterSurvivors(indices []int, n int) []int {
	out := make([]int, 0, min(len(indices), graph.MaxReferences))
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		if len(out) == graph.MaxReferences {
			break
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}

// Remap converts a final-stage response whose indices are local to the
// stage-2 input into a result over original indices. Entries that are out of
// range, duplicate an earlier original, or exceed the cap are dropped, and
// the instruction's "Image N" references are rewritten to positions in the
// returned subset. A reference to a dropped duplicate points at its surviving
// twin; a reference to anything else that was dropped is removed.
func Remap(stage2ToOriginal []int, indices []int, instruction string) (graph.SelectionResult, Mapping) {
	mapping := Mapping{Stage2ToOriginal: append([]int(nil), stage2ToOriginal...)}
	result := graph.SelectionResult{Indices: []int{}}

	posByOriginal := make(map[int]int, len(indices))
	responseToFinal := make(map[int]int, len(indices))
	for respPos, local := range indices {
		if local < 0 || local >= len(stage2ToOriginal) {
			continue
		}
		orig := stage2ToOriginal[local]
		if twin, ok := posByOriginal[orig]; ok {
			responseToFinal[respPos] = twin
			continue
		}
		if len(result.Indices) == graph.MaxReferences {
			continue
		}
		pos := len(result.Indices)
		posByOriginal[orig] = pos
		responseToFinal[respPos] = pos
		result.Indices = append(result.Indices, orig)
		mapping.FinalToStage2 = append(mapping.FinalToStage2, local)
	}

	result.Instruction = graph.RewriteReferences(instruction, func(n int) (int, bool) {
		pos, ok := responseToFinal[n]
		return pos, ok
	})
	return result, mapping
}
