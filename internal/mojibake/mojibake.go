// Package mojibake progressively corrupts todo titles. Each disruption raises
// the share of replaced runes until the text collapses into a placeholder.
package mojibake

import (
	"math"
	"math/rand/v2"
	"slices"
)

const (
	DefaultPalette     = "†‡§¶•¢£¤¥¦§¨©ª«®¯°±²³´µ¶·¸¹º»¼½¾¿€ÆÇÐÑÞßæçðñþ£¥€¿¡™©®¢µ¶•"
	DefaultPlaceholder = "??????????"
	DefaultFraction    = 0.33
	DefaultMaxCount    = 3
)

// Rand is the subset of *rand.Rand the corrupter draws from.
type Rand interface {
	IntN(n int) int
}

// State is the corruption already applied to a text. Positions are rune
// indexes into the current text.
type State struct {
	Count     int
	Positions []int
}

type Result struct {
	Text        string
	State       State
	Placeholder bool
}

type Corrupter struct {
	Palette     []rune
	Placeholder string
	Fraction    float64
	MaxCount    int
}

func Default() Corrupter {
	return Corrupter{
		Palette:     []rune(DefaultPalette),
		Placeholder: DefaultPlaceholder,
		Fraction:    DefaultFraction,
		MaxCount:    DefaultMaxCount,
	}
}

// Corrupt applies the default corrupter.
func Corrupt(text string, state State, count int, rnd Rand) Result {
	return Default().Corrupt(text, state, count, rnd)
}

// Corrupt returns text with enough additional runes replaced to reach the
// share implied by count. Runes listed in state.Positions are never picked
// again. A nil rnd uses the auto-seeded global source.
func (c Corrupter) Corrupt(text string, state State, count int, rnd Rand) Result {
	if rnd == nil {
		rnd = globalRand{}
	}
	runes := []rune(text)
	n := len(runes)
	if n == 0 || count >= c.MaxCount {
		return Result{Text: c.Placeholder, State: State{Count: count}, Placeholder: true}
	}
	target := Target(n, count, c.Fraction)

	done := make(map[int]bool, len(state.Positions))
	positions := make([]int, 0, target)
	for _, p := range state.Positions {
		if p >= 0 && p < n && !done[p] {
			done[p] = true
			positions = append(positions, p)
		}
	}
	need := target - len(positions)
	if need > 0 && len(c.Palette) > 0 {
		candidates := make([]int, 0, n-len(positions))
		for i := 0; i < n; i++ {
			if !done[i] {
				candidates = append(candidates, i)
			}
		}
		// partial Fisher-Yates: the first need slots end up a uniform sample
		for i := 0; i < need; i++ {
			j := i + rnd.IntN(len(candidates)-i)
			candidates[i], candidates[j] = candidates[j], candidates[i]
			pos := candidates[i]
			runes[pos] = c.Palette[rnd.IntN(len(c.Palette))]
			positions = append(positions, pos)
		}
	}
	slices.Sort(positions)
	return Result{Text: string(runes), State: State{Count: count, Positions: positions}}
}

// Target is the number of runes of an n-rune text that should be corrupted
// after count disruptions.
func Target(n, count int, fraction float64) int {
	if n <= 0 || count <= 0 {
		return 0
	}
	share := math.Min(1, fraction*float64(count))
	t := int(math.Ceil(share * float64(n)))
	return min(t, n)
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }
