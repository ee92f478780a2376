package source

import (
	"fmt"
	"math"
	"math/rand/v2"

	"sourcerer/lib/composite"
	"sourcerer/lib/easing"
)

var clipNamePool = []string{
	"Loop", "Projection", "Background", "Overlay", "Flash",
	"Ambience", "Underscore", "Sting", "Bumper", "Transition",
}

var patternNamePool = []string{
	"Bars", "Wash", "Gradient", "Slate", "Blackout", "Sunrise",
}

var patterns = []string{"bars", "solid", "gradient", "slate", "solid", "gradient"}

// GenerateMock builds a valid list of n sources with a fixed seed, mixing
// file and generative kinds, every transition type, easing shape, done
// condition and follow action.
func GenerateMock(n int, seed uint64) []*Source {
	rng := rand.New(rand.NewPCG(seed, 0))
	sources := make([]*Source, 0, n)

	for i := range n {
		s := Default()
		r := rng.Float64()
		switch {
		case r < 0.5:
			s.Kind = File
			s.Generative = nil
			s.File = &FileParams{
				Path:   fmt.Sprintf("media/clip%03d.png", i),
				Frames: 30 + rng.IntN(300),
				Rate:   []float64{24, 25, 30, 60}[rng.IntN(4)],
			}
			s.Name = fmt.Sprintf("%s %d", clipNamePool[rng.IntN(len(clipNamePool))], i)
		default:
			p := rng.IntN(len(patterns))
			s.Generative = &GenerativeParams{
				Pattern: patterns[p],
				Color:   [3]float64{round2(rng.Float64()), round2(rng.Float64()), round2(rng.Float64())},
				Text:    patternNamePool[p],
			}
			s.Name = fmt.Sprintf("%s %d", patternNamePool[p], i)
		}

		typ := composite.Types[rng.IntN(len(composite.Types))]
		if typ.UsesMatte() {
			typ = composite.Wipe
		}
		s.Transition.Type = typ
		s.Transition.Shape = easing.Kinds[rng.IntN(len(easing.Kinds)-1)]
		s.Transition.UseGlobalDuration = rng.IntN(2) == 0
		s.Transition.Duration = float64(rng.IntN(4)) * 0.5
		s.Transition.DipColor = [3]float64{0, 0, 0}

		switch {
		case s.Kind == File && rng.IntN(2) == 0:
			s.Done = Done{On: PlayNTimes, Loops: 1 + rng.IntN(3)}
		case rng.IntN(3) == 0:
			s.Done = Done{On: Timer, Timer: float64(5 + rng.IntN(20))}
		default:
			s.Done = Done{On: Manual}
		}

		switch rng.IntN(4) {
		case 0:
			s.Follow = Follow{Action: FollowNext}
		case 1:
			s.Follow = Follow{Action: FollowGotoIndex, Index: rng.IntN(max(1, i))}
		default:
			s.Follow = Follow{Action: FollowNone}
		}

		sources = append(sources, s)
	}
	return sources
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
