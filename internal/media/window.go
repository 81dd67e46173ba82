package media

import (
	"math"
	"math/rand"
)

// FrameRate of every clip produced by the compositor
const FrameRate = 30

// Uniform returns a value drawn uniformly from [lo, hi]
type Uniform func(lo, hi float64) float64

// RandomUniform draws from the package's unseeded generator
func RandomUniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rand.Float64()*(hi-lo)
}

// MusicTrimStart picks where the music bed is cut. Tracks that are not
// at least a second longer than the target always start at 0.
func MusicTrimStart(musicDuration, target float64, uniform Uniform) float64 {
	if musicDuration > target+1 {
		return clampStart(uniform(0, musicDuration-target), musicDuration-target)
	}
	return 0
}

// BackgroundTrimStart picks where the background footage is cut
func BackgroundTrimStart(backgroundDuration, target float64, uniform Uniform) float64 {
	limit := math.Max(0, backgroundDuration-target)
	return clampStart(uniform(0, limit), limit)
}

// FrameCount is the number of frames a still clip of the given length holds
func FrameCount(target float64) int {
	return int(math.Round(target * FrameRate))
}

// clampStart keeps the offset inside [0, limit] at millisecond precision,
// which is what gets passed to ffmpeg
func clampStart(start, limit float64) float64 {
	start = math.Floor(start*1000) / 1000
	if start < 0 {
		return 0
	}
	if start > limit {
		return math.Floor(limit*1000) / 1000
	}
	return start
}
