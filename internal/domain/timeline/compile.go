package timeline

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/forPelevin/lipsync/internal/types"
)

const (
	DefaultImageRoot = "img"
	DefaultImageSet  = "pixel"
)

// ImagePath returns the image shown for shape. It only builds the path; the
// encoder is the one that finds out whether the file exists.
func ImagePath(root, set, shape string) string {
	if root == "" {
		root = DefaultImageRoot
	}
	if set == "" {
		set = DefaultImageSet
	}
	return path.Join(root, set, shape+".jpg")
}

// Compile turns cues into one segment per cue, in input order. Cues are not
// re-sorted and overlaps or gaps are kept as they are.
func Compile(cues []types.MouthCue, root, set string) ([]types.Segment, error) {
	out := make([]types.Segment, 0, len(cues))
	for i, c := range cues {
		if err := checkShape(c.Shape); err != nil {
			return nil, fmt.Errorf("cue %d: %w", i, err)
		}
		d := c.End - c.Start
		if !(d > 0) {
			return nil, fmt.Errorf("cue %d (%s, %v-%v): %w", i, c.Shape, c.Start, c.End, types.ErrNegativeDuration)
		}
		out = append(out, types.Segment{
			ImagePath: ImagePath(root, set, c.Shape),
			Duration:  d,
		})
	}
	return out, nil
}

func checkShape(shape string) error {
	if strings.TrimSpace(shape) == "" {
		return fmt.Errorf("%w: empty", types.ErrInvalidShape)
	}
	if strings.ContainsAny(shape, `/\`) || strings.Contains(shape, "..") {
		return fmt.Errorf("%w: %q", types.ErrInvalidShape, shape)
	}
	return nil
}

// Total is the summed duration of segs in seconds.
func Total(segs []types.Segment) float64 {
	var sum float64
	for _, s := range segs {
		sum += s.Duration
	}
	return sum
}

// Frames is the number of frames seconds covers at fps.
func Frames(seconds float64, fps int) int {
	if seconds <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(fps)))
}
