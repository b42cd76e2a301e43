package timeline

import (
	"strconv"
	"strings"

	"github.com/forPelevin/lipsync/internal/types"
)

// ConcatHeader must be the first line of every script; ffmpeg probes the
// concat demuxer by it.
const ConcatHeader = "ffconcat version 1.0"

// RenderConcat writes segs as an ffconcat script: the header, then a file line
// and a duration line per segment. Lines are joined by "\n" with no trailing
// newline.
func RenderConcat(segs []types.Segment) string {
	var b strings.Builder
	b.WriteString(ConcatHeader)
	for _, s := range segs {
		b.WriteString("\nfile ")
		b.WriteString(quoteConcatPath(s.ImagePath))
		b.WriteString("\nduration ")
		b.WriteString(formatSeconds(s.Duration))
	}
	return b.String()
}

// formatSeconds prints the shortest decimal that parses back to d.
func formatSeconds(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

func quoteConcatPath(p string) string {
	if !strings.ContainsAny(p, " \t'\"#\\") {
		return p
	}
	// ffconcat: inside single quotes nothing is special, so a quote closes the
	// string, gets escaped, and reopens it.
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}
