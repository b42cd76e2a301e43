//go:build integration

package itest

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

type probeResult struct {
	Seconds float64
	Width   int
	Height  int
}

// probeVideo reads the container duration and the first video stream's size.
func probeVideo(mp4Path string) (probeResult, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "format=duration:stream=width,height",
		"-of", "json",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return probeResult{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	var out struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return probeResult{}, fmt.Errorf("parse ffprobe output: %w\n%s", err, string(b))
	}
	if len(out.Streams) == 0 {
		return probeResult{}, fmt.Errorf("ffprobe: %s has no video stream", mp4Path)
	}
	sec, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return probeResult{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}
	return probeResult{Seconds: sec, Width: out.Streams[0].Width, Height: out.Streams[0].Height}, nil
}
