package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/lipsync/internal/ports"
	"github.com/forPelevin/lipsync/internal/types"
)

const (
	FPS         = 25
	FrameWidth  = 1200
	FrameHeight = 1200

	// stderr lines kept for the error message of a failed encode
	tailLines = 20
)

type Adapter struct {
	ffmpeg string
}

func New(ffmpegPath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Adapter{ffmpeg: ffmpegPath}
}

func (a *Adapter) Encode(ctx context.Context, req ports.EncodeRequest, progress func(line string)) error {
	if progress == nil {
		progress = func(string) {}
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, encodeArgs(req)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: ffmpeg: %v", types.ErrEncodeFailed, err)
	}
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg encode: %w", ctx.Err())
		}
		return fmt.Errorf("%w: ffmpeg start: %v", types.ErrEncodeFailed, err)
	}

	tail := streamLines(stderr, progress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg encode: %w", ctx.Err())
		}
		return fmt.Errorf("%w: ffmpeg encode: %v\n%s", types.ErrEncodeFailed, err, strings.Join(tail, "\n"))
	}
	return nil
}

func encodeArgs(req ports.EncodeRequest) []string {
	return []string{
		"-y",
		"-i", req.SpeechPath,
		"-f", "concat",
		"-safe", "0",
		"-i", req.ScriptPath,
		"-c:a", "aac",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=" + strconv.Itoa(FrameWidth) + ":" + strconv.Itoa(FrameHeight),
		"-r", strconv.Itoa(FPS),
		req.OutPath,
	}
}

// streamLines forwards every non-empty line of r and returns the last few.
// ffmpeg rewrites its progress line with '\r', so both '\r' and '\n' end a line.
func streamLines(r io.Reader, fn func(string)) []string {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(scanCRLF)
	var tail []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fn(line)
		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[1:]
		}
	}
	// drain so the process never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
	return tail
}

func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
