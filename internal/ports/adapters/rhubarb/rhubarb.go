package rhubarb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/forPelevin/lipsync/internal/domain/fingerprint"
	"github.com/forPelevin/lipsync/internal/ports"
	"github.com/forPelevin/lipsync/internal/types"
)

type Adapter struct {
	bin string
}

func New(binPath string) *Adapter {
	if binPath == "" {
		binPath = "rhubarb"
	}
	return &Adapter{bin: binPath}
}

type output struct {
	Metadata *struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	MouthCues *[]types.MouthCue `json:"mouthCues"`
}

func (a *Adapter) Analyze(ctx context.Context, req ports.AnalyzeRequest) (types.Analysis, error) {
	cmd := exec.CommandContext(ctx, a.bin, buildArgs(req)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	diag := strings.TrimSpace(stderr.String())
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Analysis{}, fmt.Errorf("rhubarb: %w", ctxErr)
		}
		// a failed exit with usable cues on stdout still counts as a result
		an, err := parseOutput(stdout.Bytes())
		if err != nil {
			return types.Analysis{}, fmt.Errorf("%w: rhubarb: %v\n%s", types.ErrToolFailure, runErr, diag)
		}
		an.Diagnostics = strings.TrimSpace(diag + "\nrhubarb: " + runErr.Error())
		return an, nil
	}

	an, err := parseOutput(stdout.Bytes())
	if err != nil {
		if diag != "" {
			return types.Analysis{}, fmt.Errorf("%w\n%s", err, diag)
		}
		return types.Analysis{}, err
	}
	an.Diagnostics = diag
	return an, nil
}

func buildArgs(req ports.AnalyzeRequest) []string {
	return []string{
		req.SpeechPath,
		"--dialogFile", req.TranscriptPath,
		"--exportFormat", "json",
		"--quiet",
		"--extendedShapes", fingerprint.ShapeSet(req.SkipExtended),
	}
}

// parseOutput reads the single JSON document rhubarb prints on stdout. An
// empty mouthCues array is a valid (silent) result; a missing one is not.
func parseOutput(b []byte) (types.Analysis, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return types.Analysis{}, fmt.Errorf("%w: empty output", types.ErrMalformedOutput)
	}
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Analysis{}, fmt.Errorf("%w: %v", types.ErrMalformedOutput, err)
	}
	if out.MouthCues == nil {
		return types.Analysis{}, types.ErrMalformedOutput
	}
	an := types.Analysis{Cues: *out.MouthCues}
	if an.Cues == nil {
		an.Cues = []types.MouthCue{}
	}
	for i := range an.Cues {
		an.Cues[i].Shape = strings.TrimSpace(an.Cues[i].Shape)
	}
	if out.Metadata != nil {
		an.Duration = out.Metadata.Duration
	}
	return an, nil
}
