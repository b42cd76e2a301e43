package ports

import (
	"context"

	"github.com/forPelevin/lipsync/internal/types"
)

type AnalyzeRequest struct {
	SpeechPath     string
	TranscriptPath string
	SkipExtended   bool
}

// CueAnalyzer produces mouth cues for a speech recording.
type CueAnalyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (types.Analysis, error)
}

type EncodeRequest struct {
	SpeechPath string
	ScriptPath string
	OutPath    string
}

// VideoEncoder muxes speech audio against a concat script. Every line the
// encoder prints is passed to progress.
type VideoEncoder interface {
	Encode(ctx context.Context, req EncodeRequest, progress func(line string)) error
}

// CueStore persists analyzed cues by fingerprint key. Get returns
// types.ErrCacheMiss when nothing is stored under key. Put is an upsert.
type CueStore interface {
	Get(ctx context.Context, key string) ([]types.MouthCue, error)
	Put(ctx context.Context, key string, cues []types.MouthCue) error
	Close() error
}
