package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/lipsync/internal/domain/fingerprint"
	"github.com/forPelevin/lipsync/internal/domain/timeline"
	"github.com/forPelevin/lipsync/internal/metrics"
	"github.com/forPelevin/lipsync/internal/ports"
	"github.com/forPelevin/lipsync/internal/types"
)

type Deps struct {
	Analyzer ports.CueAnalyzer
	Encoder  ports.VideoEncoder
	Cache    ports.CueStore
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	RenderID       string
	TranscriptPath string
	SpeechPath     string
	OutPath        string
	ImageRoot      string
	ImageSet       string
	SkipExtended   bool
	// ScriptDir receives the generated concat scripts.
	ScriptDir string
	Observer  types.Observer
}

type Result struct {
	RenderID   string
	Key        string
	CacheHit   bool
	Cues       []types.MouthCue
	Segments   []types.Segment
	ScriptPath string
	// Duration of the compiled timeline in seconds.
	Duration float64
}

// Render runs one request through
// START → FINGERPRINTING → CACHE_HIT|ANALYZING → COMPILING → SERIALIZING → ENCODING → DONE.
// Any fatal error ends in FAILED and is returned as *types.RenderError.
func (u Usecase) Render(ctx context.Context, in Input) (Result, error) {
	if in.RenderID == "" {
		in.RenderID = uuid.NewString()
	}
	r := &run{obs: in.Observer}
	res, err := u.render(ctx, in, r)
	r.finish()
	metrics.RenderFinished(err)
	if err != nil {
		var rerr *types.RenderError
		if !errors.As(err, &rerr) {
			rerr = &types.RenderError{Stage: r.stage, Err: err}
		}
		r.obs.Notify(types.Event{
			Stage:   types.StageFailed,
			Level:   types.LevelError,
			Message: fmt.Sprintf("Render failed while %s", rerr.Stage),
			Detail:  rerr.Err.Error(),
			Enter:   true,
		})
		return res, rerr
	}
	return res, nil
}

func (u Usecase) render(ctx context.Context, in Input, r *run) (Result, error) {
	res := Result{RenderID: in.RenderID}
	r.enter(types.StageStart, "About to begin")

	r.enter(types.StageFingerprinting, "Fingerprinting speech audio")
	fp, err := fingerprint.Compute(in.SpeechPath, in.TranscriptPath, in.SkipExtended)
	if err != nil {
		return res, err
	}
	res.Key = fp.Key
	r.info("Fingerprint computed", fp.Key)

	cues, err := u.d.Cache.Get(ctx, fp.Key)
	if err == nil {
		metrics.CacheLookup("hit")
		res.CacheHit = true
		r.enter(types.StageCacheHit, "Skipping analysis, this speech file has already been scanned")
	} else {
		// a broken cache only costs a re-analysis
		if errors.Is(err, types.ErrCacheMiss) {
			metrics.CacheLookup("miss")
		} else {
			metrics.CacheLookup("error")
			r.warn("Cue cache lookup failed, analyzing instead", err.Error())
		}
		if cues, err = u.analyze(ctx, in, fp.Key, r); err != nil {
			return res, err
		}
	}
	res.Cues = cues

	r.enter(types.StageCompiling, "Converting mouth shapes to timeline")
	segs, err := timeline.Compile(cues, in.ImageRoot, in.ImageSet)
	if err != nil {
		return res, err
	}
	res.Segments = segs
	res.Duration = timeline.Total(segs)
	if len(segs) == 0 {
		r.warn("Timeline is empty, the video will have no frames", "")
	}

	r.enter(types.StageSerializing, "Writing concat script")
	res.ScriptPath = filepath.Join(in.ScriptDir, scriptName(fp.Key, in.ImageSet))
	if err := writeScript(res.ScriptPath, timeline.RenderConcat(segs)); err != nil {
		return res, err
	}
	r.info(fmt.Sprintf("Timeline: %d segments, %.3fs", len(segs), res.Duration), res.ScriptPath)

	r.enter(types.StageEncoding, "Encoding video")
	err = u.d.Encoder.Encode(ctx, ports.EncodeRequest{
		SpeechPath: in.SpeechPath,
		ScriptPath: res.ScriptPath,
		OutPath:    in.OutPath,
	}, func(line string) {
		r.info("Encoding video...", line)
	})
	if err != nil {
		return res, err
	}

	r.enter(types.StageDone, "Finished! Video available at "+in.OutPath)
	return res, nil
}

func (u Usecase) analyze(ctx context.Context, in Input, key string, r *run) ([]types.MouthCue, error) {
	r.enter(types.StageAnalyzing, "Parsing mouth shapes from audio")
	an, err := u.d.Analyzer.Analyze(ctx, ports.AnalyzeRequest{
		SpeechPath:     in.SpeechPath,
		TranscriptPath: in.TranscriptPath,
		SkipExtended:   in.SkipExtended,
	})
	if err != nil {
		return nil, err
	}
	if an.Diagnostics != "" {
		r.warn("Analyzer reported diagnostics", an.Diagnostics)
	}
	r.info(fmt.Sprintf("Successfully parsed %d mouth shapes", len(an.Cues)), "")

	if err := u.d.Cache.Put(ctx, key, an.Cues); err != nil {
		r.warn("Failed to write cue cache", err.Error())
	}
	return an.Cues, nil
}

func scriptName(key, imageSet string) string {
	set := normalizePathSegment(imageSet)
	if set == "" {
		set = timeline.DefaultImageSet
	}
	return fmt.Sprintf("%s-%s.ffconcat", key, set)
}

func writeScript(path, script string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// run tracks the current stage and how long it has taken.
type run struct {
	obs     types.Observer
	stage   types.Stage
	entered time.Time
}

func (r *run) enter(stage types.Stage, msg string) {
	r.finish()
	r.stage = stage
	r.entered = time.Now()
	r.obs.Notify(types.Event{Stage: stage, Level: types.LevelInfo, Message: msg, Enter: true})
}

func (r *run) finish() {
	if r.stage != "" && !r.entered.IsZero() {
		metrics.ObserveStage(r.stage, time.Since(r.entered))
		r.entered = time.Time{}
	}
}

func (r *run) info(msg, detail string) {
	r.obs.Notify(types.Event{Stage: r.stage, Level: types.LevelInfo, Message: msg, Detail: detail})
}

func (r *run) warn(msg, detail string) {
	r.obs.Notify(types.Event{Stage: r.stage, Level: types.LevelWarn, Message: msg, Detail: detail})
}
