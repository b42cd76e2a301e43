package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/lipsync/internal/domain/timeline"
	"github.com/forPelevin/lipsync/internal/metrics"
	"github.com/forPelevin/lipsync/internal/ports"
	"github.com/forPelevin/lipsync/internal/ports/adapters/cuestore"
	"github.com/forPelevin/lipsync/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/lipsync/internal/ports/adapters/rhubarb"
	"github.com/forPelevin/lipsync/internal/types"
	"github.com/forPelevin/lipsync/internal/usecase"
)

type Config struct {
	TranscriptPath string
	SpeechPath     string
	OutPath        string
	ImageSet       string
	SkipExtended   bool

	// ImageRoot holds one directory per image set. If empty, defaults to "img".
	ImageRoot string

	// CacheDir is the base directory for local artifacts (cues, concat scripts).
	// If empty, defaults to ".cache".
	CacheDir string
	// CacheURL selects the cue cache backend, see cuestore.Open.
	CacheURL string

	RhubarbPath string
	FFmpegPath  string

	RenderID string
	Observer types.Observer
}

func (c Config) Validate() error {
	if err := checkInputFile("transcript", c.TranscriptPath); err != nil {
		return err
	}
	if err := checkInputFile("speech", c.SpeechPath); err != nil {
		return err
	}
	if c.OutPath == "" {
		return errors.New("out is empty")
	}
	if fi, err := os.Stat(c.OutPath); err == nil && fi.IsDir() {
		return fmt.Errorf("out %s is a directory", c.OutPath)
	}
	set := strings.TrimSpace(c.ImageSet)
	if set == "" {
		return errors.New("image set is empty")
	}
	if strings.ContainsAny(set, `/\`) || set == "." || set == ".." {
		return fmt.Errorf("image set %q must be a single directory name", c.ImageSet)
	}
	if _, _, err := cuestore.ParseURL(c.CacheURL); err != nil {
		return err
	}
	return nil
}

func checkInputFile(name, path string) error {
	if path == "" {
		return fmt.Errorf("%s is empty", name)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s %s is not a regular file", name, path)
	}
	return nil
}

// Run validates cfg and renders one video. The cue cache is opened for the
// duration of the call; if it cannot be reached the render continues
// without caching.
func Run(ctx context.Context, cfg Config) (usecase.Result, error) {
	if err := cfg.Validate(); err != nil {
		return usecase.Result{}, failBeforeRender(cfg.Observer, fmt.Errorf("config: %w", err))
	}

	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	imageRoot := cfg.ImageRoot
	if imageRoot == "" {
		imageRoot = timeline.DefaultImageRoot
	}
	// ffmpeg resolves script entries relative to the script, not the cwd
	absRoot, err := filepath.Abs(imageRoot)
	if err != nil {
		return usecase.Result{}, failBeforeRender(cfg.Observer, fmt.Errorf("image root: %w", err))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutPath), 0o755); err != nil {
		return usecase.Result{}, failBeforeRender(cfg.Observer, fmt.Errorf("create output dir: %w", err))
	}

	store := openStore(ctx, cfg.CacheURL, filepath.Join(baseCache, "cues"), cfg.Observer)
	defer store.Close()

	uc := usecase.New(usecase.Deps{
		Analyzer: rhubarb.New(cfg.RhubarbPath),
		Encoder:  ffmpeg.New(cfg.FFmpegPath),
		Cache:    store,
	})
	return uc.Render(ctx, usecase.Input{
		RenderID:       cfg.RenderID,
		TranscriptPath: cfg.TranscriptPath,
		SpeechPath:     cfg.SpeechPath,
		OutPath:        cfg.OutPath,
		ImageRoot:      filepath.ToSlash(absRoot),
		ImageSet:       strings.TrimSpace(cfg.ImageSet),
		SkipExtended:   cfg.SkipExtended,
		ScriptDir:      filepath.Join(baseCache, "scripts"),
		Observer:       cfg.Observer,
	})
}

// failBeforeRender reports a failure that happened before the render started
// the same way the render reports its own: as a FAILED event and a RenderError.
func failBeforeRender(obs types.Observer, err error) error {
	metrics.RenderFinished(err)
	obs.Notify(types.Event{
		Stage:   types.StageFailed,
		Level:   types.LevelError,
		Message: fmt.Sprintf("Render failed while %s", types.StageStart),
		Detail:  err.Error(),
		Enter:   true,
	})
	return &types.RenderError{Stage: types.StageStart, Err: err}
}

func openStore(ctx context.Context, rawURL, defaultDir string, obs types.Observer) ports.CueStore {
	store, err := cuestore.Open(ctx, rawURL, defaultDir)
	if err != nil {
		obs.Notify(types.Event{
			Stage:   types.StageStart,
			Level:   types.LevelWarn,
			Message: "Cue cache unavailable, rendering without it",
			Detail:  err.Error(),
		})
		return cuestore.Nop{}
	}
	return store
}

// ensure adapters implement ports
var _ ports.CueAnalyzer = (*rhubarb.Adapter)(nil)
var _ ports.VideoEncoder = (*ffmpeg.Adapter)(nil)
