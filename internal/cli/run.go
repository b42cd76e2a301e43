package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forPelevin/lipsync/internal/config"
	"github.com/forPelevin/lipsync/internal/domain/timeline"
	"github.com/forPelevin/lipsync/internal/logging"
	"github.com/forPelevin/lipsync/internal/pipeline"
	"github.com/forPelevin/lipsync/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/lipsync/internal/usecase"
)

// session is what every command needs before it can render.
type session struct {
	settings config.Settings
	logger   zerolog.Logger
	ctx      context.Context
	close    func()
}

func setup(cmd *cobra.Command) (*session, error) {
	configFile, _ := cmd.Flags().GetString("config")
	s, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	stopMetrics := serveMetrics(s.MetricsAddr, logger)
	return &session{
		settings: s,
		logger:   logger,
		ctx:      ctx,
		close: func() {
			stopMetrics()
			stop()
		},
	}, nil
}

func (s *session) renderConfig(transcript, speech, out, imgset string, skipExtended bool) (pipeline.Config, zerolog.Logger) {
	if imgset == "" {
		imgset = s.settings.ImageSet
	}
	id := uuid.NewString()
	log := s.logger.With().Str("render", id).Logger()
	return pipeline.Config{
		TranscriptPath: transcript,
		SpeechPath:     speech,
		OutPath:        out,
		ImageSet:       imgset,
		SkipExtended:   skipExtended,
		ImageRoot:      s.settings.ImageRoot,
		CacheDir:       s.settings.CacheDir,
		CacheURL:       s.settings.CacheURL,
		RhubarbPath:    s.settings.RhubarbPath,
		FFmpegPath:     s.settings.FFmpegPath,
		RenderID:       id,
		Observer:       logging.Observer(log),
	}, log
}

func runRender(cmd *cobra.Command) error {
	transcript, _ := cmd.Flags().GetString("transcript")
	speech, _ := cmd.Flags().GetString("speech")
	out, _ := cmd.Flags().GetString("out")
	skipExtended, _ := cmd.Flags().GetBool("skip-extended")

	s, err := setup(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	cfg, log := s.renderConfig(transcript, speech, out, s.settings.ImageSet, skipExtended)
	res, err := pipeline.Run(s.ctx, cfg)
	if err != nil {
		return err
	}
	logSummary(log, cfg, res)
	return nil
}

func runBatch(cmd *cobra.Command, manifestPath string) error {
	s, err := setup(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	m, err := pipeline.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	cfgs := make([]pipeline.Config, len(m.Renders))
	logs := make([]zerolog.Logger, len(m.Renders))
	for i, r := range m.Renders {
		cfgs[i], logs[i] = s.renderConfig(r.Transcript, r.Speech, r.Out, r.ImageSet, r.SkipExtended)
	}

	s.logger.Info().Int("renders", len(cfgs)).Int("parallel", s.settings.Parallel).Msg("Starting batch")
	results, errs := pipeline.RunBatch(s.ctx, cfgs, s.settings.Parallel)
	for i, err := range errs {
		if err != nil {
			logs[i].Error().Err(err).Str("out", cfgs[i].OutPath).Msg("Render failed")
			continue
		}
		logSummary(logs[i], cfgs[i], results[i])
	}
	return pipeline.JoinErrors(cfgs, errs)
}

func logSummary(log zerolog.Logger, cfg pipeline.Config, res usecase.Result) {
	log.Info().
		Str("out", cfg.OutPath).
		Str("key", res.Key).
		Bool("cache_hit", res.CacheHit).
		Int("cues", len(res.Cues)).
		Float64("seconds", res.Duration).
		Int("frames", timeline.Frames(res.Duration, ffmpeg.FPS)).
		Msg("Render complete")
}

// serveMetrics exposes /metrics until the returned func is called.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
