package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/forPelevin/lipsync/internal/types"
	"github.com/forPelevin/lipsync/internal/usecase"
)

// LoadManifest reads a batch manifest; unknown keys are an error. Relative paths inside it are resolved
// against the manifest's directory.
func LoadManifest(path string) (types.BatchManifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.BatchManifest{}, fmt.Errorf("read manifest: %w", err)
	}
	defer f.Close()

	var m types.BatchManifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return types.BatchManifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Renders) == 0 {
		return types.BatchManifest{}, fmt.Errorf("manifest %s has no renders", path)
	}
	dir := filepath.Dir(path)
	for i := range m.Renders {
		r := &m.Renders[i]
		r.Transcript = resolve(dir, r.Transcript)
		r.Speech = resolve(dir, r.Speech)
		r.Out = resolve(dir, r.Out)
	}
	return m, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// RunBatch renders every config with at most parallel renders in flight.
// A failed render does not stop the others; errs[i] is the outcome of cfgs[i].
func RunBatch(ctx context.Context, cfgs []Config, parallel int) (results []usecase.Result, errs []error) {
	if parallel <= 0 {
		parallel = 1
	}
	results = make([]usecase.Result, len(cfgs))
	errs = make([]error, len(cfgs))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, cfg := range cfgs {
		g.Go(func() error {
			results[i], errs[i] = Run(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

// JoinErrors lists every failed render, or returns nil when all succeeded.
func JoinErrors(cfgs []Config, errs []error) error {
	var failed []error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, fmt.Errorf("render %d (%s): %w", i+1, cfgs[i].OutPath, err))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d renders failed:\n%w", len(failed), len(cfgs), errors.Join(failed...))
}
