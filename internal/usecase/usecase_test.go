package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/forPelevin/lipsync/internal/domain/fingerprint"
	"github.com/forPelevin/lipsync/internal/ports"
	"github.com/forPelevin/lipsync/internal/types"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	an    types.Analysis
	err   error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ ports.AnalyzeRequest) (types.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.an, f.err
}

type fakeEncoder struct {
	mu    sync.Mutex
	reqs  []ports.EncodeRequest
	lines []string
	err   error
}

func (f *fakeEncoder) Encode(_ context.Context, req ports.EncodeRequest, progress func(string)) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	for _, l := range f.lines {
		progress(l)
	}
	return f.err
}

type memStore struct {
	mu     sync.Mutex
	m      map[string][]types.MouthCue
	puts   int
	getErr error
	putErr error
}

func newMemStore() *memStore { return &memStore{m: map[string][]types.MouthCue{}} }

func (s *memStore) Get(_ context.Context, key string) ([]types.MouthCue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	c, ok := s.m[key]
	if !ok {
		return nil, types.ErrCacheMiss
	}
	return c, nil
}

func (s *memStore) Put(_ context.Context, key string, cues []types.MouthCue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.m[key] = cues
	return nil
}

func (s *memStore) Close() error { return nil }

type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) observe(ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) stages() []types.Stage {
	var out []types.Stage
	for _, ev := range r.events {
		if ev.Enter {
			out = append(out, ev.Stage)
		}
	}
	return out
}

func (r *recorder) has(level types.Level, substr string) bool {
	for _, ev := range r.events {
		if ev.Level == level && strings.Contains(ev.Message+" "+ev.Detail, substr) {
			return true
		}
	}
	return false
}

func testCues() []types.MouthCue {
	return []types.MouthCue{
		{Start: 0.0, End: 0.5, Shape: "X"},
		{Start: 0.5, End: 1.2, Shape: "A"},
	}
}

func testInput(t *testing.T, rec *recorder) Input {
	t.Helper()
	tmp := t.TempDir()
	speech := filepath.Join(tmp, "speech.wav")
	transcript := filepath.Join(tmp, "transcript.txt")
	if err := os.WriteFile(speech, []byte("RIFF fake wav"), 0o644); err != nil {
		t.Fatalf("write speech: %v", err)
	}
	if err := os.WriteFile(transcript, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return Input{
		TranscriptPath: transcript,
		SpeechPath:     speech,
		OutPath:        filepath.Join(tmp, "out.mp4"),
		ImageRoot:      "img",
		ImageSet:       "pixel",
		ScriptDir:      filepath.Join(tmp, "scripts"),
		Observer:       rec.observe,
	}
}

func stageList(s []types.Stage) string {
	parts := make([]string, len(s))
	for i, st := range s {
		parts[i] = string(st)
	}
	return strings.Join(parts, ",")
}

func TestRender_AnalyzesThenCaches(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	an := &fakeAnalyzer{an: types.Analysis{Cues: testCues()}}
	enc := &fakeEncoder{lines: []string{"frame=1", "frame=2"}}
	store := newMemStore()
	uc := New(Deps{Analyzer: an, Encoder: enc, Cache: store})

	res, err := uc.Render(context.Background(), in)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := stageList(rec.stages()); got != "START,FINGERPRINTING,ANALYZING,COMPILING,SERIALIZING,ENCODING,DONE" {
		t.Fatalf("unexpected stage sequence: %s", got)
	}
	if res.CacheHit {
		t.Fatalf("expected a cache miss on first render")
	}
	if res.RenderID == "" {
		t.Fatalf("expected a render id")
	}
	if an.calls != 1 {
		t.Fatalf("expected 1 analyzer call, got %d", an.calls)
	}
	if store.puts != 1 {
		t.Fatalf("expected 1 cache write, got %d", store.puts)
	}
	if len(enc.reqs) != 1 {
		t.Fatalf("expected 1 encode, got %d", len(enc.reqs))
	}
	if enc.reqs[0].SpeechPath != in.SpeechPath || enc.reqs[0].OutPath != in.OutPath || enc.reqs[0].ScriptPath != res.ScriptPath {
		t.Fatalf("unexpected encode request: %+v", enc.reqs[0])
	}
	if !rec.has(types.LevelInfo, "frame=2") {
		t.Fatalf("expected encoder progress forwarded at info level")
	}

	b, err := os.ReadFile(res.ScriptPath)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	want := "ffconcat version 1.0\nfile img/pixel/X.jpg\nduration 0.5\nfile img/pixel/A.jpg\nduration 0.7"
	if string(b) != want {
		t.Fatalf("unexpected script:\n%s", b)
	}
	if !strings.HasSuffix(res.ScriptPath, res.Key+"-pixel.ffconcat") {
		t.Fatalf("unexpected script name: %s", res.ScriptPath)
	}
}

// Scenario D and the idempotence property: a second render of the same input
// never calls the analyzer.
func TestRender_SecondRunUsesCache(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	an := &fakeAnalyzer{an: types.Analysis{Cues: testCues()}}
	store := newMemStore()
	uc := New(Deps{Analyzer: an, Encoder: &fakeEncoder{}, Cache: store})

	if _, err := uc.Render(context.Background(), in); err != nil {
		t.Fatalf("first render: %v", err)
	}
	rec.events = nil

	res, err := uc.Render(context.Background(), in)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if an.calls != 1 {
		t.Fatalf("expected analyzer to run once in total, got %d", an.calls)
	}
	if !res.CacheHit {
		t.Fatalf("expected cache hit")
	}
	if got := stageList(rec.stages()); got != "START,FINGERPRINTING,CACHE_HIT,COMPILING,SERIALIZING,ENCODING,DONE" {
		t.Fatalf("unexpected stage sequence: %s", got)
	}
}

func TestRender_PrepopulatedCacheSkipsAnalyzer(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	fp, err := fingerprint.Compute(in.SpeechPath, in.TranscriptPath, in.SkipExtended)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	store := newMemStore()
	store.m[fp.Key] = testCues()
	an := &fakeAnalyzer{err: errors.New("must not be called")}

	res, err := New(Deps{Analyzer: an, Encoder: &fakeEncoder{}, Cache: store}).Render(context.Background(), in)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if an.calls != 0 {
		t.Fatalf("analyzer was invoked %d times", an.calls)
	}
	if len(res.Segments) != 2 || res.Duration != 0.5+0.7 {
		t.Fatalf("unexpected timeline: %+v (%.2fs)", res.Segments, res.Duration)
	}
}

func TestRender_ChangedOptionsMissTheCache(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	an := &fakeAnalyzer{an: types.Analysis{Cues: testCues()}}
	uc := New(Deps{Analyzer: an, Encoder: &fakeEncoder{}, Cache: newMemStore()})

	if _, err := uc.Render(context.Background(), in); err != nil {
		t.Fatalf("render: %v", err)
	}
	in.SkipExtended = true
	if _, err := uc.Render(context.Background(), in); err != nil {
		t.Fatalf("render: %v", err)
	}
	in.ImageSet = "robot"
	if _, err := uc.Render(context.Background(), in); err != nil {
		t.Fatalf("render: %v", err)
	}
	if an.calls != 2 {
		t.Fatalf("expected a new analysis only for the changed shape set, got %d calls", an.calls)
	}
}

// Scenario C.
func TestRender_MalformedAnalyzerOutput(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	store := newMemStore()
	enc := &fakeEncoder{}
	an := &fakeAnalyzer{err: types.ErrMalformedOutput}

	_, err := New(Deps{Analyzer: an, Encoder: enc, Cache: store}).Render(context.Background(), in)
	var rerr *types.RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if rerr.Stage != types.StageAnalyzing {
		t.Fatalf("expected failure at ANALYZING, got %s", rerr.Stage)
	}
	if !errors.Is(err, types.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput cause, got %v", err)
	}
	if store.puts != 0 {
		t.Fatalf("expected no cache write, got %d", store.puts)
	}
	if len(enc.reqs) != 0 {
		t.Fatalf("encoder must not run after a failed analysis")
	}
	stages := rec.stages()
	if stages[len(stages)-1] != types.StageFailed {
		t.Fatalf("expected final FAILED notification, got %s", stageList(stages))
	}
	if !rec.has(types.LevelError, "analyzing") {
		t.Fatalf("expected failure notification naming the stage")
	}
}

func TestRender_AnalyzerDiagnosticsAreNotFatal(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	an := &fakeAnalyzer{an: types.Analysis{Cues: testCues(), Diagnostics: "WARNING: low volume"}}

	if _, err := New(Deps{Analyzer: an, Encoder: &fakeEncoder{}, Cache: newMemStore()}).Render(context.Background(), in); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !rec.has(types.LevelWarn, "low volume") {
		t.Fatalf("expected diagnostics surfaced as a warning")
	}
}

func TestRender_CacheFailuresAreNotFatal(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	store := newMemStore()
	store.getErr = types.ErrCacheUnreachable
	store.putErr = types.ErrCacheWrite
	an := &fakeAnalyzer{an: types.Analysis{Cues: testCues()}}

	res, err := New(Deps{Analyzer: an, Encoder: &fakeEncoder{}, Cache: store}).Render(context.Background(), in)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.CacheHit || an.calls != 1 {
		t.Fatalf("expected fallback to analysis")
	}
	if !rec.has(types.LevelWarn, "lookup failed") || !rec.has(types.LevelWarn, "Failed to write cue cache") {
		t.Fatalf("expected both cache failures reported as warnings, got %+v", rec.events)
	}
}

func TestRender_CompileFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	an := &fakeAnalyzer{an: types.Analysis{Cues: []types.MouthCue{{Start: 1, End: 1, Shape: "A"}}}}
	enc := &fakeEncoder{}

	_, err := New(Deps{Analyzer: an, Encoder: enc, Cache: newMemStore()}).Render(context.Background(), in)
	var rerr *types.RenderError
	if !errors.As(err, &rerr) || rerr.Stage != types.StageCompiling {
		t.Fatalf("expected COMPILING failure, got %v", err)
	}
	if !errors.Is(err, types.ErrNegativeDuration) {
		t.Fatalf("expected ErrNegativeDuration, got %v", err)
	}
	if len(enc.reqs) != 0 {
		t.Fatalf("encoder must not run")
	}
}

func TestRender_EncodeFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	an := &fakeAnalyzer{an: types.Analysis{Cues: testCues()}}
	enc := &fakeEncoder{err: types.ErrEncodeFailed}

	_, err := New(Deps{Analyzer: an, Encoder: enc, Cache: newMemStore()}).Render(context.Background(), in)
	var rerr *types.RenderError
	if !errors.As(err, &rerr) || rerr.Stage != types.StageEncoding {
		t.Fatalf("expected ENCODING failure, got %v", err)
	}
}

func TestRender_MissingSpeechFailsFingerprinting(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	in.SpeechPath = filepath.Join(t.TempDir(), "gone.wav")

	_, err := New(Deps{Analyzer: &fakeAnalyzer{}, Encoder: &fakeEncoder{}, Cache: newMemStore()}).Render(context.Background(), in)
	var rerr *types.RenderError
	if !errors.As(err, &rerr) || rerr.Stage != types.StageFingerprinting {
		t.Fatalf("expected FINGERPRINTING failure, got %v", err)
	}
}

func TestRender_EmptyCuesProduceHeaderOnlyScript(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	an := &fakeAnalyzer{an: types.Analysis{Cues: []types.MouthCue{}}}

	res, err := New(Deps{Analyzer: an, Encoder: &fakeEncoder{}, Cache: newMemStore()}).Render(context.Background(), in)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := os.ReadFile(res.ScriptPath)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if string(b) != "ffconcat version 1.0" {
		t.Fatalf("expected header-only script, got %q", b)
	}
	if !rec.has(types.LevelWarn, "empty") {
		t.Fatalf("expected empty timeline warning")
	}
}

func TestRender_EachStageAnnouncedOnce(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	in := testInput(t, rec)
	an := &fakeAnalyzer{an: types.Analysis{Cues: testCues(), Diagnostics: "note"}}
	enc := &fakeEncoder{lines: []string{"a", "b", "c"}}

	if _, err := New(Deps{Analyzer: an, Encoder: enc, Cache: newMemStore()}).Render(context.Background(), in); err != nil {
		t.Fatalf("render: %v", err)
	}
	seen := map[types.Stage]int{}
	for _, st := range rec.stages() {
		seen[st]++
	}
	for st, n := range seen {
		if n != 1 {
			t.Fatalf("stage %s announced %d times", st, n)
		}
	}
}

func TestRender_ConcurrentRequests(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	an := &fakeAnalyzer{an: types.Analysis{Cues: testCues()}}
	uc := New(Deps{Analyzer: an, Encoder: &fakeEncoder{}, Cache: store})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		rec := &recorder{}
		in := testInput(t, rec)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Render(context.Background(), in)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("render: %v", err)
		}
	}
}

func TestScriptName(t *testing.T) {
	if got := scriptName("abc", "Pixel Art!"); got != "abc-pixel-art.ffconcat" {
		t.Fatalf("unexpected name: %s", got)
	}
	if got := scriptName("abc", ""); got != "abc-pixel.ffconcat" {
		t.Fatalf("unexpected default name: %s", got)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Set  ": "my-cool-set",
		"___":             "",
		"abc123":          "abc123",
		"Name (v2)!":      "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}
