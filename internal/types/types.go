package types

// MouthCue is one timed mouth shape as emitted by the analyzer.
type MouthCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Shape string  `json:"value"`
}

// Analysis is the parsed result of a single analyzer run.
type Analysis struct {
	Cues []MouthCue
	// Duration of the analyzed audio in seconds, 0 when the analyzer did not report it.
	Duration float64
	// Diagnostics holds whatever the analyzer wrote to stderr.
	Diagnostics string
}

type Segment struct {
	ImagePath string
	Duration  float64
}

type BatchManifest struct {
	Renders []BatchRender `yaml:"renders"`
}

type BatchRender struct {
	Transcript   string `yaml:"transcript"`
	Speech       string `yaml:"speech"`
	Out          string `yaml:"out"`
	ImageSet     string `yaml:"imgset"`
	SkipExtended bool   `yaml:"skip_extended"`
}
