package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/forPelevin/lipsync/internal/config"
)

func Main() {
	config.LoadDotEnv() // best-effort: load .env if present

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	d := config.Defaults()

	root := &cobra.Command{
		Use:          "lipsync -t <transcript> -s <speech> -o <out.mp4>",
		Short:        "Render a lip-synced mouth animation video from a speech recording",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd)
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceErrors = true

	// Render flags
	root.Flags().StringP("transcript", "t", "", "Dialog transcript (plain text)")
	root.Flags().StringP("speech", "s", "", "Speech recording (wav or ogg)")
	root.Flags().StringP("out", "o", "", "Output video path")
	root.Flags().StringP("imgset", "i", d.ImageSet, "Image set directory under the image root")
	root.Flags().Bool("skip-extended", false, "Only use the basic mouth shapes A-F")
	_ = root.MarkFlagRequired("transcript")
	_ = root.MarkFlagRequired("speech")
	_ = root.MarkFlagRequired("out")

	// Tools and plumbing, shared with subcommands
	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default lipsync.yaml in . or $HOME/.config/lipsync)")
	pf.String("image-root", d.ImageRoot, "Directory holding the image sets")
	pf.String("cache-dir", d.CacheDir, "Directory for cached cues and concat scripts")
	pf.String("cache-url", d.CacheURL, "Cue cache backend: file://, sqlite://, redis://, postgres:// or none")
	pf.String("rhubarb", d.RhubarbPath, "Path to the rhubarb executable")
	pf.String("ffmpeg", d.FFmpegPath, "Path to the ffmpeg executable")
	pf.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")
	pf.String("log-format", d.LogFormat, "Log format: console or json")
	pf.String("metrics-addr", d.MetricsAddr, "Serve prometheus metrics on this address (disabled when empty)")
	pf.Int("parallel", d.Parallel, "Concurrent renders in batch mode")

	root.AddCommand(newBatchCmd())
	return root
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Render every entry of a YAML manifest concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args[0])
		},
	}
	return cmd
}
