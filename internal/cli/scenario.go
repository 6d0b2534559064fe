package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/hotspot/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	GoldenDir string // compare snapshots against <dir>/<name>.golden
	Update    bool   // rewrite golden files instead of comparing
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioReport is the overall result of the scenario command.
type ScenarioReport struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file-or-dir>",
		Short: "Run scripted editing scenarios",
		Long: `Run scripted editing scenarios against an in-memory row store.

Each scenario drives a real editing session with a virtual clock, so
debounce windows are exact and runs are reproducible. With --golden-dir the
trace of every scenario is also compared against <dir>/<name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  hotspot scenario ./scenarios
  hotspot scenario ./scenarios/drag.yaml --golden-dir ./golden
  hotspot scenario ./scenarios --golden-dir ./golden --update
  hotspot scenario ./scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "directory of golden snapshots")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files")
	return cmd
}

func runScenarios(opts *ScenarioOptions, path string, cmd *cobra.Command) error {
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden-dir")
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())

	suite, err := harness.RunDir(cmd.Context(), path, harness.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	report := ScenarioReport{Scenarios: []ScenarioOutcome{}, Total: suite.Total}
	failed := make(map[string]harness.ScenarioFailure, len(suite.Failures))
	for _, f := range suite.Failures {
		failed[f.Path] = f
	}

	files := make([]string, 0, suite.Total)
	for file := range suite.Results {
		files = append(files, file)
	}
	for file := range failed {
		if _, ok := suite.Results[file]; !ok {
			files = append(files, file)
		}
	}
	sort.Strings(files)

	for _, file := range files {
		outcome := ScenarioOutcome{Path: file, Pass: true}
		if f, ok := failed[file]; ok {
			outcome.Name = f.Name
			outcome.Pass = false
			outcome.Errors = append(outcome.Errors, f.Error)
		}
		if result, ok := suite.Results[file]; ok {
			outcome.Name = result.Name
			if opts.GoldenDir != "" {
				if err := checkGolden(opts, result); err != nil {
					outcome.Pass = false
					outcome.Errors = append(outcome.Errors, err.Error())
				}
			}
		}
		if outcome.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Scenarios = append(report.Scenarios, outcome)
	}

	out := opts.formatter(cmd)
	if err := out.Success(report, func(w io.Writer) { writeScenarioText(w, report) }); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", report.Failed, report.Total))
	}
	return nil
}

// checkGolden compares the snapshot of result with its golden file, or
// rewrites the file with --update.
func checkGolden(opts *ScenarioOptions, result *harness.Result) error {
	path := filepath.Join(opts.GoldenDir, result.Name+".golden")
	snapshot := harness.Snapshot(result.Name, result)

	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, snapshot, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(want, snapshot) {
		return fmt.Errorf("snapshot differs from %s", path)
	}
	return nil
}

func writeScenarioText(w io.Writer, report ScenarioReport) {
	if report.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range report.Scenarios {
		name := s.Name
		if name == "" {
			name = filepath.Base(s.Path)
		}
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)
}
