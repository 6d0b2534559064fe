package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// SuiteResult summarizes a run of several scenarios.
type SuiteResult struct {
	Total    int                `json:"total"`
	Passed   int                `json:"passed"`
	Failed   int                `json:"failed"`
	Failures []ScenarioFailure  `json:"failures,omitempty"`
	Results  map[string]*Result `json:"-"`
}

// ScenarioFailure represents a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// OK reports whether every scenario passed.
func (r *SuiteResult) OK() bool {
	return r.Failed == 0
}

// FindScenarios returns the scenario files at path: path itself when it is
// a file, or every *.yaml and *.yml file below it when it is a directory,
// sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(p))
		if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// RunDir runs every scenario found at path (see FindScenarios).
//
// For each scenario file:
// 1. Load and validate it
// 2. Run it via harness.Run
// 3. Collect the result
//
// Load and run failures are reported per scenario; the returned error is
// only for an unreadable path.
func RunDir(ctx context.Context, path string, opts ...Option) (*SuiteResult, error) {
	files, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{Results: make(map[string]*Result)}
	for _, file := range files {
		suite.Total++

		scenario, err := LoadScenario(file)
		if err != nil {
			suite.fail(ScenarioFailure{Path: file, Error: fmt.Sprintf("failed to load scenario: %v", err)})
			continue
		}

		result, err := RunContext(ctx, scenario, opts...)
		if err != nil {
			suite.fail(ScenarioFailure{Path: file, Name: scenario.Name, Error: fmt.Sprintf("scenario execution failed: %v", err)})
			continue
		}
		suite.Results[file] = result

		if !result.Pass {
			suite.fail(ScenarioFailure{
				Path:  file,
				Name:  scenario.Name,
				Error: fmt.Sprintf("scenario assertions failed: %s", strings.Join(result.Errors, "; ")),
			})
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

func (r *SuiteResult) fail(f ScenarioFailure) {
	r.Failed++
	r.Failures = append(r.Failures, f)
}
