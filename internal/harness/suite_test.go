package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDir_Testdata(t *testing.T) {
	suite, err := RunDir(context.Background(), filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	assert.True(t, suite.OK(), "failures: %+v", suite.Failures)
	assert.Equal(t, suite.Total, suite.Passed)
	assert.Len(t, suite.Results, suite.Total)
}

func TestRunDir_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	pass := "name: ok\ndescription: d\nsteps:\n  - do: add_slide\n"
	fail := "name: bad\ndescription: d\nsteps:\n  - do: delete_slide\n    id: slide_1\n"
	broken := "name: [\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_ok.yaml"), []byte(pass), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_bad.yml"), []byte(fail), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_broken.yaml"), []byte(broken), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	suite, err := RunDir(context.Background(), dir)
	require.NoError(t, err)

	assert.False(t, suite.OK())
	assert.Equal(t, 3, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 2, suite.Failed)
	require.Len(t, suite.Failures, 2)
	assert.Equal(t, "bad", suite.Failures[0].Name)
	assert.Contains(t, suite.Failures[0].Error, "scenario assertions failed")
	assert.Contains(t, suite.Failures[1].Error, "failed to load scenario")
}

func TestFindScenarios_SingleFile(t *testing.T) {
	path := filepath.Join("testdata", "scenarios", "drag_debounce.yaml")
	files, err := FindScenarios(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestFindScenarios_Missing(t *testing.T) {
	_, err := FindScenarios(filepath.Join(t.TempDir(), "missing"))
	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
}
