package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			if s.ExpectError != "" {
				_, err := Run(s)
				require.NoError(t, CheckError(s, err))
				return
			}
			result, err := Run(s)
			require.NoError(t, err)
			require.NoError(t, CheckAssertions(s, result))
		})
	}
}

func TestScenarioGolden(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		if s.ExpectError != "" {
			continue
		}
		t.Run(s.Name, func(t *testing.T) {
			// Every non-error scenario has a committed golden file; a
			// missing one fails rather than skips.
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestLoadScenarioDefaultsNameFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nameless.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: sqlite\nquery:\n  name: QRY_x\n  data_source: s\n"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "nameless", s.Name)
}

func TestLoadScenarioRequiresBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nobackend.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nquery:\n  name: QRY_x\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backend")
}

func TestCheckAssertionFailures(t *testing.T) {
	res := &Result{SQL: "SELECT id FROM t LIMIT 10", Limit: 10}

	err := checkOne(Assertion{Type: AssertSQLContains, Value: "DELETE"}, res)
	require.Error(t, err)

	err = checkOne(Assertion{Type: AssertSQLNotContains, Value: "LIMIT"}, res)
	require.Error(t, err)

	err = checkOne(Assertion{Type: AssertLimit, Count: 25}, res)
	require.Error(t, err)

	err = checkOne(Assertion{Type: "bogus"}, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown assertion type")
}

func TestCheckErrorDemandsFailure(t *testing.T) {
	s := &Scenario{Name: "x", ExpectError: "boom"}
	require.Error(t, CheckError(s, nil))
	require.Error(t, CheckError(s, os.ErrNotExist))
	require.NoError(t, CheckError(s, errors.New("kaboom")))
}
