package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_CounterBump(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/counter-bump.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestGolden_Ticker(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/ticker.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestGolden_SnapshotIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/counter-bump.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	// Content-addressed seqs and fixed tokens make runs identical.
	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.State, second.State)
}
