package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval_StateReference(t *testing.T) {
	path := writeProgramFile(t, "app.json", counterDoc)

	output, err := executeCommand(t, "eval", path, `{"expr":"var","name":"label"}`)
	require.NoError(t, err)
	assert.Equal(t, "idle\n", output)
}

func TestEval_Arithmetic(t *testing.T) {
	path := writeProgramFile(t, "app.json", counterDoc)

	output, err := executeCommand(t, "eval", path,
		`{"expr":"bin","op":"+","left":{"expr":"var","name":"count"},"right":{"expr":"lit","value":40}}`)
	require.NoError(t, err)
	assert.Equal(t, "40\n", output)
}

func TestEval_UndefinedReference(t *testing.T) {
	path := writeProgramFile(t, "app.json", counterDoc)

	output, err := executeCommand(t, "eval", path, `{"expr":"var","name":"missing"}`)
	require.NoError(t, err)
	assert.Equal(t, "undefined\n", output)
}

func TestEval_JSONOutput(t *testing.T) {
	path := writeProgramFile(t, "app.json", counterDoc)

	output, err := executeCommand(t, "--format", "json", "eval", path, `{"expr":"var","name":"count"}`)
	require.NoError(t, err)

	var response struct {
		Status string     `json:"status"`
		Data   EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "ok", response.Status)
	assert.False(t, response.Data.Undefined)
	assert.Equal(t, "0", string(response.Data.Value))
}

func TestEval_JSONOutputMarksUndefined(t *testing.T) {
	path := writeProgramFile(t, "app.json", counterDoc)

	output, err := executeCommand(t, "--format", "json", "eval", path, `{"expr":"var","name":"missing"}`)
	require.NoError(t, err)

	var response struct {
		Data EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.True(t, response.Data.Undefined)
	assert.Equal(t, "null", string(response.Data.Value))
}

func TestEval_BadExpressionIsCommandError(t *testing.T) {
	path := writeProgramFile(t, "app.json", counterDoc)

	_, err := executeCommand(t, "eval", path, `{"expr":"warp"}`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
