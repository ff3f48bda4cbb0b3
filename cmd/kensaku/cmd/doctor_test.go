package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCommand(t *testing.T) {
	isolateEnv(t)

	out, err := runCommand(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "Kensaku System Check")
	assert.Contains(t, out, "[PASS] data_dir_writable")
	assert.Contains(t, out, "[PASS] tokenizer_dictionary")
	assert.Contains(t, out, "[PASS] storage_roundtrip")
}

func TestDoctorCommand_JSON(t *testing.T) {
	isolateEnv(t)

	out, err := runCommand(t, "doctor", "--json")
	require.NoError(t, err)

	var output DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &output))
	assert.Equal(t, "ready", output.Status)
	assert.Len(t, output.Checks, 4)
	assert.Empty(t, output.Errors)

	names := make([]string, 0, len(output.Checks))
	for _, c := range output.Checks {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "store_consistency")
}
