package toolregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgumentsValidJSON(t *testing.T) {
	args, err := ParseArguments(`{"path": "main.go", "limit": 10}`)
	require.NoError(t, err)
	assert.Equal(t, "main.go", args["path"])
	assert.Equal(t, float64(10), args["limit"])
}

func TestParseArgumentsEmpty(t *testing.T) {
	args, err := ParseArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseArguments("   \n")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestParseArgumentsRepairsMalformedJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"trailing comma", `{"path": "main.go",}`},
		{"single quotes", `{'path': 'main.go'}`},
		{"unquoted keys", `{path: "main.go"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseArguments(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "main.go", args["path"])
		})
	}
}

func TestParseArgumentsUnrepairable(t *testing.T) {
	_, err := ParseArguments(`[1, 2, 3]`)
	assert.Error(t, err, "tool arguments must be an object")
}
