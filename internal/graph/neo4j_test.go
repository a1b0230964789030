package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/moat-scoring/pkg/config"
)

func TestNewNeo4jSource_DisabledWithoutURI(t *testing.T) {
	src, err := NewNeo4jSource(context.Background(), config.GraphConfig{})
	require.NoError(t, err)
	assert.Nil(t, src)
	assert.NoError(t, src.Close(context.Background()))
}

func TestToCentrality(t *testing.T) {
	testCases := []struct {
		name     string
		input    any
		expected *float64
		wantErr  bool
	}{
		{name: "absent", input: nil, expected: nil},
		{name: "float", input: 0.42, expected: ptr(0.42)},
		{name: "integer", input: int64(1), expected: ptr(1)},
		{name: "negative clamps to zero", input: -0.3, expected: ptr(0)},
		{name: "above one clamps", input: 3.5, expected: ptr(1)},
		{name: "string is rejected", input: "high", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := toCentrality(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func ptr(f float64) *float64 { return &f }
