package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected uint64
	}{
		{"2GB", 2 * GB},
		{"2gb", 2 * GB},
		{"2GiB", 2 * GB},
		{"512MB", 512 * MB},
		{"100KB", 100 * KB},
		{"1.5GB", GB + GB/2},
		{"0B", 0},
		{"1TB", TB},
		{" 10 MB ", 10 * MB},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{"", "GB", "12", "-1GB", "1XB", "abcGB"}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "2.0GB", Format(2*GB))
	assert.Equal(t, "1.5GB", Format(GB+GB/2))
	assert.Equal(t, "512.0MB", Format(512*MB))
	assert.Equal(t, "100B", Format(100))
	assert.Equal(t, "1.0TB", Format(TB))
}
