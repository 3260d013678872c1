package beads

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/looper/internal/models"
)

func TestCountReady(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty output", "", 0},
		{"whitespace only", "  \n\t\n", 0},
		{"json array", `[{"id":"bd-1"},{"id":"bd-2"}]`, 2},
		{"empty json array", `[]`, 0},
		{"bare count", `3`, 3},
		{"line per item", "bd-1 fix the parser\nbd-2 fix the lock\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := countReady(tt.text)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNewClientDefaultsBinary(t *testing.T) {
	require.Equal(t, DefaultBinary, NewClient("").binary)
	require.Equal(t, "/opt/bin/bd", NewClient("/opt/bin/bd").binary)
}

func TestCheckMissingBinary(t *testing.T) {
	err := NewClient("definitely-not-installed-bd-xyz").Check()
	require.ErrorIs(t, err, models.ErrDependencyMissing)
}
