package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{"warning", WARN, false},
		{"error", ERROR, false},
		{"loud", INFO, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, WARN)

	log.Infof("hidden %d", 1)
	assert.Zero(t, buf.Len())

	log.Errorf("shown %d", 2)
	assert.Contains(t, buf.String(), "ERROR shown 2")
}

func TestNilAndDiscard(t *testing.T) {
	var nilLog *Logger
	nilLog.Errorf("no panic")

	Discard().Errorf("dropped")
}
