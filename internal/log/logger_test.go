package log_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listarchive/internal/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Level
	}{
		{"trace", log.TRACE},
		{"DEBUG", log.DEBUG},
		{"", log.INFO},
		{"warning", log.WARN},
		{"err", log.ERROR},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := log.ParseLevel(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.expected, level)
		})
	}

	_, err := log.ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log.Init(&buf, log.WARN)
	t.Cleanup(func() { log.Init(nil, log.INFO) })

	l := log.NewLogger("archive")
	l.Infof("ingested %d", 3)
	l.Warnf("orphan %s left unresolved", "abc")

	out := buf.String()
	assert.NotContains(t, out, "ingested")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "[archive] orphan abc left unresolved")
}
