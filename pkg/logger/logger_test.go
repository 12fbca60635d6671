package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		log, err := New(Config{Level: level, Format: "json"})
		require.NoError(t, err, level)
		assert.NotNil(t, log.Named("test"))
	}
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	log := NewNop().Named("nop").With(String("k", "v"))
	log.Info("discarded", Int("n", 1), Bool("ok", true))
}
