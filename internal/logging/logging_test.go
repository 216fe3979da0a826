package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInit_DebugFalseSetsInfoLevel(t *testing.T) {
	Init(false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestInit_DebugTrueSetsDebugLevel(t *testing.T) {
	Init(true)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestWith_AttachesSessionIDField(t *testing.T) {
	var buf bytes.Buffer
	logger := With("sess-123").Output(&buf)
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"session_id":"sess-123"`)
}
