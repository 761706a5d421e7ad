package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	done := OperationTimer("batch", time.Hour, log)
	elapsed := done()

	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"operation":"batch"`)
}

func TestOperationTimer_Slow(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	done := OperationTimer("dashboard", time.Nanosecond, log)
	time.Sleep(time.Millisecond)
	done()

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "Slow operation detected")
}
