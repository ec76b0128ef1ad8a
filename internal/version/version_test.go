package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFillsAllFields(t *testing.T) {
	b := Get()

	assert.NotEmpty(t, b.Release)
	assert.NotEmpty(t, b.Commit)
	assert.NotEmpty(t, b.Date)
}

func TestGetIsStable(t *testing.T) {
	assert.Equal(t, Get(), Get())
}

func TestString(t *testing.T) {
	s := String()

	assert.Contains(t, s, "version=")
	assert.Contains(t, s, "commit=")
	assert.Contains(t, s, "date=")
}

func TestResolveFallsBackToDev(t *testing.T) {
	// Без ldflags и vcs-метаданных остаются дефолты.
	b := resolve()

	assert.NotEmpty(t, b.Release)
	assert.NotEmpty(t, b.Commit)
	assert.NotEmpty(t, b.Date)
}
