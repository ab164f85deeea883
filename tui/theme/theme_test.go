package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewThemeWithNameFallsBack(t *testing.T) {
	th := NewThemeWithName("does-not-exist")
	assert.Equal(t, newKanagawaColors(), th.Colors)
	assert.True(t, th.UseAlternatingRows)
}

func TestTerminalTheme(t *testing.T) {
	th := NewThemeWithName(" Terminal ")
	assert.Equal(t, newTerminalColors(), th.Colors)
	assert.False(t, th.UseAlternatingRows)
}

func TestGetThemeName(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("MWSTATE_THEME", "terminal")
	assert.Equal(t, "terminal", getThemeName())

	t.Setenv("MWSTATE_THEME", "")
	assert.Equal(t, defaultThemeName, getThemeName())

	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, "terminal", getThemeName())
}
