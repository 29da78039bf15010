package selector

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func options() []Option {
	return []Option{
		{Label: "Sway", Value: "Sway"},
		{Label: "GNOME", Value: "GNOME"},
		{Label: "i3", Value: "i3"},
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestUpdate_CyclesThroughOptions(t *testing.T) {
	m := New("Session", options()).Focus()

	m, _ = m.Update(keyMsg("right"))
	require.Equal(t, "GNOME", m.Selected().Value)

	m, _ = m.Update(keyMsg("right"))
	m, _ = m.Update(keyMsg("right"))
	require.Equal(t, "Sway", m.Selected().Value, "wraps past the end")

	m, _ = m.Update(keyMsg("left"))
	require.Equal(t, "i3", m.Selected().Value, "wraps past the start")
}

func TestUpdate_IgnoredWhenBlurred(t *testing.T) {
	m := New("Session", options())

	m, _ = m.Update(keyMsg("right"))
	require.Equal(t, "Sway", m.Selected().Value)
}

func TestUpdate_EmptyOptions(t *testing.T) {
	m := New("Session", nil).Focus()

	m, _ = m.Update(keyMsg("right"))
	require.Equal(t, Option{}, m.Selected())
}

func TestSelectValue(t *testing.T) {
	m := New("Session", options()).SelectValue("i3")
	require.Equal(t, "i3", m.Selected().Value)

	m = m.SelectValue("unknown")
	require.Equal(t, "i3", m.Selected().Value, "unknown value leaves selection")
}

func TestSetOptions_KeepsSelectionByValue(t *testing.T) {
	m := New("Session", options()).SelectValue("GNOME")

	m = m.SetOptions([]Option{
		{Label: "GNOME", Value: "GNOME"},
		{Label: "KDE", Value: "KDE"},
	})
	require.Equal(t, "GNOME", m.Selected().Value)

	m = m.SetOptions([]Option{{Label: "KDE", Value: "KDE"}})
	require.Equal(t, "KDE", m.Selected().Value, "vanished value resets to first")
}

func TestView_MarksFocus(t *testing.T) {
	m := New("Session", options())
	require.NotContains(t, m.View(), "<")

	focused := m.Focus()
	require.Contains(t, focused.View(), "Sway")
	require.Contains(t, focused.View(), "<")
}

func TestFindIndexByValue(t *testing.T) {
	require.Equal(t, 2, FindIndexByValue(options(), "i3"))
	require.Equal(t, -1, FindIndexByValue(options(), "xfce"))
}
