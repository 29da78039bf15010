// Package selector provides an inline cycling option selector.
package selector

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/greeterm/internal/ui/styles"
)

// Cycling keys. vi-style h/l work alongside the arrows.
var (
	keyPrev = key.NewBinding(key.WithKeys("left", "h"))
	keyNext = key.NewBinding(key.WithKeys("right", "l"))
)

// Option represents a selectable option with label and value.
type Option struct {
	Label string
	Value string
}

// Model holds the selector state.
type Model struct {
	label    string
	options  []Option
	selected int
	focused  bool
}

// New creates a new selector with the given field label and options.
func New(label string, options []Option) Model {
	return Model{
		label:    label,
		options:  options,
		selected: 0,
	}
}

// SetOptions replaces the option list, keeping the current selection when
// its value still exists.
func (m Model) SetOptions(options []Option) Model {
	current := m.Selected().Value
	m.options = options
	m.selected = 0
	if i := FindIndexByValue(options, current); i >= 0 {
		m.selected = i
	}
	return m
}

// SetSelected sets the selected index.
func (m Model) SetSelected(index int) Model {
	if index >= 0 && index < len(m.options) {
		m.selected = index
	}
	return m
}

// SelectValue moves the selection to the option with the given value.
// Unknown values leave the selection unchanged.
func (m Model) SelectValue(value string) Model {
	if i := FindIndexByValue(m.options, value); i >= 0 {
		m.selected = i
	}
	return m
}

// Selected returns the currently selected option.
func (m Model) Selected() Option {
	if m.selected >= 0 && m.selected < len(m.options) {
		return m.options[m.selected]
	}
	return Option{}
}

// Len returns the number of options.
func (m Model) Len() int {
	return len(m.options)
}

// Focus marks the selector as the active field.
func (m Model) Focus() Model {
	m.focused = true
	return m
}

// Blur removes focus.
func (m Model) Blur() Model {
	m.focused = false
	return m
}

// Focused reports whether the selector is the active field.
func (m Model) Focused() bool {
	return m.focused
}

// Update handles messages. Only a focused selector reacts to keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused || len(m.options) == 0 {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyNext):
			m.selected = (m.selected + 1) % len(m.options)
		case key.Matches(msg, keyPrev):
			m.selected = (m.selected - 1 + len(m.options)) % len(m.options)
		}
	}
	return m, nil
}

// View renders the selector as a single "label  ‹ value ›" row.
func (m Model) View() string {
	label := styles.LabelStyle.Render(m.label)

	value := "(none)"
	if opt := m.Selected(); opt.Label != "" {
		value = opt.Label
	}

	valueStyle := lipgloss.NewStyle().Foreground(styles.TextPrimaryColor)
	if m.focused {
		valueStyle = valueStyle.Bold(true)
		return label + " " +
			styles.SelectionIndicatorStyle.Render("< ") +
			valueStyle.Render(value) +
			styles.SelectionIndicatorStyle.Render(" >")
	}
	return label + "   " + valueStyle.Render(value)
}

// FindIndexByValue returns the index of the option with the given value,
// or -1 when absent.
func FindIndexByValue(options []Option, value string) int {
	for i, opt := range options {
		if opt.Value == value {
			return i
		}
	}
	return -1
}
