// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the greeter.
type KeyMap struct {
	// Navigation
	NextField key.Binding
	PrevField key.Binding

	// Actions
	Enter       key.Binding
	Escape      key.Binding
	EditCommand key.Binding

	// System
	Reboot   key.Binding
	Poweroff key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "log in"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		EditCommand: key.NewBinding(
			key.WithKeys("f4"),
			key.WithHelp("f4", "edit command"),
		),
		Reboot: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("f2", "reboot"),
		),
		Poweroff: key.NewBinding(
			key.WithKeys("f3"),
			key.WithHelp("f3", "power off"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}
