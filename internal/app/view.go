package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/greeterm/internal/controller"
	"github.com/zjrosen/greeterm/internal/ui/styles"
)

// formWidth is the inner width of the login box.
const formWidth = 48

// View renders the greeter.
func (m Model) View() string {
	status := m.ctrl.Status()

	var rows []string
	if m.cfg.Greeting != "" {
		rows = append(rows, styles.GreetingStyle.Render(m.cfg.Greeting), "")
	}

	rows = append(rows, m.userSel.View())
	if m.useCommand {
		rows = append(rows, styles.LabelStyle.Render("Command")+" "+m.cmdInput.View())
	} else {
		rows = append(rows, m.sessSel.View())
	}

	if prompt := m.promptRows(status); len(prompt) > 0 {
		rows = append(rows, "")
		rows = append(rows, prompt...)
	}

	if len(m.notices) > 0 {
		rows = append(rows, "")
		for _, n := range m.notices {
			rows = append(rows, noticeStyle(n).Render(wordwrap.String(n.Text, formWidth)))
		}
	}

	form := styles.FormBorderStyle.Width(formWidth + 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)

	content := lipgloss.JoinVertical(lipgloss.Center, form, "", m.helpView(status))

	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// promptRows renders the authentication exchange, when one is in progress.
func (m Model) promptRows(status controller.Status) []string {
	switch status.Phase {
	case controller.PhaseAuthQuestion:
		return []string{
			styles.PromptStyle.Render(wordwrap.String(status.Prompt, formWidth)),
			m.input.View(),
		}
	case controller.PhaseAuthInformative:
		style := styles.PromptStyle
		if status.PromptError {
			style = styles.PromptErrorStyle
		}
		return []string{
			style.Render(wordwrap.String(status.Prompt, formWidth)),
			styles.HelpStyle.Render("press enter to continue"),
		}
	case controller.PhaseBusy:
		return []string{styles.HelpStyle.Render("talking to greetd...")}
	case controller.PhaseFailed:
		return []string{styles.PromptErrorStyle.Render("connection to greetd lost")}
	}
	return nil
}

// helpView renders the footer keybinding hints.
func (m Model) helpView(status controller.Status) string {
	pairs := [][2]string{}

	if status.Phase == controller.PhaseNotCreated {
		pairs = append(pairs,
			[2]string{m.keymap.NextField.Help().Key, m.keymap.NextField.Help().Desc},
			[2]string{"←/→", "change option"},
			[2]string{m.keymap.EditCommand.Help().Key, m.keymap.EditCommand.Help().Desc},
		)
	}
	pairs = append(pairs,
		[2]string{m.keymap.Enter.Help().Key, m.keymap.Enter.Help().Desc},
		[2]string{m.keymap.Escape.Help().Key, m.keymap.Escape.Help().Desc},
		[2]string{m.keymap.Reboot.Help().Key, m.keymap.Reboot.Help().Desc},
		[2]string{m.keymap.Poweroff.Help().Key, m.keymap.Poweroff.Help().Desc},
	)

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p[0]+" "+p[1])
	}
	return styles.HelpStyle.Render(strings.Join(parts, "  •  "))
}

// noticeStyle maps severity to a display style.
func noticeStyle(n controller.Notice) lipgloss.Style {
	switch n.Severity {
	case controller.SeverityError:
		return styles.NoticeErrorStyle
	case controller.SeverityWarning:
		return styles.NoticeWarnStyle
	default:
		return styles.NoticeInfoStyle
	}
}
