// Package power performs reboot and poweroff. It prefers logind over the
// system bus, because the greeter's own user is normally allowed to call it
// without polkit prompts; a configured command line is the fallback.
package power

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/godbus/dbus/v5"
	"github.com/google/shlex"

	"github.com/zjrosen/greeterm/internal/log"
)

// Action selects the power operation.
type Action int

const (
	Reboot Action = iota
	Poweroff
)

func (a Action) String() string {
	if a == Poweroff {
		return "poweroff"
	}
	return "reboot"
}

const (
	login1Dest = "org.freedesktop.login1"
	login1Path = dbus.ObjectPath("/org/freedesktop/login1")
)

func (a Action) login1Method() string {
	if a == Poweroff {
		return login1Dest + ".Manager.PowerOff"
	}
	return login1Dest + ".Manager.Reboot"
}

// Do performs the action. fallback is a shell-style command line used when
// the logind call fails; with no fallback configured the logind error is
// what the caller gets.
func Do(ctx context.Context, action Action, fallback string) error {
	err := viaLogind(ctx, action)
	if err == nil {
		return nil
	}
	if fallback == "" {
		return err
	}

	log.Warn(log.CatPower, "logind call failed, falling back to command",
		"action", action, "error", err)
	return viaCommand(ctx, action, fallback)
}

func viaLogind(ctx context.Context, action Action) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connecting to system bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(login1Dest, login1Path)
	// false: no polkit interactivity, fail instead of prompting.
	call := obj.CallWithContext(ctx, action.login1Method(), 0, false)
	if call.Err != nil {
		return fmt.Errorf("calling %s: %w", action.login1Method(), call.Err)
	}
	log.Info(log.CatPower, "requested via logind", "action", action)
	return nil
}

func viaCommand(ctx context.Context, action Action, cmdline string) error {
	argv, err := shlex.Split(cmdline)
	if err != nil || len(argv) == 0 {
		return fmt.Errorf("invalid %s command %q", action, cmdline)
	}

	log.Info(log.CatPower, "running command", "action", action, "cmd", cmdline)
	if out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput(); err != nil {
		return fmt.Errorf("running %q: %w (%s)", cmdline, err, string(out))
	}
	return nil
}
