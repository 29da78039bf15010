package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/greeterm/internal/app"
	"github.com/zjrosen/greeterm/internal/cache"
	"github.com/zjrosen/greeterm/internal/config"
	"github.com/zjrosen/greeterm/internal/controller"
	"github.com/zjrosen/greeterm/internal/greetd"
	"github.com/zjrosen/greeterm/internal/greetd/fake"
	"github.com/zjrosen/greeterm/internal/log"
	"github.com/zjrosen/greeterm/internal/sysutil"
	"github.com/zjrosen/greeterm/internal/watcher"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "greeterm",
	Short:   "A terminal greeter for greetd",
	Long:    `A terminal user interface greeter for the greetd login daemon, with session discovery, per-user session memory and power controls.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: /etc/greeterm/config.yaml)")
	rootCmd.Flags().String("socket", "",
		"greetd socket path (default: $GREETD_SOCK)")
	rootCmd.Flags().Bool("demo", false,
		"run against a built-in fake daemon, password \"demo\"")
	rootCmd.Flags().String("log", "",
		"append logs to this file (default: logging disabled)")
	rootCmd.Flags().Bool("debug", false,
		"log at debug level")

	_ = viper.BindPFlag("socket_path", rootCmd.Flags().Lookup("socket"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("greeting", defaults.Greeting)
	viper.SetDefault("commands.reboot", defaults.Commands.Reboot)
	viper.SetDefault("commands.poweroff", defaults.Commands.Poweroff)
	viper.SetDefault("sessions.x11_prefix", defaults.Sessions.X11Prefix)
	viper.SetDefault("cache.path", defaults.Cache.Path)
	viper.SetDefault("cache.limit", defaults.Cache.Limit)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. /etc/greeterm/config.yaml (system config, the normal case)
		// 2. ~/.config/greeterm/config.yaml (developer runs)
		viper.AddConfigPath("/etc/greeterm")
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".config", "greeterm"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// A greeter must come up even with no config installed.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "reading config: %v\n", err)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func runApp(cmd *cobra.Command, args []string) error {
	if logPath, _ := cmd.Flags().GetString("log"); logPath != "" {
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer cleanup()
		debug, _ := cmd.Flags().GetBool("debug")
		if !debug && os.Getenv("GREETERM_DEBUG") == "" {
			log.SetMinLevel(log.LevelInfo)
		}
	}

	demo, _ := cmd.Flags().GetBool("demo")

	transport, err := buildTransport(demo)
	if err != nil {
		return err
	}

	users, err := sysutil.LoadUsers(sysutil.PasswdPath, sysutil.LoginDefsPath)
	if err != nil {
		if !demo {
			return fmt.Errorf("loading users: %w", err)
		}
		users = []sysutil.User{{Name: "demo", FullName: "Demo User", Shell: "/bin/sh"}}
	}
	if len(users) == 0 {
		return fmt.Errorf("no login users found in %s", sysutil.PasswdPath)
	}

	loader, err := sysutil.NewSessionLoader(cfg.Sessions.X11Prefix, cfg.Sessions.ExtraDirs)
	if err != nil {
		return fmt.Errorf("bad x11_prefix: %w", err)
	}
	sessions := loader.Load(context.Background())

	selections, err := cache.Load(cfg.Cache.Path, cfg.Cache.Limit)
	if err != nil {
		log.Warn(log.CatCache, "ignoring unreadable selection cache", "path", cfg.Cache.Path, "error", err)
		selections = cache.New(cfg.Cache.Limit)
	}

	// A watcher failure degrades to manual refresh only, not a dead greeter.
	var w *watcher.Watcher
	if w, err = watcher.New(watcher.DefaultConfig(loader.Dirs())); err != nil {
		log.Warn(log.CatWatcher, "session watching disabled", "error", err)
		w = nil
	} else if err := w.Start(); err != nil {
		log.Warn(log.CatWatcher, "session watching disabled", "error", err)
		w = nil
	}

	ctrl := controller.New(transport, users[0].Name)
	defer ctrl.Close()

	model := app.New(ctrl, app.Options{
		Config:    cfg,
		Cache:     selections,
		CachePath: cfg.Cache.Path,
		Users:     users,
		Sessions:  sessions,
		Loader:    loader,
		Watcher:   w,
		Demo:      demo,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// buildTransport connects to greetd, or to the in-process fake in demo mode.
func buildTransport(demo bool) (greetd.Transport, error) {
	if demo {
		return &fake.Loopback{Daemon: &fake.Daemon{
			Password: "demo",
			Greeting: "Fake daemon: any user, password \"demo\"",
		}}, nil
	}

	conn, err := greetd.Dial(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to greetd: %w (is %s set?)", err, greetd.SocketEnv)
	}
	return conn, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
