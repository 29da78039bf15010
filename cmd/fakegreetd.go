package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/greeterm/internal/greetd/fake"
)

var fakegreetdCmd = &cobra.Command{
	Use:   "fakegreetd",
	Short: "Run a fake greetd daemon on a unix socket",
	Long: `Runs an in-process greetd imitation for development. Point the greeter at
it with --socket or GREETD_SOCK. Sessions are never executed; a start_session
is acknowledged and logged, nothing more.`,
	RunE: runFakegreetd,
}

func init() {
	fakegreetdCmd.Flags().String("socket", "/tmp/fakegreetd.sock",
		"unix socket to listen on")
	fakegreetdCmd.Flags().String("password", "demo",
		"accepted password (empty accepts any non-empty credential)")
	rootCmd.AddCommand(fakegreetdCmd)
}

func runFakegreetd(cmd *cobra.Command, args []string) error {
	socket, _ := cmd.Flags().GetString("socket")
	password, _ := cmd.Flags().GetString("password")

	// A stale socket from a previous run blocks the listener.
	if err := os.Remove(socket); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket: %w", err)
	}

	l, err := net.Listen("unix", socket)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socket, err)
	}
	defer os.Remove(socket)

	daemon := &fake.Daemon{Password: password}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		l.Close()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "fakegreetd listening on %s\n", socket)
	return daemon.Serve(l)
}
