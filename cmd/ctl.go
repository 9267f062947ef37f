package cmd

import (
	"fmt"
	"os"
	"time"

	"anonrelay/control"
	"anonrelay/protocol"

	"github.com/spf13/cobra"
)

const defaultControlSocket = "/tmp/anonrelay.sock"

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Send a command to a running relay",
}

var ctlStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print counters of the running relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := control.Send(socketPath(cmd), "stats", 5*time.Second)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var ctlShutdownCmd = &cobra.Command{
	Use:   "shutdown [reason]",
	Short: "Stop the running relay gracefully",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason := "maintenance"
		if len(args) == 1 {
			reason = args[0]
		}
		out, err := control.Send(socketPath(cmd), protocol.FormatAction("shutdown", reason), 5*time.Second)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ctlCmd)
	ctlCmd.AddCommand(ctlStatsCmd, ctlShutdownCmd)
	ctlCmd.PersistentFlags().String("socket", "", "control socket path (default $CONTROL_SOCKET or "+defaultControlSocket+")")
}

func socketPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("socket"); path != "" {
		return path
	}
	if path := os.Getenv("CONTROL_SOCKET"); path != "" {
		return path
	}
	return defaultControlSocket
}
