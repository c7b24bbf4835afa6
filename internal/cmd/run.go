package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hedisam/gombox/internal/config"
	"github.com/hedisam/gombox/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo workload and print a summary",
	Long: `Run boots the machine and kernel, creates a data mailbox through the
create syscall and starts:

- producers that send sequenced messages through the send syscall
- consumers that receive them
- one reader per terminal unit waiting on its device mailbox, fed by
  terminal interrupts
- a clock waiter receiving clock device statuses

The run ends when every process finishes or the timeout releases all
mailboxes.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Int("producers", 0, "number of producer processes")
	runCmd.Flags().Int("consumers", 0, "number of consumer processes")
	runCmd.Flags().Int("messages", 0, "total messages to exchange")
	runCmd.Flags().Int("capacity", 0, "data mailbox capacity (0 for rendezvous)")
	runCmd.Flags().Duration("timeout", 0, "abort the run after this long")
	for _, name := range []string{"producers", "consumers", "messages", "capacity", "timeout"} {
		_ = viper.BindPFlag("sim."+name, runCmd.Flags().Lookup(name))
	}
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	rep, err := simulate(cmd.Context(), cfg, log)
	if rep != nil {
		fmt.Fprintln(cmd.OutOrStdout(), rep.render())
	}
	return err
}
