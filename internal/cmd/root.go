package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hedisam/gombox/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "gombox",
	Short: "Mailbox IPC kernel simulator",
	Long: `gombox boots a simulated single-core machine, initialises the mailbox
kernel on it and drives a workload of producer, consumer and device
processes through the mailbox and syscall interfaces.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./gombox.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text or json)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("gombox")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/gombox")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GOMBOX")
	// GOMBOX_KERNEL_MAX_SLOTS for kernel.max_slots
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}
