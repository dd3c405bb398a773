package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GitVantrue/bedrock-slack-fitcloud/cmd/fitcloudbot/costagentcmd"
	"github.com/GitVantrue/bedrock-slack-fitcloud/cmd/fitcloudbot/reportagentcmd"
	"github.com/GitVantrue/bedrock-slack-fitcloud/cmd/fitcloudbot/supervisorcmd"
	"github.com/GitVantrue/bedrock-slack-fitcloud/cmd/fitcloudbot/webhookcmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:          "fitcloudbot",
		Short:        "Slack cost assistant backed by Bedrock agents and FitCloud",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./fitcloudbot.yaml).")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug|info|warn|error.")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text|json.")
	_ = viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", cmd.PersistentFlags().Lookup("log-format"))

	cmd.AddCommand(webhookcmd.NewCommand())
	cmd.AddCommand(costagentcmd.NewCommand())
	cmd.AddCommand(reportagentcmd.NewCommand())
	cmd.AddCommand(supervisorcmd.NewCommand())

	return cmd
}

func initConfig(cfgFile string) error {
	viper.SetEnvPrefix("FITCLOUDBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return viper.ReadInConfig()
	}

	viper.SetConfigName("fitcloudbot")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}
