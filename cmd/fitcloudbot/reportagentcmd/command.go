// Package reportagentcmd serves the report action group: it turns a
// recovered cost result into a spreadsheet and uploads it to Slack.
package reportagentcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/agentserve"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/configutil"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/healthcheck"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/logutil"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/report"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/slackclient"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report-agent",
		Short: "Serve the spreadsheet report action group",
		RunE: func(cmd *cobra.Command, args []string) error {
			botToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing slack.bot_token (set via --slack-bot-token or FITCLOUDBOT_SLACK_BOT_TOKEN)")
			}
			channelID := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-channel-id", "slack.channel_id"))
			if channelID == "" {
				return fmt.Errorf("missing slack.channel_id (set via --slack-channel-id or FITCLOUDBOT_SLACK_CHANNEL_ID)")
			}

			logger, err := logutil.FromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			slack, err := slackclient.New(slackclient.Options{BotToken: botToken})
			if err != nil {
				return err
			}
			agent, err := report.NewAgent(report.AgentOptions{
				Uploader:  slack,
				ChannelID: channelID,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			listen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "listen", "report_agent.listen"))
			if listen == "" {
				listen = ":8082"
			}
			startHealthServer(cmd.Context(), cmd, logger, "report-agent")

			mux := http.NewServeMux()
			mux.HandleFunc("POST /agent/report", agentserve.HTTPHandler(logger, agent.Handle))
			server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			serveErr := make(chan error, 1)
			go func() { serveErr <- server.ListenAndServe() }()
			logger.Info("report_agent_listening", "addr", listen, "channel_id", channelID)

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
				logger.Info("report_agent_stop", "reason", "context_canceled")
				return nil
			case err := <-serveErr:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...).")
	cmd.Flags().String("slack-channel-id", "", "Slack channel receiving uploaded reports.")
	cmd.Flags().String("listen", ":8082", "Action endpoint listen address.")
	cmd.Flags().String("health-listen", "", "Health check listen address (empty disables).")

	return cmd
}

func startHealthServer(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, component string) {
	listen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "health-listen", "health.listen"))
	if listen == "" {
		return
	}
	if _, err := healthcheck.StartServer(ctx, logger, listen, component); err != nil {
		logger.Warn("health_server_start_error", "addr", listen, "error", err.Error())
	}
}
