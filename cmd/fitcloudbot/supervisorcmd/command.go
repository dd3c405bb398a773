// Package supervisorcmd serves the supervisor action group: keyword
// routing over the cost gateway with an optional report chain.
package supervisorcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/spf13/cobra"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/agentserve"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/awsutil"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/billing"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/configutil"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/gateway"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/healthcheck"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/logutil"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/report"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/secretstore"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/slackclient"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/supervisor"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supervisor",
		Short: "Serve the supervisor action group",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := strings.TrimSpace(configutil.FlagOrViperString(cmd, "fitcloud-base-url", "fitcloud.base_url"))
			if baseURL == "" {
				return fmt.Errorf("missing fitcloud.base_url (set via --fitcloud-base-url or FITCLOUDBOT_FITCLOUD_BASE_URL)")
			}
			secretID := strings.TrimSpace(configutil.FlagOrViperString(cmd, "fitcloud-secret-id", "fitcloud.secret_id"))
			if secretID == "" {
				return fmt.Errorf("missing fitcloud.secret_id (set via --fitcloud-secret-id or FITCLOUDBOT_FITCLOUD_SECRET_ID)")
			}
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

			region := configutil.FlagOrViperString(cmd, "aws-region", "aws.region")
			awsCfg, err := awsutil.LoadConfig(cmd.Context(), region)
			if err != nil {
				return err
			}
			tokens, err := secretstore.NewTokenProvider(secretsmanager.NewFromConfig(awsCfg), secretID)
			if err != nil {
				return err
			}
			caller, err := billing.NewClient(billing.ClientOptions{BaseURL: baseURL})
			if err != nil {
				return err
			}
			gw, err := gateway.New(gateway.Options{Caller: caller, Tokens: tokens, Logger: logger})
			if err != nil {
				return err
			}
			slack, err := slackclient.New(slackclient.Options{BotToken: botToken})
			if err != nil {
				return err
			}
			reports, err := report.NewAgent(report.AgentOptions{
				Uploader:  slack,
				ChannelID: channelID,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			sup, err := supervisor.New(supervisor.Options{
				Costs:   gw,
				Reports: reports,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			listen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "listen", "supervisor.listen"))
			if listen == "" {
				listen = ":8083"
			}
			startHealthServer(cmd.Context(), cmd, logger, "supervisor")

			mux := http.NewServeMux()
			mux.HandleFunc("POST /agent/supervisor", agentserve.HTTPHandler(logger, sup.Handle))
			server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			serveErr := make(chan error, 1)
			go func() { serveErr <- server.ListenAndServe() }()
			logger.Info("supervisor_listening", "addr", listen)

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
				logger.Info("supervisor_stop", "reason", "context_canceled")
				return nil
			case err := <-serveErr:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().String("fitcloud-base-url", "", "FitCloud API base URL.")
	cmd.Flags().String("fitcloud-secret-id", "", "Secrets Manager secret id holding the FitCloud token.")
	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...).")
	cmd.Flags().String("slack-channel-id", "", "Slack channel receiving uploaded reports.")
	cmd.Flags().String("listen", ":8083", "Action endpoint listen address.")
	cmd.Flags().String("aws-region", "", "AWS region override (defaults to the SDK chain).")
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
