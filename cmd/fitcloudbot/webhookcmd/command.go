// Package webhookcmd runs the Slack-facing front end: the Events API
// HTTP endpoint and, when an app token is configured, a Socket Mode
// consumer feeding the same handler.
package webhookcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/agentruntime"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/awsutil"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/configutil"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/healthcheck"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/logutil"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/slackclient"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/webhook"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Serve the Slack Events API endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			botToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing slack.bot_token (set via --slack-bot-token or FITCLOUDBOT_SLACK_BOT_TOKEN)")
			}
			signingSecret := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-signing-secret", "slack.signing_secret"))
			if signingSecret == "" {
				return fmt.Errorf("missing slack.signing_secret (set via --slack-signing-secret or FITCLOUDBOT_SLACK_SIGNING_SECRET)")
			}
			appToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-app-token", "slack.app_token"))

			agentID := strings.TrimSpace(configutil.FlagOrViperString(cmd, "bedrock-agent-id", "bedrock.agent_id"))
			if agentID == "" {
				return fmt.Errorf("missing bedrock.agent_id (set via --bedrock-agent-id or FITCLOUDBOT_BEDROCK_AGENT_ID)")
			}
			aliasID := strings.TrimSpace(configutil.FlagOrViperString(cmd, "bedrock-agent-alias-id", "bedrock.agent_alias_id"))
			if aliasID == "" {
				return fmt.Errorf("missing bedrock.agent_alias_id (set via --bedrock-agent-alias-id or FITCLOUDBOT_BEDROCK_AGENT_ALIAS_ID)")
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
			invoker, err := agentruntime.New(agentruntime.Options{
				API:          bedrockagentruntime.NewFromConfig(awsCfg),
				AgentID:      agentID,
				AgentAliasID: aliasID,
			})
			if err != nil {
				return err
			}

			slack, err := slackclient.New(slackclient.Options{BotToken: botToken})
			if err != nil {
				return err
			}
			verifier, err := slackclient.NewSignatureVerifier(signingSecret)
			if err != nil {
				return err
			}
			handler, err := webhook.NewHandler(webhook.Options{
				Invoker:   invoker,
				Messenger: slack,
				Verifier:  verifier,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			listen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "listen", "webhook.listen"))
			if listen == "" {
				listen = ":8080"
			}
			startHealthServer(cmd.Context(), cmd, logger, "webhook")

			mux := http.NewServeMux()
			handler.RegisterRoutes(mux)
			server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			serveErr := make(chan error, 1)
			go func() { serveErr <- server.ListenAndServe() }()
			logger.Info("webhook_listening", "addr", listen, "socket_mode", appToken != "")

			if appToken != "" {
				go runSocketMode(cmd.Context(), logger, slack, handler, appToken)
			}

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
				logger.Info("webhook_stop", "reason", "context_canceled")
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
	cmd.Flags().String("slack-signing-secret", "", "Slack signing secret for request verification.")
	cmd.Flags().String("slack-app-token", "", "Slack app-level token (xapp-...); enables Socket Mode.")
	cmd.Flags().String("bedrock-agent-id", "", "Bedrock supervisor agent id.")
	cmd.Flags().String("bedrock-agent-alias-id", "", "Bedrock supervisor agent alias id.")
	cmd.Flags().String("listen", ":8080", "Events API listen address.")
	addCommonFlags(cmd)

	return cmd
}

// runSocketMode keeps one Socket Mode connection alive and feeds events
// into the shared webhook handler. Connection failures reconnect after a
// short pause; event-level failures only log.
func runSocketMode(ctx context.Context, logger *slog.Logger, slack *slackclient.Client, handler *webhook.Handler, appToken string) {
	for {
		if ctx.Err() != nil {
			logger.Info("slack_socket_stop", "reason", "context_canceled")
			return
		}
		conn, err := slack.ConnectSocket(ctx, appToken)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("slack_socket_connect_error", "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		logger.Info("slack_socket_connected")
		readErr := slackclient.ConsumeSocket(ctx, conn, func(env slackclient.SocketEnvelope) error {
			if env.Type != "events_api" || len(env.Payload) == 0 {
				return nil
			}
			correlationID := uuid.NewString()
			if err := handler.HandleSocketPayload(ctx, env.Payload); err != nil {
				logger.Warn("slack_socket_event_error", "correlation_id", correlationID, "error", err.Error())
			}
			return nil
		})
		_ = conn.Close()
		if readErr != nil && !errors.Is(readErr, context.Canceled) {
			logger.Warn("slack_socket_read_error", "error", readErr.Error())
		}
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("aws-region", "", "AWS region override (defaults to the SDK chain).")
	cmd.Flags().String("health-listen", "", "Health check listen address (empty disables).")
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
