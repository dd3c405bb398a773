// Package costagentcmd serves the FitCloud cost action group: Bedrock
// action events in, projected cost payloads out.
package costagentcmd

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
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/secretstore"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost-agent",
		Short: "Serve the FitCloud cost action group",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := strings.TrimSpace(configutil.FlagOrViperString(cmd, "fitcloud-base-url", "fitcloud.base_url"))
			if baseURL == "" {
				return fmt.Errorf("missing fitcloud.base_url (set via --fitcloud-base-url or FITCLOUDBOT_FITCLOUD_BASE_URL)")
			}
			secretID := strings.TrimSpace(configutil.FlagOrViperString(cmd, "fitcloud-secret-id", "fitcloud.secret_id"))
			if secretID == "" {
				return fmt.Errorf("missing fitcloud.secret_id (set via --fitcloud-secret-id or FITCLOUDBOT_FITCLOUD_SECRET_ID)")
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

			listen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "listen", "cost_agent.listen"))
			if listen == "" {
				listen = ":8081"
			}
			startHealthServer(cmd.Context(), cmd, logger, "cost-agent")

			mux := http.NewServeMux()
			mux.HandleFunc("POST /agent/cost", agentserve.HTTPHandler(logger, gw.Handle))
			server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			serveErr := make(chan error, 1)
			go func() { serveErr <- server.ListenAndServe() }()
			logger.Info("cost_agent_listening", "addr", listen, "base_url", baseURL)

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
				logger.Info("cost_agent_stop", "reason", "context_canceled")
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
	cmd.Flags().String("listen", ":8081", "Action endpoint listen address.")
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
