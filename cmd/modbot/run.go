package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modbot-dev/modbot/pkg/metrics"

	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation service",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/modbot/modbot.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   20,
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":8080",
			EnvVars: []string{"MODBOT_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs (empty to serve only on the API port)",
			EnvVars: []string{"MODBOT_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for caches and counters; in-process stores are used when empty",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "mcp-server-url",
			Usage:   "base URL of the tool-calling decision service",
			EnvVars: []string{"MCP_SERVER_URL"},
		},
		&cli.StringFlag{
			Name:    "perspective-api-key",
			EnvVars: []string{"PERSPECTIVE_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "perspective-attributes",
			Value:   "TOXICITY",
			EnvVars: []string{"PERSPECTIVE_REQUESTED_ATTRIBUTES"},
		},
		&cli.StringFlag{
			Name:    "alert-channel-name",
			Usage:   "channel receiving escalation notices",
			EnvVars: []string{"MOD_ALERT_CHANNEL_NAME"},
		},
		&cli.StringFlag{
			Name:    "alert-role-name",
			Usage:   "role mentioned in escalation notices",
			EnvVars: []string{"MOD_ALERT_ROLE_NAME"},
		},
		&cli.StringFlag{
			Name:    "exempt-role-names",
			Usage:   "comma-separated role names never moderated, in addition to the policy's exempt_roles",
			EnvVars: []string{"MOD_EXEMPT_ROLE_NAMES"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "also post escalations to this Slack webhook",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "comma-separated brokers; action records are also published when set",
			EnvVars: []string{"KAFKA_BROKERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-audit-topic",
			Value:   "modbot.actions",
			EnvVars: []string{"KAFKA_AUDIT_TOPIC"},
		},
		&cli.IntFlag{
			Name:    "decision-quota-hour",
			Usage:   "max deferred decisions per guild per hour (0 for unlimited)",
			Value:   500,
			EnvVars: []string{"DECISION_QUOTA_HOUR"},
		},
		&cli.StringFlag{
			Name:    "bot-user-id",
			Usage:   "user ID of the bot account; never timed out, and recorded as the actor",
			Value:   "modbot",
			EnvVars: []string{"BOT_USER_ID"},
		},
		&cli.DurationFlag{
			Name:  "appeal-retention-interval",
			Usage: "how often decided appeals past retention are purged",
			Value: time.Hour,
		},
	}, llmFlags...),
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}

		shutdownOTEL, err := configOTEL(ctx, "modbot")
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		defer shutdownOTEL()

		platform := newLogPlatform(logger, cctx.String("bot-user-id"))
		comps, err := buildEngine(ctx, cctx, logger, platform)
		if err != nil {
			return err
		}
		defer comps.Close()

		srv := NewServer(comps.engine, cctx.String("bind"), logger)

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return srv.RunAPI(ctx)
		})
		if listen := cctx.String("metrics-listen"); listen != "" {
			eg.Go(func() error {
				if err := metrics.RunServer(ctx, listen); err != nil {
					return fmt.Errorf("failed to start metrics endpoint: %w", err)
				}
				return nil
			})
		}
		eg.Go(func() error {
			comps.engine.RunAppealRetention(ctx, cctx.Duration("appeal-retention-interval"))
			return nil
		})

		if err := eg.Wait(); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		logger.Info("graceful shutdown complete")
		return nil
	},
}
