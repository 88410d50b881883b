package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modbot-dev/modbot/automod/actionlog"
	"github.com/modbot-dev/modbot/automod/cachestore"
	"github.com/modbot-dev/modbot/automod/countstore"
	"github.com/modbot-dev/modbot/automod/decision"
	"github.com/modbot-dev/modbot/automod/engine"
	"github.com/modbot-dev/modbot/automod/llm"
	"github.com/modbot-dev/modbot/automod/policy"
	"github.com/modbot-dev/modbot/automod/retry"
	"github.com/modbot-dev/modbot/automod/toxicity"
	"github.com/modbot-dev/modbot/util/cliutil"

	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func secondsFlag(cctx *cli.Context, name string) time.Duration {
	return time.Duration(cctx.Float64(name) * float64(time.Second))
}

// One retrier shared by every outbound provider client.
func configRetrier(cctx *cli.Context, logger *slog.Logger) *retry.Retrier {
	r := retry.DefaultRetrier()
	r.MaxRetries = max(cctx.Int("llm-max-retries"), 0)
	r.BaseDelay = secondsFlag(cctx, "llm-retry-base-delay")
	r.AttemptTimeout = secondsFlag(cctx, "llm-timeout-seconds")
	r.Logger = logger.With("subsystem", "retry")
	if rps := cctx.Float64("llm-rate-limit"); rps > 0 {
		r.Limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return r
}

func configCompletions(cctx *cli.Context, retrier *retry.Retrier) (llm.Provider, error) {
	return llm.New(llm.Config{
		Provider:     cctx.String("model-provider"),
		Model:        cctx.String("model-name"),
		OllamaHost:   cctx.String("ollama-host"),
		OpenAIKey:    cctx.String("openai-api-key"),
		AnthropicKey: cctx.String("anthropic-api-key"),
		GeminiKey:    cctx.String("gemini-api-key"),
		Retrier:      retrier,
	})
}

// Everything the daemon holds open; Close releases it.
type components struct {
	engine *engine.Engine
	db     *gorm.DB
	rdb    *redis.Client
	tee    *actionlog.KafkaTee
}

func (c *components) Close() {
	if c.tee != nil {
		if err := c.tee.Close(); err != nil {
			slog.Warn("closing kafka audit writer", "err", err)
		}
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	if c.db != nil {
		if sqldb, err := c.db.DB(); err == nil {
			sqldb.Close()
		}
	}
}

func buildEngine(ctx context.Context, cctx *cli.Context, logger *slog.Logger, platform engine.Platform) (*components, error) {
	pol, err := policy.Load(cctx.String("policy-file"))
	if err != nil {
		return nil, err
	}
	logger.Info("loaded moderation policy", "path", cctx.String("policy-file"), "rules", len(pol.Rules))

	db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
	if err != nil {
		return nil, err
	}
	store := actionlog.NewGormStore(db)
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("migrating action log: %w", err)
	}
	c := &components{db: db}

	var actions actionlog.ActionLog = store
	if brokers := cctx.String("kafka-brokers"); brokers != "" {
		c.tee = actionlog.NewKafkaTee(store, brokers, cctx.String("kafka-audit-topic"), logger)
		actions = c.tee
		logger.Info("publishing action records to kafka", "brokers", brokers, "topic", cctx.String("kafka-audit-topic"))
	}

	var cache cachestore.CacheStore
	var counters countstore.CountStore
	if redisURL := cctx.String("redis-url"); redisURL != "" {
		rdb, err := cachestore.DialRedis(ctx, redisURL)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.rdb = rdb
		cache = cachestore.NewRedisCacheStore(rdb, 30*time.Minute)
		counters = countstore.NewRedisCountStore(rdb)
	} else {
		cache = cachestore.NewMemCacheStore(50_000, 30*time.Minute)
		counters = countstore.NewMemCountStore()
	}

	retrier := configRetrier(cctx, logger)
	decider := &decision.Decider{Logger: logger.With("subsystem", "decision")}
	if u := cctx.String("mcp-server-url"); u != "" {
		decider.Service = decision.NewClient(u, retrier, cache, logger.With("subsystem", "decision-client"))
	}
	if cctx.String("model-provider") != "" {
		completions, err := configCompletions(cctx, retrier)
		if err != nil {
			c.Close()
			return nil, err
		}
		decider.Completions = completions
	}

	eng := &engine.Engine{
		Logger:   logger.With("subsystem", "engine"),
		Policy:   pol,
		Platform: platform,
		Actions:  actions,
		History:  store,
		Appeals:  store,
		Scorer: toxicity.New(toxicity.Config{
			PerspectiveKey: cctx.String("perspective-api-key"),
			Attributes:     cctx.String("perspective-attributes"),
			Logger:         logger,
		}),
		Decider: decider,
		Cache:   cache,
		Quota: &countstore.Quota{
			Counters: counters,
			Name:     "decision-calls",
			Period:   countstore.PeriodHour,
			Limit:    cctx.Int("decision-quota-hour"),
		},
		Config: engine.Config{
			AlertChannelName: cctx.String("alert-channel-name"),
			AlertRoleName:    cctx.String("alert-role-name"),
			ExemptRoleNames:  engine.ParseRoleNames(cctx.String("exempt-role-names")),
		},
	}
	if u := cctx.String("slack-webhook-url"); u != "" {
		eng.Notifier = engine.NewSlackNotifier(u)
	}
	c.engine = eng
	return c, nil
}
