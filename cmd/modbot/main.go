package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/modbot-dev/modbot/automod/llm"
	"github.com/modbot-dev/modbot/automod/policy"
	"github.com/modbot-dev/modbot/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "modbot",
		Usage:   "chat moderation daemon (toxicity policy, escalation, appeals)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "policy-file",
			Usage:   "path to moderation policy YAML document",
			Value:   "config/moderation.yaml",
			EnvVars: []string{"POLICY_FILE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"MODBOT_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		rulesCmd,
		checkPolicyCmd,
		llmPingCmd,
	}

	return app.Run(args)
}

var llmFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "model-provider",
		Usage:   "completion provider: ollama, openai, anthropic, gemini",
		Value:   llm.ProviderOllama,
		EnvVars: []string{"MODEL_PROVIDER"},
	},
	&cli.StringFlag{
		Name:    "model-name",
		Value:   llm.DefaultModel,
		EnvVars: []string{"MODEL_NAME"},
	},
	&cli.StringFlag{
		Name:    "ollama-host",
		Value:   "http://localhost:11434",
		EnvVars: []string{"OLLAMA_HOST"},
	},
	&cli.StringFlag{
		Name:    "openai-api-key",
		EnvVars: []string{"OPENAI_API_KEY"},
	},
	&cli.StringFlag{
		Name:    "anthropic-api-key",
		EnvVars: []string{"ANTHROPIC_API_KEY"},
	},
	&cli.StringFlag{
		Name:    "gemini-api-key",
		EnvVars: []string{"GEMINI_API_KEY"},
	},
	&cli.Float64Flag{
		Name:    "llm-timeout-seconds",
		Usage:   "deadline for each individual provider attempt",
		Value:   25,
		EnvVars: []string{"LLM_TIMEOUT_SECONDS"},
	},
	&cli.IntFlag{
		Name:    "llm-max-retries",
		Value:   2,
		EnvVars: []string{"LLM_MAX_RETRIES"},
	},
	&cli.Float64Flag{
		Name:    "llm-retry-base-delay",
		Usage:   "base backoff delay, in seconds",
		Value:   0.5,
		EnvVars: []string{"LLM_RETRY_BASE_DELAY"},
	},
	&cli.Float64Flag{
		Name:    "llm-rate-limit",
		Usage:   "max outbound completion and decision requests per second (0 for unlimited)",
		Value:   0,
		EnvVars: []string{"LLM_RATE_LIMIT"},
	},
}

func configLogger(cctx *cli.Context) (*slog.Logger, error) {
	return cliutil.SetupSlog(cliutil.LogOptions{LogLevel: cctx.String("log-level")})
}

var rulesCmd = &cli.Command{
	Name:  "rules",
	Usage: "print the loaded moderation policy",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "detail",
			Usage: "list each rule's actions on a separate line",
		},
	},
	Action: func(cctx *cli.Context) error {
		pol, err := policy.Load(cctx.String("policy-file"))
		if err != nil {
			return err
		}
		fmt.Println(policy.FormatRules(pol, cctx.Bool("detail")))
		return nil
	},
}

var checkPolicyCmd = &cli.Command{
	Name:      "check-policy",
	Usage:     "validate a moderation policy document",
	ArgsUsage: "[<path>]",
	Action: func(cctx *cli.Context) error {
		path := cctx.String("policy-file")
		if cctx.Args().Len() > 0 {
			path = cctx.Args().First()
		}
		pol, err := policy.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("ok: %s (%d rules, escalation window %d minutes)\n", path, len(pol.Rules), pol.Escalation.WindowMinutes)
		return nil
	},
}

var llmPingCmd = &cli.Command{
	Name:  "llm-ping",
	Usage: "send a one-off prompt to the configured completion provider",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "prompt",
			Value: "Reply with the single word: pong",
		},
	}, llmFlags...),
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		provider, err := configCompletions(cctx, configRetrier(cctx, logger))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cctx.Context, 2*time.Minute)
		defer cancel()
		start := time.Now()
		out, err := provider.Complete(ctx, cctx.String("prompt"))
		if err != nil {
			return fmt.Errorf("%s: %w", provider.Name(), err)
		}
		fmt.Printf("%s (%s): %s\n", provider.Name(), time.Since(start).Round(time.Millisecond), out)
		return nil
	},
}
