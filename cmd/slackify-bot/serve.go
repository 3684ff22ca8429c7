package main

import (
	"context"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/riverfjs/slackify-go"
	"github.com/riverfjs/slackify-go/internal/bot"
	"github.com/riverfjs/slackify-go/internal/config"
	"github.com/riverfjs/slackify-go/internal/llm"
	"github.com/riverfjs/slackify-go/internal/server"
	"github.com/riverfjs/slackify-go/internal/slackapi"
)

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Slack over socket mode and serve health checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.New(), *configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slackify.SetLogger(logger.WithField("component", "slackify"))

	// slack-go 的调试输出转到 logrus
	sdkLog := logger.WriterLevel(logrus.DebugLevel)
	defer sdkLog.Close()

	api := slack.New(cfg.Slack.BotToken,
		slack.OptionAppLevelToken(cfg.Slack.AppToken),
		slack.OptionDebug(cfg.Slack.Debug),
		slack.OptionLog(log.New(sdkLog, "slack: ", 0)),
	)
	sm := socketmode.New(api,
		socketmode.OptionDebug(cfg.Slack.Debug),
		socketmode.OptionLog(log.New(sdkLog, "socketmode: ", 0)),
	)

	model := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		VisionModel: cfg.OpenAI.VisionModel,
		BaseURL:     cfg.OpenAI.BaseURL,
		MaxRetries:  cfg.OpenAI.MaxRetries,
	})

	render := []slackify.Option{
		slackify.WithChunkSize(cfg.Render.ChunkSize),
		slackify.WithDiagramPreview(cfg.Render.DiagramPreview),
	}

	b := bot.New(bot.Config{
		Chat:          slackapi.New(api, logger.WithField("component", "slackapi")),
		Completer:     model,
		Vision:        model,
		Logger:        logger.WithField("component", "bot"),
		Render:        render,
		DiagramUpload: cfg.Render.DiagramUpload,
	})

	srv := server.NewServer(logger.WithField("component", "http"), []server.Check{
		{Name: "slack", Probe: b.Ready},
	}, render...)

	logger.WithFields(logrus.Fields{
		"model":       model.Model(),
		"health_addr": cfg.Server.HealthAddr,
	}).Info("starting slackify bot")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(ctx, sm)
	})
	if cfg.Server.HealthAddr != "" {
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.Server.HealthAddr)
		})
	}
	return g.Wait()
}
