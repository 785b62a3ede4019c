package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pyama86/securereport/domain/repository"
	"github.com/pyama86/securereport/domain/usecase"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

type Handler interface {
	Handle(event *slackevents.EventsAPIInnerEvent) error
}

func displayLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.UTC
	}
	return loc
}

// Handle はSlackボットとメトリクスのエンドポイントを起動する
func Handle(ctx context.Context, cfg *repository.Config, workflow *usecase.Workflow, lookup *usecase.IncidentLookup) error {
	webApi := slack.New(
		os.Getenv("SLACK_BOT_TOKEN"),
		slack.OptionAppLevelToken(os.Getenv("SLACK_APP_TOKEN")),
	)
	socketMode := socketmode.New(
		webApi,
	)
	authTest, authTestErr := webApi.AuthTest()
	if authTestErr != nil {
		return fmt.Errorf("SLACK_BOT_TOKEN is invalid: %w", authTestErr)
	}
	slog.Info("Bot ID", slog.String("bot_id", authTest.UserID))

	slackRepository := repository.NewSlackRepository(webApi)
	defer slackRepository.Stop()

	aiRepository, err := repository.NewAIRepository()
	if err != nil {
		return err
	}

	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen)
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				slog.Error("Failed to shutdown metrics server", slog.Any("err", err))
			}
		}()
	}

	loc := displayLocation()
	announcer := NewAnnouncer(
		slackRepository,
		repository.TitleGenerator(aiRepository),
		cfg.Slack.AnnouncementChannelNames(),
		loc,
	)
	ops := NewOperations(workflow, lookup, slackRepository, announcer, loc)
	workflow.Subscribe(ops.OnWorkflowEvent)

	// 起動時に接続しておく。失敗しても connect コマンドで再試行できる
	if account, err := workflow.Connect(ctx); err != nil {
		slog.Warn("Failed to connect wallet", slog.Any("err", err))
	} else {
		slog.Info("Wallet connected", slog.String("account", account.Hex()))
	}

	eventHandler := NewEventHandler(ctx, authTest.UserID, ops)
	callbackHandler := NewCallbackHandler(ctx, slackRepository, ops)

	go func() {
		for envelope := range socketMode.Events {
			switch envelope.Type {
			case socketmode.EventTypeEventsAPI:
				socketMode.Ack(*envelope.Request)
				eventPayload, ok := envelope.Data.(slackevents.EventsAPIEvent)
				if !ok {
					slog.Error("Failed to cast to EventsAPIEvent")
					continue
				}

				switch eventPayload.Type {
				case slackevents.CallbackEvent:
					innerEvent := eventPayload.InnerEvent
					go func() {
						if err := eventHandler.Handle(&innerEvent); err != nil {
							slog.Error("Failed to handle event", slog.Any("err", err))
						}
					}()
				}
			case socketmode.EventTypeInteractive:
				socketMode.Ack(*envelope.Request)
				callback, ok := envelope.Data.(slack.InteractionCallback)
				if !ok {
					slog.Error("Failed to cast to InteractionCallback")
					continue
				}
				go func() {
					if err := callbackHandler.Handle(&callback); err != nil {
						slog.Error("Failed to handle callback", slog.Any("err", err))
					}
				}()
			}
		}
	}()

	return socketMode.RunContext(ctx)
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Metrics server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", slog.Any("err", err))
		}
	}()
	return srv
}
