package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pyama86/securereport/domain/entity"
	"github.com/pyama86/securereport/domain/repository"
	"github.com/pyama86/securereport/domain/usecase"
	"github.com/pyama86/securereport/presentation/blocks"
	"github.com/slack-go/slack"
)

type Workflow interface {
	Connect(ctx context.Context) (common.Address, error)
	Account() (common.Address, bool)
	Submit(ctx context.Context, description string) (*entity.Incident, error)
	Fetch(ctx context.Context, rawID string) (*entity.Incident, error)
}

type Counter interface {
	Count(ctx context.Context) (uint64, error)
}

type bannerLocation struct {
	channelID string
	ts        string
}

// bannerBoard は成功バナーの投稿位置をインシデントIDごとに覚えておく
// 成功表示期間が投稿より先に終わった場合は expired に残す
type bannerBoard struct {
	mu      sync.Mutex
	banners map[uint64]bannerLocation
	expired map[uint64]*entity.Incident
}

func newBannerBoard() *bannerBoard {
	return &bannerBoard{
		banners: map[uint64]bannerLocation{},
		expired: map[uint64]*entity.Incident{},
	}
}

// register は期間が既に終わっていればそのインシデントを返す
func (b *bannerBoard) register(id uint64, loc bannerLocation) *entity.Incident {
	b.mu.Lock()
	defer b.mu.Unlock()
	if incident, ok := b.expired[id]; ok {
		delete(b.expired, id)
		return incident
	}
	b.banners[id] = loc
	return nil
}

func (b *bannerBoard) expire(incident *entity.Incident) (bannerLocation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	loc, ok := b.banners[incident.ID]
	if !ok {
		b.expired[incident.ID] = incident
		return bannerLocation{}, false
	}
	delete(b.banners, incident.ID)
	return loc, true
}

// Operations はメンションとモーダルの両方から使われる
type Operations struct {
	workflow  Workflow
	counter   Counter
	slack     repository.SlackRepositoryer
	announcer *Announcer
	banners   *bannerBoard
	loc       *time.Location
}

func NewOperations(workflow Workflow, counter Counter, slackRepository repository.SlackRepositoryer, announcer *Announcer, loc *time.Location) *Operations {
	return &Operations{
		workflow:  workflow,
		counter:   counter,
		slack:     slackRepository,
		announcer: announcer,
		banners:   newBannerBoard(),
		loc:       loc,
	}
}

func msgOptions(threadTS string, opts ...slack.MsgOption) []slack.MsgOption {
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	return opts
}

// report はメンションとモーダルの両方から呼ばれる
// 説明はリクエストごとに渡し、利用者の間で共有しない
func (o *Operations) report(ctx context.Context, channelID, threadTS, description string) error {
	ts, err := o.slack.PostMessage(
		channelID,
		msgOptions(threadTS, slack.MsgOptionBlocks(blocks.Processing("インシデントを台帳に記録しています...")...))...,
	)
	if err != nil {
		return fmt.Errorf("failed to post processing message: %w", err)
	}

	incident, err := o.workflow.Submit(ctx, description)
	if err != nil {
		slog.Error("Failed to report incident", slog.String("kind", entity.ErrorKind(err)), slog.Any("err", err))
		o.slack.UpdateMessage(channelID, ts, slack.MsgOptionBlocks(blocks.OperationFailed("インシデントの報告", err)...))
		return nil
	}

	o.slack.UpdateMessage(channelID, ts, slack.MsgOptionBlocks(blocks.IncidentReportedBanner(incident)...))
	if expired := o.banners.register(incident.ID, bannerLocation{channelID: channelID, ts: ts}); expired != nil {
		o.replaceBanner(bannerLocation{channelID: channelID, ts: ts}, incident)
	}

	if err := o.announcer.Announce(ctx, incident); err != nil {
		slog.Error("Failed to announce incident", slog.Uint64("id", incident.ID), slog.Any("err", err))
	}
	return nil
}

func (o *Operations) fetch(ctx context.Context, channelID, threadTS, rawID string) error {
	incident, err := o.workflow.Fetch(ctx, rawID)
	var opts []slack.MsgOption
	if err != nil {
		slog.Warn("Failed to fetch incident", slog.String("id", rawID), slog.String("kind", entity.ErrorKind(err)), slog.Any("err", err))
		opts = msgOptions(threadTS, slack.MsgOptionBlocks(blocks.OperationFailed(fmt.Sprintf("インシデント %q の取得", rawID), err)...))
	} else {
		opts = msgOptions(threadTS, slack.MsgOptionBlocks(blocks.IncidentDetails(incident, o.loc)...))
	}
	if _, err := o.slack.PostMessage(channelID, opts...); err != nil {
		return fmt.Errorf("failed to post fetch result: %w", err)
	}
	return nil
}

func (o *Operations) count(ctx context.Context, channelID, threadTS string) error {
	n, err := o.counter.Count(ctx)
	var opts []slack.MsgOption
	if err != nil {
		slog.Warn("Failed to count incidents", slog.Any("err", err))
		opts = msgOptions(threadTS, slack.MsgOptionBlocks(blocks.OperationFailed("件数の取得", err)...))
	} else {
		opts = msgOptions(threadTS, slack.MsgOptionBlocks(blocks.IncidentCount(n)...))
	}
	if _, err := o.slack.PostMessage(channelID, opts...); err != nil {
		return fmt.Errorf("failed to post count: %w", err)
	}
	return nil
}

func (o *Operations) connect(ctx context.Context, channelID, threadTS string) error {
	account, err := o.workflow.Connect(ctx)
	var opts []slack.MsgOption
	if err != nil {
		slog.Warn("Failed to connect wallet", slog.Any("err", err))
		opts = msgOptions(threadTS, slack.MsgOptionBlocks(blocks.OperationFailed("ウォレットの接続", err)...))
	} else {
		opts = msgOptions(threadTS, slack.MsgOptionText(fmt.Sprintf("🔗 `%s` で接続しました", account.Hex()), false))
	}
	if _, err := o.slack.PostMessage(channelID, opts...); err != nil {
		return fmt.Errorf("failed to post connect result: %w", err)
	}
	return nil
}

// OnWorkflowEvent は成功表示期間が終わったバナーを報告結果に置き換える
func (o *Operations) OnWorkflowEvent(ev usecase.Event) {
	if ev.Track != usecase.TrackSubmit || ev.State.Status != usecase.StatusIdle || ev.State.Incident == nil {
		return
	}
	loc, ok := o.banners.expire(ev.State.Incident)
	if !ok {
		return
	}
	o.replaceBanner(loc, ev.State.Incident)
}

func (o *Operations) replaceBanner(loc bannerLocation, incident *entity.Incident) {
	o.slack.UpdateMessage(loc.channelID, loc.ts, slack.MsgOptionBlocks(blocks.IncidentReported(incident, o.loc)...))
}
