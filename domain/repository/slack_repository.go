package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Songmu/retry"
	ttlcache "github.com/jellydator/ttlcache/v3"
	"github.com/slack-go/slack"
)

var ErrSlackNotFound = fmt.Errorf("not found")

type SlackRepositoryer interface {
	GetChannelByName(name string) (*slack.Channel, error)
	GetChannelByID(channelID string) (*slack.Channel, error)
	PostMessage(channelID string, opts ...slack.MsgOption) (string, error)
	UpdateMessage(channelID, ts string, opts ...slack.MsgOption)
	OpenView(triggerID string, view slack.ModalViewRequest) error
	FlushChannelCache()
}

type SlackRepository struct {
	client        *slack.Client
	channelsCache *ttlcache.Cache[string, []slack.Channel]
	retryCount    uint
	retryInterval time.Duration

	updateMu sync.Mutex
	// メッセージごとに最後に積まれた更新の完了通知
	updateTails map[string]chan struct{}
}

func NewSlackRepository(client *slack.Client) *SlackRepository {
	r := &SlackRepository{
		client:        client,
		channelsCache: ttlcache.New(ttlcache.WithTTL[string, []slack.Channel](time.Hour)),
		retryCount:    10,
		retryInterval: 3 * time.Second,
		updateTails:   map[string]chan struct{}{},
	}
	go r.channelsCache.Start()

	// 失効時は自動で更新する
	r.channelsCache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[string, []slack.Channel]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		slog.Info("Refreshing channels cache")
		_, err := r.getChannels()
		if err != nil {
			slog.Error("Failed to refresh channels cache", slog.Any("err", err))
		}
	})
	return r
}

// WithRetry はSlack APIのリトライ回数と間隔を変更する
func (h *SlackRepository) WithRetry(count uint, interval time.Duration) *SlackRepository {
	h.retryCount = count
	h.retryInterval = interval
	return h
}

func (h *SlackRepository) Stop() {
	h.channelsCache.Stop()
}

func (h *SlackRepository) FlushChannelCache() {
	h.channelsCache.DeleteAll()
}

func (h *SlackRepository) getChannels() ([]slack.Channel, error) {
	cacheKey := "channels"
	if channels := h.channelsCache.Get(cacheKey); channels != nil {
		return channels.Value(), nil
	}
	nextCursor := ""
	channels := make([]slack.Channel, 0)
	for {
		cs, next, err := h.client.GetConversations(&slack.GetConversationsParameters{
			Limit:           1000,
			Cursor:          nextCursor,
			ExcludeArchived: false,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, cs...)
		if next == "" {
			break
		}
		nextCursor = next
	}

	h.channelsCache.Set(cacheKey, channels, ttlcache.DefaultTTL)
	return channels, nil
}

func (h *SlackRepository) GetChannelByID(channelID string) (*slack.Channel, error) {
	channels, err := h.getChannels()
	if err != nil {
		return nil, err
	}
	for _, c := range channels {
		if c.ID == channelID {
			return &c, nil
		}
	}
	return nil, ErrSlackNotFound
}

func (h *SlackRepository) GetChannelByName(name string) (*slack.Channel, error) {
	channels, err := h.getChannels()
	if err != nil {
		return nil, err
	}
	for _, c := range channels {
		if c.Name == strings.TrimPrefix(name, "#") {
			return &c, nil
		}
	}
	return nil, ErrSlackNotFound
}

// PostMessage は投稿したメッセージのタイムスタンプを返す
func (h *SlackRepository) PostMessage(channelID string, opts ...slack.MsgOption) (string, error) {
	var ts string
	err := retry.Retry(h.retryCount, h.retryInterval, func() error {
		var err error
		_, ts, err = h.client.PostMessage(channelID, opts...)
		if err != nil {
			slog.Warn("PostMessage", slog.Any("channelID", channelID), slog.Any("err", err))
		}
		return err
	})
	if err != nil {
		slog.Error("Failed to PostMessage", slog.Any("err", err))
		return "", err
	}
	return ts, nil
}

// UpdateMessage は非同期に更新する
// 同じメッセージへの更新は呼び出した順に反映される
func (h *SlackRepository) UpdateMessage(channelID, ts string, opts ...slack.MsgOption) {
	key := channelID + "/" + ts
	done := make(chan struct{})
	h.updateMu.Lock()
	prev := h.updateTails[key]
	h.updateTails[key] = done
	h.updateMu.Unlock()

	go func() {
		defer func() {
			h.updateMu.Lock()
			if h.updateTails[key] == done {
				delete(h.updateTails, key)
			}
			h.updateMu.Unlock()
			close(done)
		}()
		if prev != nil {
			<-prev
		}

		err := retry.Retry(h.retryCount, h.retryInterval, func() error {
			_, _, _, err := h.client.UpdateMessage(channelID, ts, opts...)
			if err != nil {
				slog.Warn("UpdateMessage", slog.Any("channelID", channelID), slog.Any("ts", ts), slog.Any("err", err))
			}
			return err
		})
		if err != nil {
			slog.Error("Failed to UpdateMessage", slog.Any("err", err))
		}
	}()
}

func (h *SlackRepository) OpenView(triggerID string, view slack.ModalViewRequest) error {
	err := retry.Retry(h.retryCount, h.retryInterval, func() error {
		_, err := h.client.OpenView(triggerID, view)
		if err != nil {
			slog.Warn("OpenView", slog.Any("triggerID", triggerID), slog.Any("err", err))
		}
		return err
	})
	if err != nil {
		slog.Error("Failed to OpenView", slog.Any("err", err))
	}
	return err
}
