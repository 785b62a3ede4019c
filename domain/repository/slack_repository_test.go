package repository_test

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slacktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyama86/securereport/domain/repository"
)

type listedChannel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsArchived bool   `json:"is_archived"`
}

func TestSlackRepository_UpdateMessageKeepsOrder(t *testing.T) {
	var mu sync.Mutex
	var applied []string
	var requests atomic.Int64
	srv := slacktest.NewTestServer(func(c slacktest.Customize) {
		c.Handle("/chat.update", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			w.Header().Set("Content-Type", "application/json")
			// 最初の更新だけ失敗させてリトライさせる
			if requests.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"ok":false,"error":"internal_error"}`))
				return
			}
			mu.Lock()
			applied = append(applied, r.FormValue("text"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"channel":"CINC","ts":"1700000000.000001"}`))
		}))
	})
	go srv.Start()
	defer srv.Stop()

	api := slack.New("dummy", slack.OptionAPIURL(srv.GetAPIURL()))
	r := repository.NewSlackRepository(api).WithRetry(3, 50*time.Millisecond)
	defer r.Stop()

	r.UpdateMessage("CINC", "1700000000.000001", slack.MsgOptionText("banner", false))
	r.UpdateMessage("CINC", "1700000000.000001", slack.MsgOptionText("details", false))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"banner", "details"}, applied)
}

func TestSlackRepository_ChannelLookup(t *testing.T) {
	var lists atomic.Int64
	srv := slacktest.NewTestServer(func(c slacktest.Customize) {
		c.Handle("/conversations.list", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lists.Add(1)
			resp := struct {
				OK       bool            `json:"ok"`
				Channels []listedChannel `json:"channels"`
			}{
				OK: true,
				Channels: []listedChannel{
					{ID: "C0123456789", Name: "security"},
					{ID: "CARCH", Name: "archived", IsArchived: true},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		}))
	})
	go srv.Start()
	defer srv.Stop()

	api := slack.New("dummy", slack.OptionAPIURL(srv.GetAPIURL()))
	r := repository.NewSlackRepository(api).WithRetry(1, 0)
	defer r.Stop()

	byID, err := r.GetChannelByID("C0123456789")
	require.NoError(t, err)
	assert.Equal(t, "security", byID.Name)

	byName, err := r.GetChannelByName("#archived")
	require.NoError(t, err)
	assert.True(t, byName.IsArchived)

	_, err = r.GetChannelByID("CMISSING01")
	assert.ErrorIs(t, err, repository.ErrSlackNotFound)
	assert.Equal(t, int64(1), lists.Load())

	r.FlushChannelCache()
	_, err = r.GetChannelByName("security")
	require.NoError(t, err)
	assert.Equal(t, int64(2), lists.Load())
}
