package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pyama86/securereport/domain/entity"
	"github.com/pyama86/securereport/domain/metrics"
	"github.com/pyama86/securereport/domain/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mockConnector struct{}

func (mockConnector) Connect(context.Context) (common.Address, error) { return testAccount, nil }

func (mockConnector) Account() (common.Address, bool) { return testAccount, true }

// mockSubmitter は started に通知してから release を待つ
type mockSubmitter struct {
	calls        atomic.Int64
	err          error
	started      chan string
	release      chan struct{}
	descriptions []string
	mu           sync.Mutex
}

func (m *mockSubmitter) Submit(_ context.Context, description string) (*entity.Incident, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.descriptions = append(m.descriptions, description)
	err := m.err
	m.mu.Unlock()
	if m.started != nil {
		m.started <- description
	}
	if m.release != nil {
		<-m.release
	}
	if err != nil {
		return nil, err
	}
	return &entity.Incident{ID: uint64(m.calls.Load()), Description: description, ReportedBy: testAccount.Hex()}, nil
}

func (m *mockSubmitter) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type mockFetcher struct {
	release map[string]chan struct{}
	started chan string
}

func (m *mockFetcher) Fetch(_ context.Context, rawID string) (*entity.Incident, error) {
	if m.started != nil {
		m.started <- rawID
	}
	if ch, ok := m.release[rawID]; ok {
		<-ch
	}
	id, err := usecase.ParseIncidentID(rawID)
	if err != nil {
		return nil, err
	}
	if id == 999 {
		return nil, entity.ErrIncidentNotFound
	}
	return &entity.Incident{ID: id}, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []usecase.Event
}

func (r *eventRecorder) record(ev usecase.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) statuses(track usecase.TrackName) []usecase.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []usecase.Status
	for _, ev := range r.events {
		if ev.Track == track {
			out = append(out, ev.State.Status)
		}
	}
	return out
}

func TestWorkflow_SubmitSuccessWindow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	submitter := &mockSubmitter{}
	w := usecase.NewWorkflow(mockConnector{}, submitter, &mockFetcher{}, 20*time.Millisecond)
	defer w.Close()
	rec := &eventRecorder{}
	w.Subscribe(rec.record)

	w.SetPendingDescription("Power outage at site 4")
	incident, err := w.SubmitPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Power outage at site 4", incident.Description)

	s := w.Snapshot()
	assert.Equal(t, usecase.StatusSucceeded, s.Submit.Status)
	assert.True(t, s.Submit.ShowSuccess)
	assert.Empty(t, s.PendingDescription)

	require.Eventually(t, func() bool {
		return w.Snapshot().Submit.Status == usecase.StatusIdle
	}, time.Second, 5*time.Millisecond)

	s = w.Snapshot()
	assert.False(t, s.Submit.ShowSuccess)
	require.NotNil(t, s.Submit.Incident)
	assert.Equal(t, incident.ID, s.Submit.Incident.ID)

	require.Eventually(t, func() bool {
		return len(rec.statuses(usecase.TrackSubmit)) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t,
		[]usecase.Status{usecase.StatusInFlight, usecase.StatusSucceeded, usecase.StatusIdle},
		rec.statuses(usecase.TrackSubmit),
	)
	assert.Empty(t, rec.statuses(usecase.TrackFetch))
}

func TestWorkflow_NoSuccessWindow(t *testing.T) {
	w := usecase.NewWorkflow(mockConnector{}, &mockSubmitter{}, &mockFetcher{}, 0)
	defer w.Close()

	_, err := w.Submit(context.Background(), "x")
	require.NoError(t, err)

	s := w.Snapshot()
	assert.Equal(t, usecase.StatusSucceeded, s.Submit.Status)
	assert.False(t, s.Submit.ShowSuccess)
}

func TestWorkflow_RejectsDoubleSubmit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	submitter := &mockSubmitter{started: make(chan string, 1), release: make(chan struct{})}
	w := usecase.NewWorkflow(mockConnector{}, submitter, &mockFetcher{}, 0)
	defer w.Close()

	before := testutil.ToFloat64(metrics.OperationTotal.WithLabelValues("submit", "in_flight"))

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), "first")
		done <- err
	}()
	<-submitter.started
	assert.Equal(t, usecase.StatusInFlight, w.Snapshot().Submit.Status)

	incident, err := w.Submit(context.Background(), "second")
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, entity.ErrOperationInFlight)
	assert.True(t, entity.IsLocal(err))
	assert.EqualValues(t, 1, submitter.calls.Load())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.OperationTotal.WithLabelValues("submit", "in_flight")))

	close(submitter.release)
	require.NoError(t, <-done)
	assert.Equal(t, usecase.StatusSucceeded, w.Snapshot().Submit.Status)
	assert.Equal(t, []string{"first"}, submitter.descriptions)
}

func TestWorkflow_SubmitFailure(t *testing.T) {
	submitter := &mockSubmitter{}
	w := usecase.NewWorkflow(mockConnector{}, submitter, &mockFetcher{}, time.Hour)
	defer w.Close()
	ctx := context.Background()

	_, err := w.Submit(ctx, "first")
	require.NoError(t, err)

	submitter.setErr(entity.ErrTransactionReverted)
	w.SetPendingDescription("second")
	_, err = w.SubmitPending(ctx)
	assert.ErrorIs(t, err, entity.ErrTransactionReverted)

	s := w.Snapshot()
	assert.Equal(t, usecase.StatusFailed, s.Submit.Status)
	assert.Nil(t, s.Submit.Incident)
	assert.ErrorIs(t, s.Submit.Err, entity.ErrTransactionReverted)
	assert.False(t, s.Submit.ShowSuccess)
	// 失敗時は入力を残す
	assert.Equal(t, "second", s.PendingDescription)
}

func TestWorkflow_NewOperationCancelsSuccessWindow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	submitter := &mockSubmitter{}
	w := usecase.NewWorkflow(mockConnector{}, submitter, &mockFetcher{}, 30*time.Millisecond)
	defer w.Close()
	ctx := context.Background()

	_, err := w.Submit(ctx, "first")
	require.NoError(t, err)

	submitter.setErr(errors.New("boom"))
	_, err = w.Submit(ctx, "second")
	require.Error(t, err)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, usecase.StatusFailed, w.Snapshot().Submit.Status)
}

func TestWorkflow_CloseStopsTimers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	w := usecase.NewWorkflow(mockConnector{}, &mockSubmitter{}, &mockFetcher{}, 20*time.Millisecond)
	_, err := w.Submit(context.Background(), "x")
	require.NoError(t, err)
	w.Close()

	time.Sleep(60 * time.Millisecond)
	s := w.Snapshot()
	assert.Equal(t, usecase.StatusSucceeded, s.Submit.Status)
	assert.True(t, s.Submit.ShowSuccess)
}

func TestWorkflow_Fetch(t *testing.T) {
	w := usecase.NewWorkflow(mockConnector{}, &mockSubmitter{}, &mockFetcher{}, 0)
	defer w.Close()
	ctx := context.Background()

	incident, err := w.Fetch(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), incident.ID)
	assert.Equal(t, usecase.StatusSucceeded, w.Snapshot().Fetch.Status)

	_, err = w.Fetch(ctx, "abc")
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = w.Fetch(ctx, "999")
	assert.ErrorIs(t, err, entity.ErrIncidentNotFound)
	s := w.Snapshot()
	assert.Equal(t, usecase.StatusFailed, s.Fetch.Status)
	assert.Nil(t, s.Fetch.Incident)
	// 取得の失敗は送信側に影響しない
	assert.Equal(t, usecase.StatusIdle, s.Submit.Status)
}

func TestWorkflow_ConcurrentFetches(t *testing.T) {
	fetcher := &mockFetcher{
		started: make(chan string, 2),
		release: map[string]chan struct{}{"1": make(chan struct{}), "2": make(chan struct{})},
	}
	w := usecase.NewWorkflow(mockConnector{}, &mockSubmitter{}, fetcher, 0)
	defer w.Close()

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := w.Fetch(context.Background(), id)
			assert.NoError(t, err)
		}(id)
	}
	<-fetcher.started
	<-fetcher.started

	close(fetcher.release["1"])
	require.Eventually(t, func() bool {
		s := w.Snapshot().Fetch
		return s.Incident != nil && s.Incident.ID == 1
	}, time.Second, 5*time.Millisecond)
	// もう一方がまだ実行中
	assert.Equal(t, usecase.StatusInFlight, w.Snapshot().Fetch.Status)

	close(fetcher.release["2"])
	wg.Wait()
	s := w.Snapshot().Fetch
	assert.Equal(t, usecase.StatusSucceeded, s.Status)
	assert.Equal(t, uint64(2), s.Incident.ID)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", usecase.StatusIdle.String())
	assert.Equal(t, "in_flight", usecase.StatusInFlight.String())
	assert.Equal(t, "succeeded", usecase.StatusSucceeded.String())
	assert.Equal(t, "failed", usecase.StatusFailed.String())
}
