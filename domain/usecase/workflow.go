package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pyama86/securereport/domain/entity"
	"github.com/pyama86/securereport/domain/metrics"
)

type TrackName string

const (
	TrackSubmit TrackName = "submit"
	TrackFetch  TrackName = "fetch"
)

type Status int

const (
	StatusIdle Status = iota
	StatusInFlight
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInFlight:
		return "in_flight"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// TrackSnapshot は操作ごとの状態
// 成功後は ShowSuccess の間だけ通知を出し、Idle に戻っても結果は保持する
type TrackSnapshot struct {
	Status      Status
	Incident    *entity.Incident
	Err         error
	ShowSuccess bool
	UpdatedAt   time.Time
}

type Snapshot struct {
	Submit             TrackSnapshot
	Fetch              TrackSnapshot
	PendingDescription string
}

// Event は状態遷移のたびに購読者へ通知される
type Event struct {
	Track TrackName
	State TrackSnapshot
}

type Connector interface {
	Connect(ctx context.Context) (common.Address, error)
	Account() (common.Address, bool)
}

type Submitter interface {
	Submit(ctx context.Context, description string) (*entity.Incident, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, rawID string) (*entity.Incident, error)
}

type track struct {
	name     TrackName
	state    TrackSnapshot
	inFlight int
	timer    *time.Timer
	// 遷移のたびに進め、古いタイマーを無効にする
	generation uint64
}

// Workflow は送信と取得の2つの独立した操作を順序付ける
type Workflow struct {
	sessions      Connector
	submitter     Submitter
	fetcher       Fetcher
	successWindow time.Duration

	mu          sync.Mutex
	submit      *track
	fetch       *track
	pending     string
	subscribers []func(Event)
	closed      bool
}

func NewWorkflow(sessions Connector, submitter Submitter, fetcher Fetcher, successWindow time.Duration) *Workflow {
	return &Workflow{
		sessions:      sessions,
		submitter:     submitter,
		fetcher:       fetcher,
		successWindow: successWindow,
		submit:        &track{name: TrackSubmit},
		fetch:         &track{name: TrackFetch},
	}
}

func (w *Workflow) Connect(ctx context.Context) (common.Address, error) {
	return w.sessions.Connect(ctx)
}

func (w *Workflow) Account() (common.Address, bool) {
	return w.sessions.Account()
}

// Subscribe は状態遷移の通知を受け取る関数を登録する
// 通知はロックの外で同期的に呼ばれる
func (w *Workflow) Subscribe(fn func(Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

func (w *Workflow) SetPendingDescription(description string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = description
}

func (w *Workflow) PendingDescription() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *Workflow) SubmitPending(ctx context.Context) (*entity.Incident, error) {
	return w.Submit(ctx, w.PendingDescription())
}

// Submit は送信中に再度呼ばれると台帳に触れずに ErrOperationInFlight を返す
func (w *Workflow) Submit(ctx context.Context, description string) (*entity.Incident, error) {
	w.mu.Lock()
	if w.submit.inFlight > 0 {
		w.mu.Unlock()
		err := fmt.Errorf("%w: an incident submission is already in progress", entity.ErrOperationInFlight)
		metrics.RecordOperation(string(TrackSubmit), entity.ErrorKind(err))
		return nil, err
	}
	ev := w.begin(w.submit)
	w.mu.Unlock()
	w.publish(ev)

	done := metrics.TrackInFlight(string(TrackSubmit))
	incident, err := w.submitter.Submit(ctx, description)
	done()
	metrics.RecordOperation(string(TrackSubmit), entity.ErrorKind(err))

	w.mu.Lock()
	if err == nil {
		w.pending = ""
	}
	ev = w.finish(w.submit, incident, err)
	w.mu.Unlock()
	w.publish(ev)

	return incident, err
}

// Fetch は同時に複数実行できる
// 最後に完了した取得の結果が反映される
func (w *Workflow) Fetch(ctx context.Context, rawID string) (*entity.Incident, error) {
	w.mu.Lock()
	ev := w.begin(w.fetch)
	w.mu.Unlock()
	w.publish(ev)

	done := metrics.TrackInFlight(string(TrackFetch))
	incident, err := w.fetcher.Fetch(ctx, rawID)
	done()
	metrics.RecordOperation(string(TrackFetch), entity.ErrorKind(err))

	w.mu.Lock()
	ev = w.finish(w.fetch, incident, err)
	w.mu.Unlock()
	w.publish(ev)

	return incident, err
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		Submit:             w.submit.state,
		Fetch:              w.fetch.state,
		PendingDescription: w.pending,
	}
}

// Close は保留中の成功表示タイマーを止める
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for _, t := range []*track{w.submit, w.fetch} {
		w.stopTimer(t)
	}
}

// begin はロックを保持した状態で呼ぶ
func (w *Workflow) begin(t *track) Event {
	t.inFlight++
	w.stopTimer(t)
	t.state.Status = StatusInFlight
	t.state.ShowSuccess = false
	t.state.UpdatedAt = time.Now()
	return Event{Track: t.name, State: t.state}
}

// finish はロックを保持した状態で呼ぶ
func (w *Workflow) finish(t *track, incident *entity.Incident, err error) Event {
	t.inFlight--
	status := StatusSucceeded
	if err != nil {
		status = StatusFailed
	}
	if t.inFlight > 0 {
		status = StatusInFlight
	}

	if err != nil {
		t.state = TrackSnapshot{Status: status, Err: err, UpdatedAt: time.Now()}
		return Event{Track: t.name, State: t.state}
	}

	t.state = TrackSnapshot{Status: status, Incident: incident, UpdatedAt: time.Now()}
	if status == StatusSucceeded && w.successWindow > 0 && !w.closed {
		t.state.ShowSuccess = true
		gen := t.generation
		t.timer = time.AfterFunc(w.successWindow, func() {
			w.expire(t, gen)
		})
	}
	return Event{Track: t.name, State: t.state}
}

func (w *Workflow) expire(t *track, gen uint64) {
	w.mu.Lock()
	if t.generation != gen || t.state.Status != StatusSucceeded {
		w.mu.Unlock()
		return
	}
	t.timer = nil
	t.state.Status = StatusIdle
	t.state.ShowSuccess = false
	t.state.UpdatedAt = time.Now()
	ev := Event{Track: t.name, State: t.state}
	w.mu.Unlock()
	w.publish(ev)
}

func (w *Workflow) stopTimer(t *track) {
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (w *Workflow) publish(ev Event) {
	w.mu.Lock()
	subs := make([]func(Event), len(w.subscribers))
	copy(subs, w.subscribers)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
