package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pyama86/securereport/domain/entity"
	"github.com/pyama86/securereport/domain/metrics"
	"github.com/pyama86/securereport/domain/repository"
	"golang.org/x/sync/singleflight"
)

// SessionManager はアクティブなウォレットセッションを1つだけ保持する
type SessionManager struct {
	provider repository.WalletProvider

	mu      sync.RWMutex
	session *repository.Session

	// 同時に connect されても、ウォレットへの要求は1つだけにする
	connecting singleflight.Group
}

func NewSessionManager(provider repository.WalletProvider) *SessionManager {
	return &SessionManager{provider: provider}
}

// Connect はウォレットにアカウントを要求し、セッションを置き換える
// 失敗した場合は以前のセッションがそのまま残る
func (m *SessionManager) Connect(ctx context.Context) (common.Address, error) {
	if m.provider == nil {
		metrics.RecordConnect(entity.ErrorKind(entity.ErrProviderUnavailable))
		return common.Address{}, fmt.Errorf("%w: configure a keystore or private key", entity.ErrProviderUnavailable)
	}

	v, err, _ := m.connecting.Do("connect", func() (any, error) {
		return m.connect(ctx)
	})
	metrics.RecordConnect(entity.ErrorKind(err))
	if err != nil {
		return common.Address{}, err
	}
	return v.(common.Address), nil
}

func (m *SessionManager) connect(ctx context.Context) (common.Address, error) {
	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", entity.ErrConnectionRejected, err)
	}
	if len(accounts) == 0 {
		return common.Address{}, fmt.Errorf("%w: wallet returned no accounts", entity.ErrConnectionRejected)
	}
	account := accounts[0]

	signer, err := m.provider.Signer(ctx, account)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", entity.ErrConnectionRejected, err)
	}

	m.mu.Lock()
	m.session = &repository.Session{
		Account:     account,
		Signer:      signer,
		ConnectedAt: time.Now(),
	}
	m.mu.Unlock()

	slog.Info("wallet connected", slog.String("account", account.Hex()))
	return account, nil
}

// Current は呼び出し時点のセッションを返す
func (m *SessionManager) Current() *repository.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *SessionManager) Account() (common.Address, bool) {
	s := m.Current()
	if s == nil {
		return common.Address{}, false
	}
	return s.Account, true
}

func (m *SessionManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}
