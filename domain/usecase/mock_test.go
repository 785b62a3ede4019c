package usecase_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pyama86/securereport/domain/repository"
	"github.com/pyama86/securereport/domain/repository/ledgertest"
	"github.com/pyama86/securereport/domain/usecase"
	"github.com/stretchr/testify/require"
)

// Hardhat の既定アカウント #0
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testAccount = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// ------------------------
// Mock repositories
// ------------------------
type staticSessions struct {
	session *repository.Session
}

func (s *staticSessions) Current() *repository.Session {
	return s.session
}

func activeSessions() *staticSessions {
	return &staticSessions{session: &repository.Session{Account: testAccount, ConnectedAt: time.Now()}}
}

type mockLedger struct {
	calls   atomic.Int64
	submits atomic.Int64
	awaits  atomic.Int64

	callFn  func(method string, args ...any) ([]any, error)
	receipt *repository.Receipt
	err     error
}

func (m *mockLedger) Call(_ context.Context, method string, args ...any) ([]any, error) {
	m.calls.Add(1)
	if m.callFn != nil {
		return m.callFn(method, args...)
	}
	return nil, errors.New("unexpected call")
}

func (m *mockLedger) Submit(_ context.Context, method string, _ ...any) (*repository.TransactionHandle, error) {
	m.submits.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &repository.TransactionHandle{Hash: common.HexToHash("0xabc"), From: testAccount, SubmittedAt: time.Now()}, nil
}

func (m *mockLedger) AwaitConfirmation(_ context.Context, _ *repository.TransactionHandle) (*repository.Receipt, error) {
	m.awaits.Add(1)
	return m.receipt, nil
}

type mockWalletProvider struct {
	mu          sync.Mutex
	accounts    []common.Address
	requestErr  error
	signerErr   error
	requests    atomic.Int64
	release     chan struct{}
	requestSeen chan struct{}
}

func (m *mockWalletProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	m.requests.Add(1)
	if m.requestSeen != nil {
		select {
		case m.requestSeen <- struct{}{}:
		default:
		}
	}
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts, m.requestErr
}

func (m *mockWalletProvider) Signer(_ context.Context, account common.Address) (repository.Signer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signerErr != nil {
		return nil, m.signerErr
	}
	return &noopSigner{address: account}, nil
}

func (m *mockWalletProvider) set(accounts []common.Address, requestErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = accounts
	m.requestErr = requestErr
}

type noopSigner struct {
	address common.Address
}

func (s *noopSigner) Address() common.Address { return s.address }

func (s *noopSigner) SignTx(_ context.Context, tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return tx, nil
}

// ledgerFixture は実際のABIエンコードを通すメモリ上の台帳
type ledgerFixture struct {
	backend  *ledgertest.Backend
	sessions *usecase.SessionManager
	ledger   *repository.LedgerRepository
}

func newLedgerFixture(t *testing.T, connect bool) *ledgerFixture {
	t.Helper()
	provider, err := repository.NewKeyWalletProvider(testKey)
	require.NoError(t, err)
	sessions := usecase.NewSessionManager(provider)
	if connect {
		_, err := sessions.Connect(context.Background())
		require.NoError(t, err)
	}

	backend := ledgertest.New()
	ledger, err := repository.NewLedgerRepository(backend, ledgertest.ContractAddress, sessions, repository.LedgerConfig{
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return &ledgerFixture{backend: backend, sessions: sessions, ledger: ledger}
}

func incidentTuple(id *big.Int, description string, reporter common.Address, ts *big.Int) []any {
	return []any{id, description, reporter, ts}
}
