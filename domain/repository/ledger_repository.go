package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pyama86/securereport/domain/entity"
)

const defaultPollInterval = 2 * time.Second

// LedgerBackend は台帳ノードへの接続
// *ethclient.Client がそのまま満たす
type LedgerBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

type LedgerRepositoryer interface {
	Call(ctx context.Context, method string, args ...any) ([]any, error)
	Submit(ctx context.Context, method string, args ...any) (*TransactionHandle, error)
	AwaitConfirmation(ctx context.Context, handle *TransactionHandle) (*Receipt, error)
}

// TransactionHandle は送信済みで未確定のトランザクション
type TransactionHandle struct {
	Hash        common.Hash
	From        common.Address
	Nonce       uint64
	SubmittedAt time.Time
}

// Receipt は確定したトランザクションとコントラクトが発行したイベント
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Events      []Event
}

// Event はABIでデコード済みのイベント
// Args はイベント定義の引数順、Fields は引数名で引ける
type Event struct {
	Name   string
	Args   []any
	Fields map[string]any
}

type LedgerRepository struct {
	backend      LedgerBackend
	contract     common.Address
	abi          abi.ABI
	sessions     SessionSource
	chainID      *big.Int
	pollInterval time.Duration
}

func NewLedgerRepository(backend LedgerBackend, contract common.Address, sessions SessionSource, cfg LedgerConfig) (*LedgerRepository, error) {
	parsed, err := IncidentContractABI()
	if err != nil {
		return nil, err
	}
	r := &LedgerRepository{
		backend:      backend,
		contract:     contract,
		abi:          parsed,
		sessions:     sessions,
		pollInterval: cfg.PollInterval,
	}
	if cfg.ChainID > 0 {
		r.chainID = new(big.Int).SetUint64(cfg.ChainID)
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	return r, nil
}

// DialLedger は RPC URL に接続して読み取り用のバインディングを作る
func DialLedger(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial ledger %s: %v", entity.ErrNetwork, rpcURL, err)
	}
	return client, nil
}

func (r *LedgerRepository) Contract() common.Address {
	return r.contract
}

// Call は状態を変更しない呼び出し
// セッションがあればその from で呼び出すが、なくても呼び出せる
func (r *LedgerRepository) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &r.contract, Data: data}
	if s := r.currentSession(); s != nil {
		msg.From = s.Account
	}

	out, err := r.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, classifyRPCError(fmt.Sprintf("failed to call %s", method), err)
	}

	values, err := r.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unpack %s result: %v", entity.ErrMalformedReceipt, method, err)
	}
	return values, nil
}

// Submit は状態を変更するトランザクションを署名して送信する
// 確定は待たない
func (r *LedgerRepository) Submit(ctx context.Context, method string, args ...any) (*TransactionHandle, error) {
	session := r.currentSession()
	if session == nil {
		return nil, fmt.Errorf("%w: connect a wallet before calling %s", entity.ErrNoActiveSession, method)
	}

	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	chainID, err := r.getChainID(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := r.backend.PendingNonceAt(ctx, session.Account)
	if err != nil {
		return nil, classifyRPCError("failed to get nonce", err)
	}

	gasPrice, err := r.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classifyRPCError("failed to suggest gas price", err)
	}

	gas, err := r.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: session.Account,
		To:   &r.contract,
		Data: data,
	})
	if err != nil {
		return nil, classifyRPCError(fmt.Sprintf("failed to estimate gas for %s", method), err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &r.contract,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := session.Signer.SignTx(ctx, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign %s: %v", entity.ErrConnectionRejected, method, err)
	}

	if err := r.backend.SendTransaction(ctx, signed); err != nil {
		return nil, classifyRPCError(fmt.Sprintf("failed to send %s", method), err)
	}

	slog.Info("transaction submitted",
		slog.String("method", method),
		slog.String("tx", signed.Hash().Hex()),
		slog.String("from", session.Account.Hex()),
		slog.Uint64("nonce", nonce),
	)

	return &TransactionHandle{
		Hash:        signed.Hash(),
		From:        session.Account,
		Nonce:       nonce,
		SubmittedAt: time.Now(),
	}, nil
}

// AwaitConfirmation はトランザクションが確定するまで待つ
// タイムアウトは設けないので、中断は ctx で行う
func (r *LedgerRepository) AwaitConfirmation(ctx context.Context, handle *TransactionHandle) (*Receipt, error) {
	if handle == nil {
		return nil, fmt.Errorf("transaction handle is nil")
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := r.backend.TransactionReceipt(ctx, handle.Hash)
		if err == nil && receipt != nil {
			return r.decodeReceipt(receipt)
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, classifyRPCError(fmt.Sprintf("failed to get receipt of %s", handle.Hash.Hex()), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *LedgerRepository) decodeReceipt(receipt *types.Receipt) (*Receipt, error) {
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, fmt.Errorf("%w: %s", entity.ErrTransactionReverted, receipt.TxHash.Hex())
	}

	out := &Receipt{
		TxHash: receipt.TxHash,
		Events: make([]Event, 0, len(receipt.Logs)),
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}

	for _, log := range receipt.Logs {
		if log == nil || log.Address != r.contract || len(log.Topics) == 0 {
			continue
		}
		ev, err := r.abi.EventByID(log.Topics[0])
		if err != nil {
			// 知らないイベントは読み飛ばす
			continue
		}
		fields := make(map[string]any, len(ev.Inputs))
		if err := ev.Inputs.UnpackIntoMap(fields, log.Data); err != nil {
			return nil, fmt.Errorf("%w: failed to unpack %s: %v", entity.ErrMalformedReceipt, ev.Name, err)
		}
		var indexed abi.Arguments
		for _, in := range ev.Inputs {
			if in.Indexed {
				indexed = append(indexed, in)
			}
		}
		if len(indexed) > 0 {
			if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
				return nil, fmt.Errorf("%w: failed to parse %s topics: %v", entity.ErrMalformedReceipt, ev.Name, err)
			}
		}
		args := make([]any, 0, len(ev.Inputs))
		for _, in := range ev.Inputs {
			args = append(args, fields[in.Name])
		}
		out.Events = append(out.Events, Event{Name: ev.Name, Args: args, Fields: fields})
	}

	slog.Info("transaction confirmed",
		slog.String("tx", out.TxHash.Hex()),
		slog.Uint64("block", out.BlockNumber),
		slog.Int("events", len(out.Events)),
	)
	return out, nil
}

func (r *LedgerRepository) getChainID(ctx context.Context) (*big.Int, error) {
	if r.chainID != nil {
		return r.chainID, nil
	}
	id, err := r.backend.ChainID(ctx)
	if err != nil {
		return nil, classifyRPCError("failed to get chain id", err)
	}
	return id, nil
}

func (r *LedgerRepository) currentSession() *Session {
	if r.sessions == nil {
		return nil
	}
	return r.sessions.Current()
}

func classifyRPCError(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return fmt.Errorf("%w: %s: %v", entity.ErrTransactionReverted, msg, err)
	}
	return fmt.Errorf("%w: %s: %v", entity.ErrNetwork, msg, err)
}
