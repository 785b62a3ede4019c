// Package ledgertest はインシデント台帳コントラクトをメモリ上で再現するバックエンド
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pyama86/securereport/domain/repository"
)

var ContractAddress = common.HexToAddress("0x3ab0dCEF4F1A3d005B68F2527F96C47FAb656BAC")

type record struct {
	description string
	reporter    common.Address
	timestamp   uint64
}

// Backend は repository.LedgerBackend を満たす
type Backend struct {
	mu       sync.Mutex
	abi      abi.ABI
	chainID  *big.Int
	records  map[uint64]record
	counter  uint64
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	pending  map[common.Hash]int
	block    uint64

	// Timestamp は次に記録されるインシデントの時刻
	Timestamp uint64
	// ConfirmAfter 回だけ receipt の問い合わせに NotFound を返す
	ConfirmAfter int
	RevertNext   bool
	DropEvents   bool
	CallErr      error
	// CallResult が設定されていればデコードせずにそのまま返す
	CallResult []byte
	SendErr      error
	EstimateErr  error

	Calls atomic.Int64
	Sends atomic.Int64
}

func New() *Backend {
	parsed, err := repository.IncidentContractABI()
	if err != nil {
		panic(err)
	}
	return &Backend{
		abi:       parsed,
		chainID:   big.NewInt(1337),
		records:   map[uint64]record{},
		nonces:    map[common.Address]uint64{},
		receipts:  map[common.Hash]*types.Receipt{},
		pending:   map[common.Hash]int{},
		Timestamp: 1700000000,
	}
}

func (b *Backend) ChainIDValue() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// Seed は送信を経由せずにインシデントを登録する
func (b *Backend) Seed(description string, reporter common.Address, timestamp uint64) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store(description, reporter, timestamp)
}

func (b *Backend) store(description string, reporter common.Address, timestamp uint64) uint64 {
	b.counter++
	b.records[b.counter] = record{description: description, reporter: reporter, timestamp: timestamp}
	return b.counter
}

func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.Calls.Add(1)
	if b.CallErr != nil {
		return nil, b.CallErr
	}
	if b.CallResult != nil {
		return b.CallResult, nil
	}
	if msg.To == nil || *msg.To != ContractAddress {
		return nil, nil
	}
	method, args, err := b.decode(msg.Data)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch method.Name {
	case repository.MethodGetIncident, repository.MethodIncidents:
		id := args[0].(*big.Int)
		var rec record
		var outID uint64
		if id.IsUint64() {
			if r, ok := b.records[id.Uint64()]; ok {
				rec = r
				outID = id.Uint64()
			}
		}
		return method.Outputs.Pack(
			new(big.Int).SetUint64(outID),
			rec.description,
			rec.reporter,
			new(big.Int).SetUint64(rec.timestamp),
		)
	case repository.MethodIncidentCounter:
		return method.Outputs.Pack(new(big.Int).SetUint64(b.counter))
	}
	return nil, fmt.Errorf("execution reverted: %s is not a view", method.Name)
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return 120_000, nil
}

func (b *Backend) ChainID(_ context.Context) (*big.Int, error) {
	return b.ChainIDValue(), nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.Sends.Add(1)
	if b.SendErr != nil {
		return b.SendErr
	}
	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	method, args, err := b.decode(tx.Data())
	if err != nil {
		return err
	}
	if method.Name != repository.MethodReportIncident {
		return fmt.Errorf("execution reverted: %s is a view", method.Name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if tx.Nonce() != b.nonces[from] {
		return fmt.Errorf("nonce too low: have %d want %d", tx.Nonce(), b.nonces[from])
	}
	b.nonces[from]++
	b.block++

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.block),
	}
	if b.RevertNext {
		b.RevertNext = false
		receipt.Status = types.ReceiptStatusFailed
	} else {
		description := args[0].(string)
		id := b.store(description, from, b.Timestamp)
		if !b.DropEvents {
			ev := b.abi.Events[repository.EventIncidentReported]
			data, err := ev.Inputs.NonIndexed().Pack(
				new(big.Int).SetUint64(id),
				description,
				from,
				new(big.Int).SetUint64(b.Timestamp),
			)
			if err != nil {
				return err
			}
			receipt.Logs = []*types.Log{{
				Address: ContractAddress,
				Topics:  []common.Hash{ev.ID},
				Data:    data,
				TxHash:  tx.Hash(),
			}}
		}
	}
	b.receipts[tx.Hash()] = receipt
	b.pending[tx.Hash()] = b.ConfirmAfter
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if b.pending[hash] > 0 {
		b.pending[hash]--
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) decode(data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("execution reverted: missing selector")
	}
	method, err := b.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}
