package repository

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer はアクティブなアカウントでトランザクションに署名する
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// WalletProvider はアカウント要求と署名者の取得ができるウォレット
type WalletProvider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Signer(ctx context.Context, account common.Address) (Signer, error)
}

// Session は接続済みのウォレットセッション
type Session struct {
	Account     common.Address
	Signer      Signer
	ConnectedAt time.Time
}

// SessionSource は呼び出し時点のセッションを返す
type SessionSource interface {
	Current() *Session
}

// NewWalletProvider は環境変数と設定からウォレットを選ぶ
// どちらも設定されていなければ nil を返す
func NewWalletProvider(cfg WalletConfig) (WalletProvider, error) {
	if key := os.Getenv("WALLET_PRIVATE_KEY"); key != "" {
		p, err := NewKeyWalletProvider(key)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	if cfg.KeystoreDir != "" {
		return NewKeystoreWalletProvider(cfg.KeystoreDir, cfg.Account, os.Getenv("WALLET_PASSPHRASE")), nil
	}
	return nil, nil
}

type KeystoreWalletProvider struct {
	ks         *keystore.KeyStore
	account    string
	passphrase string
}

func NewKeystoreWalletProvider(dir, account, passphrase string) *KeystoreWalletProvider {
	return &KeystoreWalletProvider{
		ks:         keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
		account:    account,
		passphrase: passphrase,
	}
}

func (p *KeystoreWalletProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	if p.account != "" {
		if !common.IsHexAddress(p.account) {
			return nil, fmt.Errorf("invalid wallet account %q", p.account)
		}
		acc, err := p.ks.Find(accounts.Account{Address: common.HexToAddress(p.account)})
		if err != nil {
			return nil, fmt.Errorf("failed to find account %s in keystore: %w", p.account, err)
		}
		return []common.Address{acc.Address}, nil
	}

	accs := p.ks.Accounts()
	addrs := make([]common.Address, 0, len(accs))
	for _, a := range accs {
		addrs = append(addrs, a.Address)
	}
	return addrs, nil
}

// Signer はパスフレーズでアカウントをアンロックする
// アンロックに失敗した場合は承認拒否として扱われる
func (p *KeystoreWalletProvider) Signer(_ context.Context, account common.Address) (Signer, error) {
	acc, err := p.ks.Find(accounts.Account{Address: account})
	if err != nil {
		return nil, fmt.Errorf("failed to find account %s in keystore: %w", account.Hex(), err)
	}
	if err := p.ks.Unlock(acc, p.passphrase); err != nil {
		return nil, fmt.Errorf("failed to unlock account %s: %w", account.Hex(), err)
	}
	return &keystoreSigner{ks: p.ks, account: acc}, nil
}

type keystoreSigner struct {
	ks      *keystore.KeyStore
	account accounts.Account
}

func (s *keystoreSigner) Address() common.Address {
	return s.account.Address
}

func (s *keystoreSigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return s.ks.SignTx(s.account, tx, chainID)
}

// KeyWalletProvider は秘密鍵1つだけを持つウォレット
type KeyWalletProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewKeyWalletProvider(hexKey string) (*KeyWalletProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet private key: %w", err)
	}
	return &KeyWalletProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (p *KeyWalletProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *KeyWalletProvider) Signer(_ context.Context, account common.Address) (Signer, error) {
	if account != p.address {
		return nil, fmt.Errorf("account %s is not managed by this wallet", account.Hex())
	}
	return &keySigner{key: p.key, address: p.address}, nil
}

type keySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func (s *keySigner) Address() common.Address {
	return s.address
}

func (s *keySigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
