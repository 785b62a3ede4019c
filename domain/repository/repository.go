package repository

// TitleGenerator は無効化された AIRepository を nil インターフェースにする
func TitleGenerator(ai *AIRepository) AIRepositorier {
	if ai == nil {
		return nil
	}
	return ai
}

var (
	_ LedgerRepositoryer = (*LedgerRepository)(nil)
	_ SlackRepositoryer  = (*SlackRepository)(nil)
	_ AIRepositorier     = (*AIRepository)(nil)
	_ WalletProvider     = (*KeystoreWalletProvider)(nil)
	_ WalletProvider     = (*KeyWalletProvider)(nil)
)
