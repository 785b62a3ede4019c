package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

func NewConfigRepository(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.AutomaticEnv()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ledger.poll_interval", "2s")
	v.SetDefault("workflow.success_window", "5s")
	v.SetDefault("lookup.cache_ttl", "10m")
	v.SetDefault("metrics.listen", ":9102")
	// 環境変数だけで設定できるよう、必須項目はキーを登録しておく
	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.contract_address", "")
	v.SetDefault("ledger.chain_id", 0)
	v.SetDefault("wallet.keystore_dir", "")
	v.SetDefault("wallet.account", "")

	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	var c Config
	err = v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

type Config struct {
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Lookup   LookupConfig   `mapstructure:"lookup"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LedgerConfig struct {
	RPCURL          string        `mapstructure:"rpc_url" validate:"required,url"`
	ContractAddress string        `mapstructure:"contract_address" validate:"required,eth_addr"`
	ChainID         uint64        `mapstructure:"chain_id"`
	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"gte=0"`
}

type WalletConfig struct {
	KeystoreDir string `mapstructure:"keystore_dir" validate:"omitempty,dirpath"`
	Account     string `mapstructure:"account" validate:"omitempty,eth_addr"`
}

type WorkflowConfig struct {
	SuccessWindow time.Duration `mapstructure:"success_window" validate:"gte=0"`
}

type LookupConfig struct {
	// 0 でキャッシュしない
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

type SlackConfig struct {
	AnnouncementChannels []string `mapstructure:"announcement_channels"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

func (c *Config) Validate() error {
	valid := validator.New()
	if err := valid.Struct(c); err != nil {
		return fmt.Errorf("validate config error: %w", err)
	}
	return nil
}

func (c *LedgerConfig) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

func (c *SlackConfig) AnnouncementChannelNames() []string {
	names := make([]string, 0, len(c.AnnouncementChannels))
	for _, ch := range c.AnnouncementChannels {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		names = append(names, ch)
	}
	return names
}
