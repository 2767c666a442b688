package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// DeploymentConfig represents deployments.json.
type DeploymentConfig struct {
	ChainID   int64 `json:"chainId"`
	Contracts struct {
		StickFigureDevelopers string `json:"StickFigureDevelopers"`
	} `json:"contracts"`
}

// AppConfig is the merged result of defaults, the settings file, the
// deployments file and the environment, in that order.
type AppConfig struct {
	Service ServiceConfig `yaml:"service"`
	Chain   ChainConfig   `yaml:"chain"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Links   LinksConfig   `yaml:"links"`
	Page    PageConfig    `yaml:"page"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Log     LogConfig     `yaml:"log"`
	Mint    MintConfig    `yaml:"mint"`
}

type ServiceConfig struct {
	HTTPPort int    `yaml:"httpPort"`
	BindAddr string `yaml:"bindAddr"`
	// FormSecret signs the page's form tokens. Load generates one when unset, so
	// tokens issued before a restart stop verifying.
	FormSecret   string        `yaml:"formSecret"`
	FormTokenTTL time.Duration `yaml:"formTokenTTL"`
	ShutdownWait time.Duration `yaml:"shutdownWait"`
}

type ChainConfig struct {
	RPCURL          string `yaml:"rpcUrl"`
	ExpectedChainID int64  `yaml:"expectedChainId"`
	ContractAddress string `yaml:"contractAddress"`
	DeploymentsPath string `yaml:"deploymentsPath"`
	// ABIPath optionally replaces the embedded contract ABI.
	ABIPath    string        `yaml:"abiPath"`
	RPCTimeout time.Duration `yaml:"rpcTimeout"`
}

type WalletConfig struct {
	KeystoreDir string `yaml:"keystoreDir"`
	PrivateKey  string `yaml:"privateKey"`
}

type LinksConfig struct {
	MarketplaceBase string `yaml:"marketplaceBase"`
	ExplorerBase    string `yaml:"explorerBase"`
}

type PageConfig struct {
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	TwitterHandle string `yaml:"twitterHandle"`
}

type LedgerConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

type MintConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
}

const (
	LedgerMemory   = "memory"
	LedgerFile     = "file"
	LedgerPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

// Default returns the settings of the public test deployment.
func Default() *AppConfig {
	return &AppConfig{
		Service: ServiceConfig{
			HTTPPort:     3000,
			FormTokenTTL: time.Hour,
			ShutdownWait: 10 * time.Second,
		},
		Chain: ChainConfig{
			RPCURL:          "http://127.0.0.1:8545",
			ExpectedChainID: 4,
			ContractAddress: "0xCB0Cae20BB14412dB346Dd96Ce75592a2911c5D5",
			RPCTimeout:      10 * time.Second,
		},
		Links: LinksConfig{
			MarketplaceBase: "https://testnets.opensea.io/assets",
			ExplorerBase:    "https://rinkeby.etherscan.io",
		},
		Page: PageConfig{
			Title:         "Stick Figure Developers",
			Description:   "Each unique. Each beautiful. Discover your NFT today.",
			TwitterHandle: "jovanjester",
		},
		Ledger: LedgerConfig{Driver: LedgerMemory},
		Log:    LogConfig{Level: "info", Format: "json"},
		Mint:   MintConfig{PollInterval: 2 * time.Second},
	}
}

// Load aggregates configuration from disk and environment. An empty path skips
// the settings file.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path = envOr("STICKFIGURES_CONFIG", path); path != "" {
		if err := loadSettings(path, cfg); err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
	}

	if deployments := envOr("STICKFIGURES_DEPLOYMENTS_PATH", cfg.Chain.DeploymentsPath); deployments != "" {
		dep, err := loadDeployments(deployments)
		if err != nil {
			return nil, fmt.Errorf("load deployments: %w", err)
		}
		if addr := dep.Contracts.StickFigureDevelopers; addr != "" {
			cfg.Chain.ContractAddress = addr
		}
		if dep.ChainID != 0 {
			cfg.Chain.ExpectedChainID = dep.ChainID
		}
	}

	applyEnv(cfg)

	if cfg.Service.FormSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate form secret: %w", err)
		}
		cfg.Service.FormSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Service.HTTPPort = envOrInt("STICKFIGURES_HTTP_PORT", cfg.Service.HTTPPort)
	cfg.Service.FormSecret = envOr("STICKFIGURES_FORM_SECRET", cfg.Service.FormSecret)
	cfg.Chain.RPCURL = envOr("STICKFIGURES_RPC_URL", cfg.Chain.RPCURL)
	cfg.Chain.ExpectedChainID = int64(envOrInt("STICKFIGURES_EXPECTED_CHAIN_ID", int(cfg.Chain.ExpectedChainID)))
	cfg.Chain.ContractAddress = envOr("STICKFIGURES_CONTRACT_ADDRESS", cfg.Chain.ContractAddress)
	cfg.Wallet.KeystoreDir = envOr("STICKFIGURES_KEYSTORE_DIR", cfg.Wallet.KeystoreDir)
	cfg.Wallet.PrivateKey = envOr("STICKFIGURES_PRIVATE_KEY", cfg.Wallet.PrivateKey)
	cfg.Ledger.DSN = envOr("STICKFIGURES_LEDGER_DSN", cfg.Ledger.DSN)
	if cfg.Ledger.DSN != "" && cfg.Ledger.Driver == LedgerMemory {
		cfg.Ledger.Driver = LedgerPostgres
	}
	cfg.Log.Level = envOr("STICKFIGURES_LOG_LEVEL", cfg.Log.Level)
}

// Validate rejects settings the service cannot start with.
func (c *AppConfig) Validate() error {
	if !common.IsHexAddress(c.Chain.ContractAddress) {
		return fmt.Errorf("%w: contract address %q", ErrInvalidConfig, c.Chain.ContractAddress)
	}
	if c.Chain.ExpectedChainID <= 0 {
		return fmt.Errorf("%w: expected chain id %d", ErrInvalidConfig, c.Chain.ExpectedChainID)
	}
	if c.Service.HTTPPort < 0 || c.Service.HTTPPort > 65535 {
		return fmt.Errorf("%w: http port %d", ErrInvalidConfig, c.Service.HTTPPort)
	}
	switch c.Ledger.Driver {
	case LedgerMemory:
	case LedgerFile:
		if c.Ledger.Path == "" {
			return fmt.Errorf("%w: file ledger needs a path", ErrInvalidConfig)
		}
	case LedgerPostgres:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("%w: postgres ledger needs a dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: ledger driver %q", ErrInvalidConfig, c.Ledger.Driver)
	}
	return nil
}

// Contract returns the configured contract address. Call after Validate.
func (c *AppConfig) Contract() common.Address {
	return common.HexToAddress(c.Chain.ContractAddress)
}

func loadSettings(path string, cfg *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, cfg)
}

func loadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
