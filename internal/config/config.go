// Package config loads the process-wide YAML configuration: database and
// server settings, the upstream gRPC stream settings, and the list of
// per-marketplace declarative remapping configs.
package config

import (
	"fmt"
	"os"

	"aptos-nft-indexer/internal/decoder"

	"gopkg.in/yaml.v3"
)

type Config struct {
	TappURL                string                  `yaml:"tapp_url"`
	ServerConfig            ServerConfig            `yaml:"server_config"`
	DbConfig                DbConfig                `yaml:"db_config"`
	StreamConfig            StreamConfig            `yaml:"stream_config"`
	NFTMarketplaceConfigs   []NFTMarketplaceConfig  `yaml:"nft_marketplace_configs"`
}

type ServerConfig struct {
	Port uint16 `yaml:"port"`
}

type DbConfig struct {
	URL      string `yaml:"url"`
	PoolSize uint32 `yaml:"pool_size"`
}

type StreamConfig struct {
	IndexerGRPC     string `yaml:"indexer_grpc"`
	AuthToken       string `yaml:"auth_token"`
	StartingVersion uint64 `yaml:"starting_version"`
	EndingVersion   *uint64 `yaml:"ending_version"`
	Active          bool   `yaml:"active"`
}

// NFTMarketplaceConfig is one marketplace's declarative remapping config,
// read once per process and never mutated afterward.
type NFTMarketplaceConfig struct {
	Name               string                                     `yaml:"name"`
	ContractAddress    string                                     `yaml:"contract_address"`
	StartingVersion    uint64                                     `yaml:"starting_version"`
	EventModelMapping  map[string]string                          `yaml:"event_model_mapping"`
	Events             map[string]map[string][]ConfigDbColumn     `yaml:"events"`
	Resources          map[string]map[string][]ConfigDbColumn     `yaml:"resources"`
}

// ConfigDbColumn mirrors models.DbColumn in a YAML-friendly shape.
type ConfigDbColumn struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// knownActivityColumns is the total set of activity fields the remapper's
// field setter understands; anything else is rejected at config load.
// Keep this in sync with internal/remap.setField's switch.
var knownActivityColumns = map[string]bool{
	"sender": true, "receiver": true, "seller": true, "buyer": true,
	"price": true, "amount": true, "nft_id": true, "collection_id": true,
	"nonce": true, "listed": true, "bid_id": true, "bidder": true,
	"bid_kind": true, "created_tx_id": true, "accepted_tx_id": true,
	"cancelled_tx_id": true, "expiration_time": true, "start_time": true,
	"duration": true, "contract_address": true, "marketplace": true,
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if cfg.DbConfig.PoolSize == 0 {
		cfg.DbConfig.PoolSize = 10
	}

	return &cfg, nil
}

// validate fails fast at startup on a missing or inconsistent config,
// before any pipeline connects upstream.
func (c *Config) validate() error {
	if c.DbConfig.URL == "" {
		return fmt.Errorf("db_config.url is required")
	}
	if c.StreamConfig.IndexerGRPC == "" {
		return fmt.Errorf("stream_config.indexer_grpc is required")
	}
	if len(c.NFTMarketplaceConfigs) == 0 {
		return fmt.Errorf("nft_marketplace_configs must not be empty")
	}
	for _, mc := range c.NFTMarketplaceConfigs {
		if mc.Name == "" {
			return fmt.Errorf("nft_marketplace_configs: name is required")
		}
		if mc.ContractAddress == "" {
			return fmt.Errorf("marketplace %q: contract_address is required", mc.Name)
		}
		for rawType, kind := range mc.EventModelMapping {
			if _, err := decoder.ParseEventType(rawType); err != nil {
				return fmt.Errorf("marketplace %q: event_model_mapping key %q: %w", mc.Name, rawType, err)
			}
			if kind == "" {
				return fmt.Errorf("marketplace %q: event_model_mapping[%q] has empty kind", mc.Name, rawType)
			}
		}
		if err := validateColumnTables(mc.Name, "events", mc.Events); err != nil {
			return err
		}
		if err := validateColumnTables(mc.Name, "resources", mc.Resources); err != nil {
			return err
		}
	}
	return nil
}

// validateColumnTables rejects any DbColumn referencing an activities column
// the remapper's field setter does not recognize, and any table target other
// than "activities", the only table remapping writes today.
func validateColumnTables(marketplace, section string, tables map[string]map[string][]ConfigDbColumn) error {
	for rawType, byPath := range tables {
		for path, cols := range byPath {
			for _, col := range cols {
				if col.Table != "activities" {
					return fmt.Errorf("marketplace %q: %s[%q][%q]: unsupported table %q", marketplace, section, rawType, path, col.Table)
				}
				if !knownActivityColumns[col.Column] {
					return fmt.Errorf("marketplace %q: %s[%q][%q]: unknown column %q", marketplace, section, rawType, path, col.Column)
				}
			}
		}
	}
	return nil
}
