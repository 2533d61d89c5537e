package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const baseValidConfig = `
db_config:
  url: "postgres://localhost/aptos"
stream_config:
  indexer_grpc: "https://grpc.example.com"
nft_marketplace_configs:
  - name: "topkat"
    contract_address: "0xabc"
    event_model_mapping:
      "0x1::token::MintEvent": "MintEvent"
`

func TestLoadValidConfigDefaultsPoolSize(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, baseValidConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DbConfig.PoolSize != 10 {
		t.Fatalf("DbConfig.PoolSize = %d, want default 10", cfg.DbConfig.PoolSize)
	}
	if len(cfg.NFTMarketplaceConfigs) != 1 {
		t.Fatalf("NFTMarketplaceConfigs = %d, want 1", len(cfg.NFTMarketplaceConfigs))
	}
}

func TestLoadRejectsMissingDbURL(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
stream_config:
  indexer_grpc: "https://grpc.example.com"
nft_marketplace_configs:
  - name: "topkat"
    contract_address: "0xabc"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing db_config.url, got nil")
	}
}

func TestLoadRejectsEmptyMarketplaceList(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
db_config:
  url: "postgres://localhost/aptos"
stream_config:
  indexer_grpc: "https://grpc.example.com"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty nft_marketplace_configs, got nil")
	}
}

func TestLoadRejectsMalformedEventType(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
db_config:
  url: "postgres://localhost/aptos"
stream_config:
  indexer_grpc: "https://grpc.example.com"
nft_marketplace_configs:
  - name: "topkat"
    contract_address: "0xabc"
    event_model_mapping:
      "not-an-event-type": "MintEvent"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed event type key, got nil")
	}
}

func TestLoadRejectsUnknownActivityColumn(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
db_config:
  url: "postgres://localhost/aptos"
stream_config:
  indexer_grpc: "https://grpc.example.com"
nft_marketplace_configs:
  - name: "topkat"
    contract_address: "0xabc"
    event_model_mapping:
      "0x1::token::MintEvent": "MintEvent"
    events:
      "0x1::token::MintEvent":
        "data.to":
          - table: "activities"
            column: "not_a_real_column"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown activities column, got nil")
	}
}

func TestLoadRejectsUnsupportedTable(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
db_config:
  url: "postgres://localhost/aptos"
stream_config:
  indexer_grpc: "https://grpc.example.com"
nft_marketplace_configs:
  - name: "topkat"
    contract_address: "0xabc"
    event_model_mapping:
      "0x1::token::MintEvent": "MintEvent"
    resources:
      "0x1::token::TokenData":
        "data.name":
          - table: "collections"
            column: "title"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported table target, got nil")
	}
}
