// Package config loads process-wide settings from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable named in the external interface table.
// All fields are read once at process start; the control plane neither
// exposes nor changes them.
type Config struct {
	MaxDepth                  int
	MaxTransactionsPerAddress int

	MixerInputThreshold       int
	MixerOutputThreshold      int
	SkipDistributionMaxInputs int
	SkipDistributionMinOutputs int
	SkipMixerInputThreshold   int
	SkipMixerOutputThreshold  int
	ExchangeWalletThreshold   int64

	MaxInputAddressesPerTx  int
	MaxOutputAddressesPerTx int

	CacheTTL         time.Duration
	CacheMaxEntries  int

	CheckpointInterval time.Duration
	CheckpointDir      string
	ExportDir          string

	Port string

	BTCRPCHost string
	BTCRPCUser string
	BTCRPCPass string

	ExplorerBaseURL string

	DatabaseURL string
}

// Load reads Config from the environment, applying the LinkFinder
// defaults for everything not security-sensitive. BTC RPC credentials
// and DATABASE_URL are optional: their absence degrades the process to
// an API-only / explorer-sourced mode rather than refusing to start.
func Load() Config {
	return Config{
		MaxDepth:                  getEnvIntOrDefault("MAX_DEPTH", 10),
		MaxTransactionsPerAddress: getEnvIntOrDefault("MAX_TRANSACTIONS_PER_ADDRESS", 50),

		MixerInputThreshold:        getEnvIntOrDefault("MIXER_INPUT_THRESHOLD", 30),
		MixerOutputThreshold:       getEnvIntOrDefault("MIXER_OUTPUT_THRESHOLD", 30),
		SkipDistributionMaxInputs:  getEnvIntOrDefault("SKIP_DISTRIBUTION_MAX_INPUTS", 2),
		SkipDistributionMinOutputs: getEnvIntOrDefault("SKIP_DISTRIBUTION_MIN_OUTPUTS", 100),
		SkipMixerInputThreshold:    getEnvIntOrDefault("SKIP_MIXER_INPUT_THRESHOLD", 50),
		SkipMixerOutputThreshold:   getEnvIntOrDefault("SKIP_MIXER_OUTPUT_THRESHOLD", 50),
		ExchangeWalletThreshold:    getEnvInt64OrDefault("EXCHANGE_WALLET_THRESHOLD", 1000),

		MaxInputAddressesPerTx:  getEnvIntOrDefault("MAX_INPUT_ADDRESSES_PER_TX", 50),
		MaxOutputAddressesPerTx: getEnvIntOrDefault("MAX_OUTPUT_ADDRESSES_PER_TX", 50),

		// The original Python implementation backs its cache with a SQLite
		// table under a 2048MB size cap (pruning the oldest 35% once
		// exceeded) plus a 24-hour staleness check on read. golang-lru's
		// expirable LRU only models entry-count + TTL, not a size cap, so
		// this is an adaptation, not a port: CACHE_MAX_ENTRIES stands in
		// for the size cap, and CACHE_TTL mirrors the original's 24-hour
		// invalidation window.
		CacheTTL:        getEnvDurationOrDefault("CACHE_TTL", 24*time.Hour),
		CacheMaxEntries: getEnvIntOrDefault("CACHE_MAX_ENTRIES", 10000),

		CheckpointInterval: getEnvDurationOrDefault("CHECKPOINT_INTERVAL", 300*time.Second),
		CheckpointDir:      getEnvOrDefault("CHECKPOINT_DIR", "./checkpoints"),
		ExportDir:          getEnvOrDefault("EXPORT_DIR", "./exports"),

		Port: getEnvOrDefault("PORT", "5339"),

		BTCRPCHost: getEnvOrDefault("BTC_RPC_HOST", "localhost:8332"),
		BTCRPCUser: os.Getenv("BTC_RPC_USER"),
		BTCRPCPass: os.Getenv("BTC_RPC_PASS"),

		ExplorerBaseURL: getEnvOrDefault("EXPLORER_BASE_URL", "https://blockstream.info/api"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[Config] invalid int for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

func getEnvInt64OrDefault(key string, fallback int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		log.Printf("[Config] invalid int64 for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

func getEnvDurationOrDefault(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("[Config] invalid duration seconds for %s=%q, using default %s", key, val, fallback)
		return fallback
	}
	return time.Duration(secs) * time.Second
}
