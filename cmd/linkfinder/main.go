// Command linkfinder starts the address-linking tracer: the Session
// Manager, its Traversal Engine and collaborators, and the Control Plane
// HTTP API that drives them.
package main

import (
	"log"

	"github.com/rawblock/linkfinder/internal/api"
	"github.com/rawblock/linkfinder/internal/checkpoint"
	"github.com/rawblock/linkfinder/internal/config"
	"github.com/rawblock/linkfinder/internal/db"
	"github.com/rawblock/linkfinder/internal/filter"
	"github.com/rawblock/linkfinder/internal/risk"
	"github.com/rawblock/linkfinder/internal/session"
	"github.com/rawblock/linkfinder/internal/traversal"
	"github.com/rawblock/linkfinder/internal/txcache"
	"github.com/rawblock/linkfinder/internal/txsource"
)

func main() {
	log.Println("Starting LinkFinder address-linking tracer...")

	cfg := config.Load()

	// ─── Tx Source (C1) ──────────────────────────────────────────────
	// Prefer a self-hosted, address-indexed node when credentials are
	// configured; fall back to the public explorer API otherwise.
	var source txsource.Source
	if cfg.BTCRPCUser != "" && cfg.BTCRPCPass != "" {
		rpcSrc, err := txsource.NewRPCSource(txsource.RPCConfig{
			Host:            cfg.BTCRPCHost,
			User:            cfg.BTCRPCUser,
			Pass:            cfg.BTCRPCPass,
			MaxTransactions: cfg.MaxTransactionsPerAddress,
		})
		if err != nil {
			log.Printf("Warning: Bitcoin RPC unavailable (%v), falling back to explorer source", err)
			source = txsource.NewExplorerSource(cfg.ExplorerBaseURL, cfg.MaxTransactionsPerAddress)
		} else {
			source = rpcSrc
		}
	} else {
		source = txsource.NewExplorerSource(cfg.ExplorerBaseURL, cfg.MaxTransactionsPerAddress)
	}

	cache := txcache.New(cfg.CacheMaxEntries, cfg.CacheTTL)

	// Confirmed mixer-service addresses feed straight into the filter's
	// drop decision, on top of its shape-based heuristics.
	watchlist := risk.NewWatchlist()
	f := filter.New(cfg, watchlist)
	engine := traversal.New(source, cache, f)

	cpStore, err := checkpoint.New(cfg.CheckpointDir)
	if err != nil {
		log.Fatalf("FATAL: failed to open checkpoint store at %s: %v", cfg.CheckpointDir, err)
	}

	mgr := session.New(source, engine, cpStore, cfg)

	// ─── Optional audit log ──────────────────────────────────────────
	if cfg.DatabaseURL != "" {
		auditDB, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: audit log database unavailable, continuing without it: %v", err)
		} else {
			defer auditDB.Close()
			if err := auditDB.InitSchema(); err != nil {
				log.Printf("Warning: audit log schema init failed: %v", err)
			}
			mgr = mgr.WithAudit(auditDB)
		}
	} else {
		log.Println("DATABASE_URL not set — running without an audit log")
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	r := api.SetupRouter(mgr, wsHub, watchlist)

	log.Printf("LinkFinder control plane listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
