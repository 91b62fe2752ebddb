package txsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/rawblock/linkfinder/internal/model"
)

// RPCConfig addresses a self-hosted, address-indexed Bitcoin node over a
// plain-HTTP JSON-RPC connection, TLS disabled (Bitcoin Core with txindex+addrindex, or a
// compatible indexer exposing the same "searchrawtransactions" extension).
// MaxTransactions caps how many transactions GetAddressTransactions returns
// per address (0 means unbounded); it mirrors config.MaxTransactionsPerAddress.
type RPCConfig struct {
	Host            string
	User            string
	Pass            string
	MaxTransactions int
}

// RPCSource is a Tx Source backed by a self-hosted JSON-RPC node.
type RPCSource struct {
	rpc  *rpcclient.Client
	cfg  RPCConfig
	http *http.Client
}

// NewRPCSource connects and verifies the node is reachable, mirroring the
// teacher's startup handshake (connect, then GetBlockCount to confirm).
func NewRPCSource(cfg RPCConfig) (*RPCSource, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	log.Printf("[TxSource] connecting to Bitcoin RPC at %s...", cfg.Host)
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, err
	}

	blockCount, err := client.GetBlockCount()
	if err != nil {
		client.Shutdown()
		return nil, err
	}
	log.Printf("[TxSource] connected, current block height: %d", blockCount)

	return &RPCSource{
		rpc:  client,
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *RPCSource) Shutdown() {
	s.rpc.Shutdown()
}

// GetAddressTransactions queries the node's address index. The standard
// rpcclient wrapper has no typed method for this extension, so the request
// goes over a direct HTTP POST exactly like the teacher's scantxoutset
// fallback — needed here because the response shape (an array of raw txs)
// is also not one btcjson models.
func (s *RPCSource) GetAddressTransactions(ctx context.Context, address string, blockRange model.BlockRange) ([]model.Transaction, error) {
	const attempts = 3
	var raw []rawIndexedTx
	var err error
	for i := 0; i < attempts; i++ {
		if raw, err = s.searchRawTransactions(ctx, address); err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		log.Printf("[TxSource] searchrawtransactions(%s) failed, treating as empty: %v", address, err)
		return nil, nil
	}

	var totalIn btcutil.Amount
	out := make([]model.Transaction, 0, len(raw))
	for _, r := range raw {
		tx, ok := normalizeRawTx(r)
		if !ok {
			log.Printf("[TxSource] dropping %s: malformed txid from address index", r.Txid)
			continue
		}
		if blockRange.Lo != nil && tx.BlockHeight != nil && *tx.BlockHeight < *blockRange.Lo {
			continue
		}
		if blockRange.Hi != nil && tx.BlockHeight != nil && *tx.BlockHeight > *blockRange.Hi {
			continue
		}
		for _, in := range tx.Inputs {
			totalIn += btcutil.Amount(in.Value)
		}
		out = append(out, tx)
		if s.cfg.MaxTransactions > 0 && len(out) >= s.cfg.MaxTransactions {
			break
		}
	}
	log.Printf("[TxSource] %s: %d transactions (%s total input value)", address, len(out), totalIn)
	return out, nil
}

// GetAddressBlockRange scans the address's known transactions for the
// earliest and latest observed block height.
func (s *RPCSource) GetAddressBlockRange(ctx context.Context, address string) (*int64, *int64, error) {
	raw, err := s.searchRawTransactions(ctx, address)
	if err != nil {
		return nil, nil, nil
	}
	var earliest, latest *int64
	for _, r := range raw {
		tx, ok := normalizeRawTx(r)
		if !ok || tx.BlockHeight == nil {
			continue
		}
		if earliest == nil || *tx.BlockHeight < *earliest {
			h := *tx.BlockHeight
			earliest = &h
		}
		if latest == nil || *tx.BlockHeight > *latest {
			h := *tx.BlockHeight
			latest = &h
		}
	}
	return earliest, latest, nil
}

// rawIndexedTx is the address-index extension's per-transaction shape.
type rawIndexedTx struct {
	Txid   string `json:"txid"`
	Height *int64 `json:"height"`
	Vin    []struct {
		Address string `json:"address"`
		Value   int64  `json:"value"`
		Vout    uint32 `json:"vout"`
	} `json:"vin"`
	Vout []struct {
		Address string `json:"address"`
		Value   int64  `json:"value"`
	} `json:"vout"`
}

// normalizeRawTx converts one address-index row into the core model,
// rejecting rows whose txid isn't a well-formed transaction hash — the
// address index is an unmodeled extension, so this is the only shape check
// standing between a malformed row and a traversal pretending it's real.
func normalizeRawTx(r rawIndexedTx) (model.Transaction, bool) {
	if _, err := chainhash.NewHashFromStr(r.Txid); err != nil {
		return model.Transaction{}, false
	}

	ins := make([]model.TxIn, 0, len(r.Vin))
	for _, in := range r.Vin {
		ins = append(ins, model.TxIn{Address: in.Address, Value: in.Value, Vout: in.Vout})
	}
	outs := make([]model.TxOut, 0, len(r.Vout))
	for _, out := range r.Vout {
		outs = append(outs, model.TxOut{Address: out.Address, Value: out.Value})
	}
	return model.Transaction{Txid: r.Txid, BlockHeight: r.Height, Inputs: ins, Outputs: outs}, true
}

func (s *RPCSource) searchRawTransactions(ctx context.Context, address string) ([]rawIndexedTx, error) {
	type jsonRPCRequest struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      int           `json:"id"`
		Method  string        `json:"method"`
		Params  []any `json:"params"`
	}
	reqBody, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "1.0",
		ID:      1,
		Method:  "searchrawtransactions",
		Params:  []any{address},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://%s", s.cfg.Host)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("searchrawtransactions: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(s.cfg.User, s.cfg.Pass)

	httpResp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("searchrawtransactions: http request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("searchrawtransactions: read body: %w", err)
	}

	type jsonRPCResponse struct {
		Result []rawIndexedTx `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("searchrawtransactions: unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
