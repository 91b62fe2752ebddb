package txsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rawblock/linkfinder/internal/model"
)

// ExplorerSource is a Tx Source backed by a public HTTPS blockchain explorer
// (Blockstream Esplora-compatible API shape: GET /address/{addr}/txs).
// maxTx mirrors config.MaxTransactionsPerAddress (0 means unbounded).
type ExplorerSource struct {
	baseURL string
	http    *http.Client
	maxTx   int
}

func NewExplorerSource(baseURL string, maxTx int) *ExplorerSource {
	return &ExplorerSource{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		maxTx:   maxTx,
	}
}

// esploraTx is the explorer's own transaction shape, distinct from the
// indexer's rawIndexedTx — normalization happens here, at the boundary,
// never inside the traversal engine.
type esploraTx struct {
	Txid   string `json:"txid"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
	Vin []struct {
		Prevout struct {
			ScriptPubKeyAddress string `json:"scriptpubkey_address"`
			Value               int64  `json:"value"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"`
	} `json:"vout"`
}

func (s *ExplorerSource) GetAddressTransactions(ctx context.Context, address string, blockRange model.BlockRange) ([]model.Transaction, error) {
	const attempts = 3
	var txs []esploraTx
	var err error
	for i := 0; i < attempts; i++ {
		if txs, err = s.fetch(ctx, address); err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		log.Printf("[TxSource] explorer fetch(%s) failed, treating as empty: %v", address, err)
		return nil, nil
	}

	out := make([]model.Transaction, 0, len(txs))
	for _, t := range txs {
		tx := normalizeEsploraTx(t)
		if blockRange.Lo != nil && tx.BlockHeight != nil && *tx.BlockHeight < *blockRange.Lo {
			continue
		}
		if blockRange.Hi != nil && tx.BlockHeight != nil && *tx.BlockHeight > *blockRange.Hi {
			continue
		}
		out = append(out, tx)
		if s.maxTx > 0 && len(out) >= s.maxTx {
			break
		}
	}
	return out, nil
}

func (s *ExplorerSource) GetAddressBlockRange(ctx context.Context, address string) (*int64, *int64, error) {
	txs, err := s.fetch(ctx, address)
	if err != nil {
		return nil, nil, nil
	}
	var earliest, latest *int64
	for _, t := range txs {
		if !t.Status.Confirmed {
			continue
		}
		h := t.Status.BlockHeight
		if earliest == nil || h < *earliest {
			earliest = &h
		}
		if latest == nil || h > *latest {
			latest = &h
		}
	}
	return earliest, latest, nil
}

func normalizeEsploraTx(t esploraTx) model.Transaction {
	var height *int64
	if t.Status.Confirmed {
		h := t.Status.BlockHeight
		height = &h
	}
	ins := make([]model.TxIn, 0, len(t.Vin))
	for _, in := range t.Vin {
		ins = append(ins, model.TxIn{Address: in.Prevout.ScriptPubKeyAddress, Value: in.Prevout.Value})
	}
	outs := make([]model.TxOut, 0, len(t.Vout))
	for _, out := range t.Vout {
		outs = append(outs, model.TxOut{Address: out.ScriptPubKeyAddress, Value: out.Value})
	}
	return model.Transaction{Txid: t.Txid, BlockHeight: height, Inputs: ins, Outputs: outs}
}

func (s *ExplorerSource) fetch(ctx context.Context, address string) ([]esploraTx, error) {
	url := fmt.Sprintf("%s/address/%s/txs", s.baseURL, address)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer returned status %d", resp.StatusCode)
	}

	var txs []esploraTx
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, fmt.Errorf("decode explorer response: %w", err)
	}
	return txs, nil
}
