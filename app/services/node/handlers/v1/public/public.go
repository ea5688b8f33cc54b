// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/ledger/business/sys/validate"
	v1 "github.com/ardanlabs/ledger/business/web/v1"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// The upgrade wrote the response, record it for the request logger.
	web.SetStatusCode(ctx, http.StatusSwitchingProtocols)

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Mine performs the proof of work against the latest block and forges a new
// block with every pending transaction. The block is announced to the known
// peers in the background.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.MineNewBlock(ctx)
	if err != nil {
		if errors.Is(err, state.ErrStaleTip) {
			return v1.NewRequestError(err, http.StatusConflict)
		}
		return fmt.Errorf("mining: %w", err)
	}

	resp := minedBlock{
		Message:      "New Block Forged",
		Index:        block.Index,
		Transactions: block.Transactions,
		Proof:        block.Proof,
		PreviousHash: block.PreviousHash,
		Hash:         block.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitTransaction adds a new transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var ntx newTx
	if err := web.Decode(r, &ntx); err != nil {
		return wrapDecodeError(err)
	}

	tx := ntx.toTx()

	h.Log.Infow("add tran", "traceid", v.TraceID, "tx", tx)
	n := h.State.SubmitTransaction(tx)

	resp := struct {
		Message string `json:"message"`
	}{
		Message: fmt.Sprintf("Transaction will be added to Block %d", n),
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Mempool returns the set of pending transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveMempool(), http.StatusOK)
}

// Chain returns the full chain and its length. This is what peers ask for
// when resolving.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := state.NewChainResponse(h.State.RetrieveChain())
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RegisterNodes adds the set of peers to the known peers.
func (h Handlers) RegisterNodes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var rn registerNodes
	if err := web.Decode(r, &rn); err != nil {
		return wrapDecodeError(err)
	}

	// Parse every address before adding any so a bad one adds nothing.
	prs := make([]peer.Peer, len(rn.Nodes))
	for i, address := range rn.Nodes {
		pr, err := peer.Parse(address)
		if err != nil {
			return v1.NewRequestError(err, http.StatusBadRequest)
		}
		prs[i] = pr
	}

	for _, pr := range prs {
		if _, _, err := h.State.AddKnownPeer(pr.Host); err != nil {
			return v1.NewRequestError(err, http.StatusBadRequest)
		}
	}

	resp := struct {
		Message    string      `json:"message"`
		TotalNodes []peer.Peer `json:"total_nodes"`
	}{
		Message:    "New nodes have been added",
		TotalNodes: h.State.RetrieveKnownPeers(),
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// KnownPeers returns the set of known peers.
func (h Handlers) KnownPeers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveKnownPeers(), http.StatusOK)
}

// Resolve runs the consensus algorithm against the known peers.
func (h Handlers) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	replaced, err := h.State.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolving: %w", err)
	}

	resp := resolved{
		Message: "Our chain is authoritative",
		Chain:   h.State.RetrieveChain(),
	}
	if replaced {
		resp.Message = "Our chain was replaced"
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

// wrapDecodeError marks a payload that couldn't be decoded as the client's
// fault. Validation errors pass through so their fields are reported.
func wrapDecodeError(err error) error {
	if validate.IsFieldErrors(err) {
		return err
	}
	return v1.NewRequestError(err, http.StatusBadRequest)
}
