// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/go-resty/resty/v2"
)

// Defaults applied when the configuration leaves a value unset.
const (
	defaultFetchLimit   = 4
	defaultFetchTimeout = 5 * time.Second
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of the blockchain.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for block announcements and chain resolution
// in the background.
type Worker interface {
	Shutdown()
	SignalResolve()
	SignalShareBlock(block database.Block)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Host         string
	Genesis      genesis.Genesis
	KnownPeers   *peer.PeerSet
	FetchLimit   int
	FetchTimeout time.Duration
	EvHandler    EventHandler
}

// Stats represents counters of the activity of the node.
type Stats struct {
	BlocksMined       uint64 `json:"blocks_mined"`
	BlocksAccepted    uint64 `json:"blocks_accepted"`
	ChainReplacements uint64 `json:"chain_replacements"`
}

// State manages the blockchain database.
type State struct {
	mu sync.Mutex

	host       string
	evHandler  EventHandler
	genesis    genesis.Genesis
	fetchLimit int
	client     *resty.Client

	knownPeers *peer.PeerSet
	mempool    *mempool.Mempool
	db         *database.Database

	// tipCtx is cancelled every time the tip of the chain changes so any
	// proof search running against the old tip stops.
	shutCtx   context.Context
	shutdown  context.CancelFunc
	tipCtx    context.Context
	tipCancel context.CancelFunc

	blocksMined       atomic.Uint64
	blocksAccepted    atomic.Uint64
	chainReplacements atomic.Uint64

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	gen := cfg.Genesis
	if gen.Difficulty == 0 {
		gen.Difficulty = database.DefaultDifficulty
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	fetchLimit := cfg.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = defaultFetchLimit
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	client := resty.New().
		SetTimeout(fetchTimeout).
		SetHeader("Accept", "application/json")

	shutCtx, shutdown := context.WithCancel(context.Background())

	// Create the State to provide support for managing the blockchain.
	state := State{
		host:       cfg.Host,
		evHandler:  ev,
		genesis:    gen,
		fetchLimit: fetchLimit,
		client:     client,

		knownPeers: knownPeers,
		mempool:    mempool.New(),
		db:         database.New(gen),

		shutCtx:  shutCtx,
		shutdown: shutdown,
	}
	state.tipCtx, state.tipCancel = context.WithCancel(shutCtx)

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down. Any proof search in progress
// is cancelled.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	s.shutdown()

	return nil
}

// RetrieveStats returns a snapshot of the activity counters.
func (s *State) RetrieveStats() Stats {
	return Stats{
		BlocksMined:       s.blocksMined.Load(),
		BlocksAccepted:    s.blocksAccepted.Load(),
		ChainReplacements: s.chainReplacements.Load(),
	}
}

// =============================================================================

// advanceTip signals any proof search against the previous tip to stop.
// The caller must hold the state mutex.
func (s *State) advanceTip() {
	s.tipCancel()
	s.tipCtx, s.tipCancel = context.WithCancel(s.shutCtx)
}

// signalShareBlock asks the worker, when one is running, to announce the
// block to the known peers.
func (s *State) signalShareBlock(block database.Block) {
	if s.Worker != nil {
		s.Worker.SignalShareBlock(block)
	}
}
