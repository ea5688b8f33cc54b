// Package worker implements chain resolution and block announcements for
// the blockchain in the background.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
)

// defaultResolveInterval represents the interval of asking the known peers
// for their chains when no interval is configured.
const defaultResolveInterval = time.Minute

// =============================================================================

// Worker manages the background workflows for the blockchain.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	ticker       *time.Ticker
	ctx          context.Context
	cancel       context.CancelFunc
	shut         chan struct{}
	shutOnce     sync.Once
	startResolve chan bool
	blockSharing chan database.Block
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes. A resolveInterval of zero uses
// the default interval.
func Run(st *state.State, resolveInterval time.Duration, evHandler state.EventHandler) *Worker {
	if resolveInterval <= 0 {
		resolveInterval = defaultResolveInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:        st,
		ticker:       time.NewTicker(resolveInterval),
		ctx:          ctx,
		cancel:       cancel,
		shut:         make(chan struct{}),
		startResolve: make(chan bool, 1),
		blockSharing: make(chan database.Block, maxBlockShareRequests),
		evHandler:    evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Update this node before starting any support G's.
	w.runResolveOperation()

	// Load the set of operations we need to run.
	operations := []func(){
		w.resolveOperations,
		w.shareBlockOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work. Any network call in
// flight is cancelled. Calls after the first are no-ops.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()

		w.evHandler("worker: shutdown: cancel network calls")
		w.cancel()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalResolve starts a resolve operation. If there is already a signal
// pending in the channel, just return since a resolve operation will start.
func (w *Worker) SignalResolve() {
	select {
	case w.startResolve <- true:
		w.evHandler("worker: SignalResolve: resolve signaled")
	default:
	}
}

// SignalShareBlock signals a share block operation. If
// maxBlockShareRequests signals exist in the channel, we won't send these.
func (w *Worker) SignalShareBlock(block database.Block) {
	select {
	case w.blockSharing <- block:
		w.evHandler("worker: SignalShareBlock: share block signaled: index[%d]", block.Index)
	default:
		w.evHandler("worker: SignalShareBlock: queue full, block[%d] won't be shared", block.Index)
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
