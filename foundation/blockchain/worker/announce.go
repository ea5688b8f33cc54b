package worker

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// maxBlockShareRequests represents the max number of pending block network
// share requests that can be outstanding before share requests are dropped.
// A dropped announcement only delays the peers, they still pick the block
// up the next time they resolve.
const maxBlockShareRequests = 100

// =============================================================================

// shareBlockOperations handles sharing newly mined blocks.
func (w *Worker) shareBlockOperations() {
	w.evHandler("worker: shareBlockOperations: G started")
	defer w.evHandler("worker: shareBlockOperations: G completed")

	for {
		select {
		case block := <-w.blockSharing:
			if !w.isShutdown() {
				w.runShareBlockOperation(block)
			}
		case <-w.shut:
			w.evHandler("worker: shareBlockOperations: received shut signal")
			return
		}
	}
}

// runShareBlockOperation proposes the block to the known peers. Failures are
// logged, but that's it.
func (w *Worker) runShareBlockOperation(block database.Block) {
	w.evHandler("worker: runShareBlockOperation: started: index[%d]", block.Index)
	defer w.evHandler("worker: runShareBlockOperation: completed")

	if err := w.state.NetSendBlockToPeers(w.ctx, block); err != nil {
		w.evHandler("worker: runShareBlockOperation: WARNING: %s", err)
	}
}
