package public

import (
	"github.com/ardanlabs/ledger/business/sys/validate"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// newTx is what a client submits to add a transaction to the mempool.
// The amount is a pointer so a missing amount can be told apart from zero.
type newTx struct {
	Sender    string  `json:"sender" validate:"required"`
	Recipient string  `json:"recipient" validate:"required"`
	Amount    *uint64 `json:"amount" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (ntx newTx) Validate() error {
	return validate.Check(ntx)
}

func (ntx newTx) toTx() database.Tx {
	return database.NewTx(ntx.Sender, ntx.Recipient, *ntx.Amount)
}

// registerNodes is what a client submits to add peers to the node.
type registerNodes struct {
	Nodes []string `json:"nodes" validate:"required,min=1,dive,required"`
}

// Validate checks the data in the model is considered clean.
func (rn registerNodes) Validate() error {
	return validate.Check(rn)
}

// minedBlock is the response for a newly mined block.
type minedBlock struct {
	Message      string        `json:"message"`
	Index        uint64        `json:"index"`
	Transactions []database.Tx `json:"transactions"`
	Proof        uint64        `json:"proof"`
	PreviousHash string        `json:"previous_hash"`
	Hash         string        `json:"hash"`
}

// resolved is the response for a consensus pass.
type resolved struct {
	Message string           `json:"message"`
	Chain   []database.Block `json:"chain"`
}
