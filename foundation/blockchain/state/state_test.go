package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// gen keeps the proof searches in these tests fast. Every node in these
// tests shares it so they share the same genesis block.
var gen = genesis.Genesis{
	Date:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	Difficulty: 3,
}

// =============================================================================

func Test_SubmitAndMine(t *testing.T) {
	t.Log("Given the need to mine pending transactions into a block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining against a genesis only chain.", testID)
		{
			st := newState(t, "localhost:9080")

			n := st.SubmitTransaction(database.NewTx("alice", "bob", 5))
			if n != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould get back block number 2 : got %d", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould get back block number 2.", success, testID)

			st.SubmitTransaction(database.NewTx("bob", "carol", 2))

			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block : %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, testID)

			if block.Index != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould get index 1 : got %d", failed, testID, block.Index)
			}
			t.Logf("\t%s\tTest %d:\tShould get index 1.", success, testID)

			if len(block.Transactions) != 2 || block.Transactions[0].Sender != "alice" || block.Transactions[1].Sender != "bob" {
				t.Fatalf("\t%s\tTest %d:\tShould hold the pending transactions in order : %v", failed, testID, block.Transactions)
			}
			t.Logf("\t%s\tTest %d:\tShould hold the pending transactions in order.", success, testID)

			genBlock := database.GenesisBlock(gen)
			if block.PreviousHash != genBlock.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould link to the genesis block : got %s, exp %s", failed, testID, block.PreviousHash, genBlock.Hash())
			}
			t.Logf("\t%s\tTest %d:\tShould link to the genesis block.", success, testID)

			if !database.ValidProof(gen.Difficulty, genBlock.Proof, block.Proof) {
				t.Fatalf("\t%s\tTest %d:\tShould carry a valid proof : %d", failed, testID, block.Proof)
			}
			t.Logf("\t%s\tTest %d:\tShould carry a valid proof.", success, testID)

			if n := st.QueryMempoolLength(); n != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould empty the mempool : got %d", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould empty the mempool.", success, testID)

			if n := st.SubmitTransaction(database.NewTx("carol", "dave", 1)); n != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould get back block number 3 : got %d", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould get back block number 3.", success, testID)

			if stats := st.RetrieveStats(); stats.BlocksMined != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould count the mined block : got %d", failed, testID, stats.BlocksMined)
			}
			t.Logf("\t%s\tTest %d:\tShould count the mined block.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen mining several blocks in a row.", testID)
		{
			st := newState(t, "localhost:9080")

			for i := 0; i < 4; i++ {
				st.SubmitTransaction(database.NewTx("alice", "bob", uint64(i+1)))
				if _, err := st.MineNewBlock(context.Background()); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to mine block %d : %s", failed, testID, i+1, err)
				}
			}

			chain := st.RetrieveChain()
			if len(chain) != 5 {
				t.Fatalf("\t%s\tTest %d:\tShould have 5 blocks : got %d", failed, testID, len(chain))
			}
			t.Logf("\t%s\tTest %d:\tShould have 5 blocks.", success, testID)

			if err := database.ValidateChain(gen.Difficulty, chain); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould produce a valid chain : %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould produce a valid chain.", success, testID)

			for i := 1; i < len(chain); i++ {
				if chain[i].Timestamp < chain[i-1].Timestamp {
					t.Fatalf("\t%s\tTest %d:\tShould never go back in time at block %d.", failed, testID, i)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould never go back in time.", success, testID)
		}
	}
}

func Test_MineDefaultDifficulty(t *testing.T) {
	if testing.Short() {
		t.Skip("proof search at the default difficulty")
	}

	t.Log("Given the need to mine at the default difficulty.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining against a genesis only chain.", testID)
		{
			st, err := state.New(state.Config{
				Host:    "localhost:9080",
				Genesis: genesis.Default(),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the state : %s", failed, testID, err)
			}
			defer st.Shutdown()

			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block : %s", failed, testID, err)
			}

			hash := database.ProofHash(0, block.Proof)
			if hash[:database.DefaultDifficulty] != "00000" {
				t.Fatalf("\t%s\tTest %d:\tShould find a hash with 5 leading zeros : %s", failed, testID, hash)
			}
			t.Logf("\t%s\tTest %d:\tShould find a hash with 5 leading zeros.", success, testID)

			if !database.IsValidChain(database.DefaultDifficulty, st.RetrieveChain()) {
				t.Fatalf("\t%s\tTest %d:\tShould produce a valid chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould produce a valid chain.", success, testID)
		}
	}
}

func Test_ConcurrentSubmitAndMine(t *testing.T) {
	t.Log("Given the need to submit transactions while blocks are being mined.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen one goroutine submits and another mines.", testID)
		{
			const txs = 400

			st := newState(t, "localhost:9080")

			var wg sync.WaitGroup
			wg.Add(2)

			done := make(chan struct{})
			go func() {
				defer wg.Done()
				defer close(done)

				for i := 0; i < txs; i++ {
					st.SubmitTransaction(database.NewTx("alice", "bob", uint64(i)))
				}
			}()

			errs := make(chan error, 1)
			go func() {
				defer wg.Done()

				for {
					select {
					case <-done:
						return
					default:
					}

					if _, err := st.MineNewBlock(context.Background()); err != nil {
						errs <- err
						return
					}
				}
			}()

			wg.Wait()
			close(errs)

			if err := <-errs; err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine while submitting : %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine while submitting.", success, testID)

			seen := make(map[uint64]int)
			for _, block := range st.RetrieveChain() {
				for _, tx := range block.Transactions {
					seen[tx.Amount]++
				}
			}
			for _, tx := range st.RetrieveMempool() {
				seen[tx.Amount]++
			}

			for i := uint64(0); i < txs; i++ {
				if seen[i] != 1 {
					t.Fatalf("\t%s\tTest %d:\tShould find transaction %d exactly once : got %d", failed, testID, i, seen[i])
				}
			}
			if len(seen) != txs {
				t.Fatalf("\t%s\tTest %d:\tShould only find submitted transactions : got %d", failed, testID, len(seen))
			}
			t.Logf("\t%s\tTest %d:\tShould find every transaction exactly once.", success, testID)
		}
	}
}

func Test_RequestPeerChain(t *testing.T) {
	t.Log("Given the need to fetch the chain of a peer.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the reported length doesn't match the blocks sent.", testID)
		{
			resp := state.NewChainResponse(mineChain(t, 2))
			resp.Length = 100

			srv := chainServer(t, resp)

			st := newState(t, "localhost:9080")
			pr, _, err := st.AddKnownPeer(srv.URL)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the peer : %s", failed, testID, err)
			}

			if _, err := st.NetRequestPeerChain(context.Background(), pr); !errors.Is(err, state.ErrMalformedChain) {
				t.Fatalf("\t%s\tTest %d:\tShould treat the response as malformed : %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould treat the response as malformed.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the peer sends a well formed chain.", testID)
		{
			chain := mineChain(t, 2)
			srv := chainServer(t, state.NewChainResponse(chain))

			st := newState(t, "localhost:9080")
			pr, _, err := st.AddKnownPeer(srv.URL)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the peer : %s", failed, testID, err)
			}

			resp, err := st.NetRequestPeerChain(context.Background(), pr)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to fetch the chain : %s", failed, testID, err)
			}
			if resp.Length != len(chain) || len(resp.Chain) != len(chain) {
				t.Fatalf("\t%s\tTest %d:\tShould get %d blocks : got %d/%d", failed, testID, len(chain), resp.Length, len(resp.Chain))
			}
			t.Logf("\t%s\tTest %d:\tShould get %d blocks.", success, testID, len(chain))
		}
	}
}

func Test_KnownPeers(t *testing.T) {
	t.Log("Given the need to keep track of the peers of a node.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the node is registered with itself.", testID)
		{
			st := newState(t, "localhost:9080")

			_, added, err := st.AddKnownPeer("http://localhost:9080")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to parse the address : %s", failed, testID, err)
			}
			if added || st.QueryKnownPeersLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould not add itself : added %t, peers %d", failed, testID, added, st.QueryKnownPeersLength())
			}
			t.Logf("\t%s\tTest %d:\tShould not add itself.", success, testID)

			_, added, err = st.AddKnownPeer("http://localhost:9081")
			if err != nil || !added {
				t.Fatalf("\t%s\tTest %d:\tShould add another node : added %t, %v", failed, testID, added, err)
			}
			t.Logf("\t%s\tTest %d:\tShould add another node.", success, testID)
		}
	}
}

func Test_ProposedBlock(t *testing.T) {
	t.Log("Given the need to accept blocks mined by other nodes.")
	{
		peerNode := newState(t, "localhost:9081")
		peerNode.SubmitTransaction(database.NewTx("alice", "bob", 5))

		block, err := peerNode.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine the peer block : %s", failed, err)
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen the block extends the tip.", testID)
		{
			st := newState(t, "localhost:9080")

			if !st.AcceptExternalBlock(block, block.Proof) {
				t.Fatalf("\t%s\tTest %d:\tShould accept the block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the block.", success, testID)

			if n := st.QueryChainLength(); n != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould have 2 blocks : got %d", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould have 2 blocks.", success, testID)

			if st.RetrieveLatestBlock().Hash() != block.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould have the block as the tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have the block as the tip.", success, testID)

			if stats := st.RetrieveStats(); stats.BlocksAccepted != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould count the accepted block : got %d", failed, testID, stats.BlocksAccepted)
			}
			t.Logf("\t%s\tTest %d:\tShould count the accepted block.", success, testID)

			if st.AcceptExternalBlock(block, block.Proof) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the same block a second time.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the same block a second time.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the block doesn't link to the tip.", testID)
		{
			st := newState(t, "localhost:9080")

			bad := block.Copy()
			bad.PreviousHash = "ff"

			err := st.ProcessProposedBlock(bad, bad.Proof)
			if !errors.Is(err, database.ErrBlockRejected) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the block : %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the block.", success, testID)

			if n := st.QueryChainLength(); n != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the chain alone : got %d", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the chain alone.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the proof is not valid.", testID)
		{
			st := newState(t, "localhost:9080")

			proof := block.Proof + 1
			for database.ValidProof(gen.Difficulty, 0, proof) {
				proof++
			}

			bad := block.Copy()
			bad.Proof = proof

			if st.AcceptExternalBlock(bad, proof) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the block.", success, testID)
		}
	}
}

func Test_Resolve(t *testing.T) {
	type table struct {
		name     string
		local    int
		remote   int
		reported int
		tamper   bool
		replaced bool
	}

	tt := []table{
		{name: "longer", local: 3, remote: 4, replaced: true},
		{name: "equal", local: 3, remote: 3, replaced: false},
		{name: "shorter", local: 4, remote: 2, replaced: false},
		{name: "longer-invalid", local: 2, remote: 4, tamper: true, replaced: false},
		{name: "inflated-length", local: 4, remote: 2, reported: 100, replaced: false},
	}

	t.Log("Given the need to agree on a chain with the peers.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen resolving against a %q chain.", testID, tst.name)
			{
				f := func(t *testing.T) {
					chain := mineChain(t, tst.remote)
					if tst.tamper {
						chain[1].Transactions = append(chain[1].Transactions, database.NewTx("mallory", "mallory", 1000))
					}

					resp := state.NewChainResponse(chain)
					if tst.reported != 0 {
						resp.Length = tst.reported
					}

					srv := chainServer(t, resp)

					st := newState(t, "localhost:9080")
					mineOn(t, st, tst.local)

					if _, _, err := st.AddKnownPeer(srv.URL); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to add the peer : %s", failed, testID, err)
					}

					replaced, err := st.Resolve(context.Background())
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to resolve : %s", failed, testID, err)
					}

					if replaced != tst.replaced {
						t.Fatalf("\t%s\tTest %d:\tShould get replaced %t : got %t", failed, testID, tst.replaced, replaced)
					}
					t.Logf("\t%s\tTest %d:\tShould get replaced %t.", success, testID, tst.replaced)

					exp := tst.local
					if tst.replaced {
						exp = tst.remote
					}
					if n := st.QueryChainLength(); n != exp {
						t.Fatalf("\t%s\tTest %d:\tShould have %d blocks : got %d", failed, testID, exp, n)
					}
					t.Logf("\t%s\tTest %d:\tShould have %d blocks.", success, testID, exp)

					if tst.replaced && st.RetrieveLatestBlock().Hash() != chain[len(chain)-1].Hash() {
						t.Fatalf("\t%s\tTest %d:\tShould have the peer's tip.", failed, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_ResolveBadPeers(t *testing.T) {
	t.Log("Given the need to resolve when some peers misbehave.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen peers are unreachable or send garbage.", testID)
		{
			good := chainServer(t, state.NewChainResponse(mineChain(t, 3)))

			down := httptest.NewServer(http.NotFoundHandler())
			down.Close()

			malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"chain":[]}`))
			}))
			defer malformed.Close()

			garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			}))
			defer garbage.Close()

			failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer failing.Close()

			st := newState(t, "localhost:9080")
			for _, url := range []string{down.URL, malformed.URL, garbage.URL, failing.URL, good.URL} {
				if _, _, err := st.AddKnownPeer(url); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to add peer %s : %s", failed, testID, url, err)
				}
			}

			replaced, err := st.Resolve(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to resolve : %s", failed, testID, err)
			}
			if !replaced {
				t.Fatalf("\t%s\tTest %d:\tShould adopt the chain of the good peer.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt the chain of the good peer.", success, testID)

			if stats := st.RetrieveStats(); stats.ChainReplacements != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould count the replacement : got %d", failed, testID, stats.ChainReplacements)
			}
			t.Logf("\t%s\tTest %d:\tShould count the replacement.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen there are no peers.", testID)
		{
			st := newState(t, "localhost:9080")

			replaced, err := st.Resolve(context.Background())
			if err != nil || replaced {
				t.Fatalf("\t%s\tTest %d:\tShould keep the local chain : %t, %v", failed, testID, replaced, err)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the local chain.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the context is already cancelled.", testID)
		{
			good := chainServer(t, state.NewChainResponse(mineChain(t, 3)))

			st := newState(t, "localhost:9080")
			st.AddKnownPeer(good.URL)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := st.Resolve(ctx); !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest %d:\tShould get back the context error : %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the context error.", success, testID)

			if n := st.QueryChainLength(); n != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the chain alone : got %d", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the chain alone.", success, testID)
		}
	}
}

func Test_SendBlock(t *testing.T) {
	t.Log("Given the need to announce mined blocks to the peers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen one peer is down.", testID)
		{
			received := make(chan database.Block, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/v1/block/add" {
					w.WriteHeader(http.StatusNotFound)
					return
				}

				var block database.Block
				if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				received <- block
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			down := httptest.NewServer(http.NotFoundHandler())
			down.Close()

			st := newState(t, "localhost:9080")
			st.AddKnownPeer(down.URL)
			st.AddKnownPeer(srv.URL)

			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block : %s", failed, testID, err)
			}

			if err := st.NetSendBlockToPeers(context.Background(), block); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould report the peer that is down.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould report the peer that is down.", success, testID)

			select {
			case got := <-received:
				if got.Hash() != block.Hash() {
					t.Fatalf("\t%s\tTest %d:\tShould deliver the same block : got %s, exp %s", failed, testID, got.Hash(), block.Hash())
				}
			default:
				t.Fatalf("\t%s\tTest %d:\tShould deliver the block to the live peer.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould deliver the block to the live peer.", success, testID)
		}
	}
}

// =============================================================================

func newState(t *testing.T, host string) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		Host:         host,
		Genesis:      gen,
		FetchTimeout: 2 * time.Second,
		EvHandler: func(v string, args ...any) {
			t.Logf(v, args...)
		},
	})
	if err != nil {
		t.Fatalf("unable to construct state: %s", err)
	}
	t.Cleanup(func() { st.Shutdown() })

	return st
}

// mineOn mines blocks until the chain has n blocks.
func mineOn(t *testing.T, st *state.State, n int) {
	t.Helper()

	for st.QueryChainLength() < n {
		st.SubmitTransaction(database.NewTx("alice", "bob", uint64(st.QueryChainLength())))
		if _, err := st.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("unable to mine block: %s", err)
		}
	}
}

// mineChain returns a valid chain of n blocks mined by a separate node.
func mineChain(t *testing.T, n int) []database.Block {
	t.Helper()

	st := newState(t, "localhost:9099")
	mineOn(t, st, n)

	return st.RetrieveChain()
}

// chainServer starts a peer that serves the specified chain response.
func chainServer(t *testing.T, resp state.ChainResponse) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chain" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	return srv
}
