package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var gen = genesis.Genesis{
	Date:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	Difficulty: 3,
}

func Test_Worker(t *testing.T) {
	t.Log("Given the need to keep peers in agreement in the background.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a block is mined.", testID)
		{
			received := make(chan database.Block, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/v1/chain":
					json.NewEncoder(w).Encode(state.NewChainResponse([]database.Block{database.GenesisBlock(gen)}))

				case "/v1/block/add":
					var block database.Block
					if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
						w.WriteHeader(http.StatusBadRequest)
						return
					}
					received <- block

				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer srv.Close()

			st := newState(t)
			st.AddKnownPeer(srv.URL)

			worker.Run(st, time.Hour, t.Logf)
			defer st.Shutdown()

			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block : %s", failed, testID, err)
			}

			select {
			case got := <-received:
				if got.Hash() != block.Hash() {
					t.Fatalf("\t%s\tTest %d:\tShould announce the mined block : got %s, exp %s", failed, testID, got.Hash(), block.Hash())
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("\t%s\tTest %d:\tShould announce the mined block in time.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould announce the mined block.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a peer has a longer chain.", testID)
		{
			other := newState(t)
			for i := 0; i < 3; i++ {
				if _, err := other.MineNewBlock(context.Background()); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to mine the peer chain : %s", failed, testID, err)
				}
			}
			chain := other.RetrieveChain()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(state.NewChainResponse(chain))
			}))
			defer srv.Close()

			st := newState(t)
			worker.Run(st, time.Hour, t.Logf)
			defer st.Shutdown()

			// The peer is added after the startup resolve so only the
			// signal can pick it up.
			st.AddKnownPeer(srv.URL)
			st.Worker.SignalResolve()

			deadline := time.Now().Add(5 * time.Second)
			for st.QueryChainLength() != len(chain) {
				if time.Now().After(deadline) {
					t.Fatalf("\t%s\tTest %d:\tShould adopt the peer chain : length %d", failed, testID, st.QueryChainLength())
				}
				time.Sleep(10 * time.Millisecond)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt the peer chain.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the node is shut down more than once.", testID)
		{
			st := newState(t)
			worker.Run(st, time.Hour, t.Logf)

			if err := st.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to shut down : %s", failed, testID, err)
			}

			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to shut down again : %v", failed, testID, r)
					}
				}()
				if err := st.Shutdown(); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to shut down again : %s", failed, testID, err)
				}
			}()
			t.Logf("\t%s\tTest %d:\tShould be able to shut down again.", success, testID)
		}
	}
}

func newState(t *testing.T) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		Host:    "localhost:9080",
		Genesis: gen,
	})
	if err != nil {
		t.Fatalf("unable to construct state: %s", err)
	}

	return st
}
