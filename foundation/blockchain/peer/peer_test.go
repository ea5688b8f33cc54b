package peer_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "host1"}, {Host: "host2"}, {Host: "host3"}},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			for _, peer := range tst.peers {
				ps.Add(peer)
			}

			if ps.Add(tst.peers[0]) {
				t.Fatalf("Test %s:\tShould not add a peer twice.", tst.name)
			}

			peers := ps.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			peers = ps.Copy("host2")
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			ps.Remove(tst.peers[0])
			if ps.Len() != len(tst.peers)-1 {
				t.Fatalf("Test %s:\tShould be able to remove a peer.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Parse(t *testing.T) {
	type table struct {
		name    string
		address string
		host    string
		err     error
	}

	tt := []table{
		{name: "url", address: "http://192.168.0.5:5000", host: "192.168.0.5:5000"},
		{name: "url-path", address: "http://192.168.0.5:5000/v1/chain?x=1", host: "192.168.0.5:5000"},
		{name: "https", address: "https://node.example.com", host: "node.example.com"},
		{name: "host-port", address: "localhost:9080", host: "localhost:9080"},
		{name: "spaces", address: "  localhost:9080 ", host: "localhost:9080"},
		{name: "empty", address: "", err: peer.ErrInvalidAddress},
		{name: "no-host", address: "http:///chain", err: peer.ErrInvalidAddress},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			p, err := peer.Parse(tst.address)
			if tst.err != nil {
				if !errors.Is(err, tst.err) {
					t.Fatalf("Test %s:\tShould get an invalid address error: %v", tst.name, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Test %s:\tShould be able to parse the address: %v", tst.name, err)
			}

			if p.Host != tst.host {
				t.Logf("Test %s:\tgot: %s", tst.name, p.Host)
				t.Logf("Test %s:\texp: %s", tst.name, tst.host)
				t.Fatalf("Test %s:\tShould get back the right host.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}
