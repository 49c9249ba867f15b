package peer_test

import (
	"testing"

	"github.com/weavechain/weaved/foundation/blockweave/peer"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_CRUD(t *testing.T) {
	t.Log("Given the need to maintain the set of known peers.")
	{
		ps := peer.NewSet()

		p1 := peer.New("localhost:9080")
		p2 := peer.New("localhost:9081")

		if !ps.Add(p1) {
			t.Fatalf("\t%s\tShould report a new peer as unknown.", failed)
		}
		t.Logf("\t%s\tShould report a new peer as unknown.", success)

		if ps.Add(p1) {
			t.Fatalf("\t%s\tShould report an existing peer as known.", failed)
		}
		t.Logf("\t%s\tShould report an existing peer as known.", success)

		ps.Add(p2)

		peers := ps.Copy("localhost:9080")
		if len(peers) != 1 || !peers[0].Match(p2.Host) {
			t.Fatalf("\t%s\tShould copy the set without the excluded host: got %v", failed, peers)
		}
		t.Logf("\t%s\tShould copy the set without the excluded host.", success)

		ps.Remove(p2)
		if len(ps.Copy("")) != 1 {
			t.Fatalf("\t%s\tShould remove a peer from the set.", failed)
		}
		t.Logf("\t%s\tShould remove a peer from the set.", success)
	}
}
