package channel

import (
	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/zrtpcrypto"
)

// hashChain holds one side's H0..H3 anchors (RFC 6189 §4.F: "hash-chain
// anchoring"). H0 is random; each following link is the SHA-256 of the
// previous, so revealing H{i} lets the peer confirm every H{j<i} it has
// already received without the sender having to resend them.
type hashChain struct {
	H0, H1, H2, H3 [32]byte
}

// newHashChain generates a fresh chain anchored on backend randomness.
func newHashChain(b zrtpcrypto.Backend) (*hashChain, error) {
	h0, err := b.RNGBytes(32)
	if err != nil {
		return nil, err
	}
	c := &hashChain{}
	copy(c.H0[:], h0)
	h1 := b.SHA256(c.H0[:])
	copy(c.H1[:], h1)
	h2 := b.SHA256(c.H1[:])
	copy(c.H2[:], h2)
	h3 := b.SHA256(c.H2[:])
	copy(c.H3[:], h3)
	return c, nil
}

// verifyChainStep reports whether sha256(child) == parent, i.e. that
// child is one step further back in the chain than parent (RFC 6189 §4.C:
// "verify H3 = SHA-256(H2)", "verify the hash-chain step from H1 to the
// previously-seen H2", "verify H1 = SHA-256(H0)").
func verifyChainStep(b zrtpcrypto.Backend, parent, child []byte) bool {
	got := b.SHA256(child)
	if len(got) != len(parent) {
		return false
	}
	for i := range got {
		if got[i] != parent[i] {
			return false
		}
	}
	return true
}

// verifyMAC recomputes HMAC(h, key, messageWithoutMAC, 8) and compares it
// to mac, for the "MAC of the prior stored packet keyed by H{i}" checks
// that gate every message transition (RFC 6189 §4.C/§4.F).
func verifyMAC(b zrtpcrypto.Backend, h algo.Hash, key, messageWithoutMAC, mac []byte) bool {
	want := b.HMAC(h, key, messageWithoutMAC, 8)
	if len(want) != len(mac) {
		return false
	}
	for i := range want {
		if want[i] != mac[i] {
			return false
		}
	}
	return true
}
