package cache

import (
	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/zrtpcrypto"
)

// Secret-ID labels (RFC 6189 §4.3.1): each side computes a truncated HMAC
// of a retained secret under its own role label, so a DHPart can signal
// "I hold this secret" without revealing it to an eavesdropper who
// doesn't already hold a copy.
const (
	labelResponder = "Responder"
	labelInitiator = "Initiator"
)

// ResponderID and InitiatorID compute a retained secret's two
// role-specific IDs, the rs1IDr/rs1IDi (etc.) fields carried in
// DHPart1/DHPart2.
func ResponderID(b zrtpcrypto.Backend, h algo.Hash, secret []byte) [8]byte {
	var id [8]byte
	copy(id[:], b.HMAC(h, secret, []byte(labelResponder), 8))
	return id
}

func InitiatorID(b zrtpcrypto.Backend, h algo.Hash, secret []byte) [8]byte {
	var id [8]byte
	copy(id[:], b.HMAC(h, secret, []byte(labelInitiator), 8))
	return id
}

// SecretID computes the auxiliary secret's truncated HMAC ID. Unlike
// rs1/rs2/pbxsecret, which key on a fixed role label, auxsecret's ID is
// keyed on the peer's and self's H3 values concatenated (self first),
// binding the ID to this specific channel's hash chain instead of a
// reusable role label.
func SecretID(b zrtpcrypto.Backend, h algo.Hash, secret []byte, selfH3, peerH3 [32]byte) [8]byte {
	var id [8]byte
	data := make([]byte, 0, 64)
	data = append(data, selfH3[:]...)
	data = append(data, peerH3[:]...)
	copy(id[:], b.HMAC(h, secret, data, 8))
	return id
}
