// Package kdf implements ZRTP's key schedule (RFC 6189 §4.E): the SP 800-108
// HMAC-counter KDF primitive, the s0/ZRTPSess/per-channel/SRTP/SAS
// derivations built on top of it, and SAS rendering.
package kdf

import (
	"encoding/binary"

	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/zrtpcrypto"
)

// Derive computes RFC 6189 §4.E's KDF:
//
//	KDF(KI, Label, Context, L) =
//	    HMAC(KI, 0x00000001 || Label || 0x00 || Context || L_in_bits_be)
//
// truncated to L bytes. This is a single-block (counter fixed at 1)
// instance of NIST SP 800-108 counter-mode KDF, which is all any ZRTP
// derivation needs since no derived value exceeds one HMAC block's worth
// after hash-length outputs.
func Derive(b zrtpcrypto.Backend, h algo.Hash, ki []byte, label string, context []byte, outputLen int) []byte {
	input := make([]byte, 0, 4+len(label)+1+len(context)+4)
	input = append(input, 0x00, 0x00, 0x00, 0x01)
	input = append(input, []byte(label)...)
	input = append(input, 0x00)
	input = append(input, context...)

	var lBits [4]byte
	binary.BigEndian.PutUint32(lBits[:], uint32(outputLen)*8)
	input = append(input, lBits[:]...)

	return b.HMAC(h, ki, input, outputLen)
}
