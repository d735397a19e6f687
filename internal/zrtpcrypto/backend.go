// Package zrtpcrypto is the primitive wrapper interface of RFC 6189 §4.A: a
// stable capability set for hashing, HMAC, AES-CFB, classic/EC/PQ key
// agreement, and RNG, so the rest of the core never touches a concrete
// crypto library directly.
package zrtpcrypto

import "github.com/lanikai/zrtp/internal/algo"

// Backend is implemented by CirclBackend (the only concrete implementation
// in this module, per RFC 6189 §1: "the underlying primitive library ...
// [is] out of scope, only their interface is specified").
type Backend interface {
	// SHA256/384/512 return the digest of input.
	SHA256(input []byte) []byte
	SHA384(input []byte) []byte
	SHA512(input []byte) []byte

	// Hash dispatches to the digest function for the negotiated hash.
	Hash(h algo.Hash, input []byte) []byte
	// HashLength returns the digest length in bytes for the negotiated hash.
	HashLength(h algo.Hash) int

	// HMAC computes HMAC(key, input) with the given hash and truncates the
	// result to outLen bytes (0 means no truncation).
	HMAC(h algo.Hash, key, input []byte, outLen int) []byte

	// AESCFBEncrypt/Decrypt run AES-CFB with the given key and IV. Cipher
	// selects the key length (128/192/256 bits).
	AESCFBEncrypt(c algo.Cipher, key, iv, plaintext []byte) ([]byte, error)
	AESCFBDecrypt(c algo.Cipher, key, iv, ciphertext []byte) ([]byte, error)
	CipherKeyLength(c algo.Cipher) int

	// SupportsKeyAgreement reports whether this backend can perform the
	// given key-agreement algorithm. Algorithms the backend cannot perform
	// (e.g. HQC, absent from the circl dependency this module uses) must be
	// omitted from advertised/available sets by the caller, per RFC 6189 §4.A.
	SupportsKeyAgreement(k algo.KeyAgreement) bool

	// DH performs classic or EC Diffie-Hellman: NewDH generates an
	// ephemeral keypair for the given group and returns a handle.
	NewDH(k algo.KeyAgreement) (DH, error)

	// NewKEM returns a handle for a KEM-style key-agreement algorithm
	// (X25519/X448-as-KEM, Kyber, hybrids). hash is the negotiated hash,
	// used by hybrid combiners.
	NewKEM(k algo.KeyAgreement, hash algo.Hash) (KEM, error)

	// RNGBytes returns n cryptographically random bytes.
	RNGBytes(n int) ([]byte, error)
}

// DH is a single-use Diffie-Hellman exchange: generate an ephemeral keypair,
// publish SelfPublicValue, and combine with the peer's public value.
type DH interface {
	SelfPublicValue() []byte
	ComputeShared(peerPublicValue []byte) ([]byte, error)
}

// KEM is a single-use key-encapsulation exchange. The initiator calls
// GenerateKeyPair then, after receiving the responder's ciphertext (in
// DHPart1), Decapsulate on the same KEM value; the responder calls
// Encapsulate against the initiator's public key (received via the Commit
// public-value field) to produce the ciphertext it returns in DHPart1.
//
// ZRTP's wire layout puts the KEM initiator's public key in Commit
// and the responder's ciphertext in DHPart1, which is the mirror image of
// the usual encapsulate-to-a-long-lived-key flow; GenerateKeyPair here
// plays the role of the initiator's ephemeral keypair.
type KEM interface {
	GenerateKeyPair() (publicKey []byte, err error)
	Encapsulate(peerPublicKey []byte) (ciphertext, sharedSecret []byte, err error)
	Decapsulate(ciphertext []byte) (sharedSecret []byte, err error)
	PublicKeyLength() int
	CiphertextLength() int
}
