package zrtpcrypto

import (
	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/algo"
)

// hybridKEM composes two component KEMs (e.g. K255 + Kyber512) into one,
// per RFC 6189 §4.A/§4.E: public keys and ciphertexts are the concatenation of
// the components', and the combined shared secret is
//
//	Hash(ss_1 || ss_2 || "ZRTP-HYBRID-KEM")
//
// which is this backend's HYBRID_KEM definition referenced by RFC 6189 §4.E.
type hybridKEM struct {
	backend Backend
	hash    algo.Hash
	a, b    KEM
}

func newHybridKEM(backend Backend, hash algo.Hash, a, b KEM) *hybridKEM {
	return &hybridKEM{backend: backend, hash: hash, a: a, b: b}
}

const hybridCombinerLabel = "ZRTP-HYBRID-KEM"

func (h *hybridKEM) combine(ssA, ssB []byte) []byte {
	input := make([]byte, 0, len(ssA)+len(ssB)+len(hybridCombinerLabel))
	input = append(input, ssA...)
	input = append(input, ssB...)
	input = append(input, []byte(hybridCombinerLabel)...)
	return h.backend.Hash(h.hash, input)
}

func (h *hybridKEM) GenerateKeyPair() ([]byte, error) {
	pkA, err := h.a.GenerateKeyPair()
	if err != nil {
		return nil, xerrors.Errorf("hybrid keygen (component a): %w", err)
	}
	pkB, err := h.b.GenerateKeyPair()
	if err != nil {
		return nil, xerrors.Errorf("hybrid keygen (component b): %w", err)
	}
	return append(pkA, pkB...), nil
}

func (h *hybridKEM) Encapsulate(peerPublicKey []byte) (ct, ss []byte, err error) {
	la := h.a.PublicKeyLength()
	if len(peerPublicKey) < la {
		return nil, nil, xerrors.New("hybrid encapsulate: short peer public key")
	}
	ctA, ssA, err := h.a.Encapsulate(peerPublicKey[:la])
	if err != nil {
		return nil, nil, xerrors.Errorf("hybrid encapsulate (component a): %w", err)
	}
	ctB, ssB, err := h.b.Encapsulate(peerPublicKey[la:])
	if err != nil {
		return nil, nil, xerrors.Errorf("hybrid encapsulate (component b): %w", err)
	}
	return append(ctA, ctB...), h.combine(ssA, ssB), nil
}

func (h *hybridKEM) Decapsulate(ciphertext []byte) ([]byte, error) {
	la := h.a.CiphertextLength()
	if len(ciphertext) < la {
		return nil, xerrors.New("hybrid decapsulate: short ciphertext")
	}
	ssA, err := h.a.Decapsulate(ciphertext[:la])
	if err != nil {
		return nil, xerrors.Errorf("hybrid decapsulate (component a): %w", err)
	}
	ssB, err := h.b.Decapsulate(ciphertext[la:])
	if err != nil {
		return nil, xerrors.Errorf("hybrid decapsulate (component b): %w", err)
	}
	return h.combine(ssA, ssB), nil
}

func (h *hybridKEM) PublicKeyLength() int  { return h.a.PublicKeyLength() + h.b.PublicKeyLength() }
func (h *hybridKEM) CiphertextLength() int { return h.a.CiphertextLength() + h.b.CiphertextLength() }
