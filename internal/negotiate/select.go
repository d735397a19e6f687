// Package negotiate implements ZRTP's crypto negotiation (RFC 6189 §4.D):
// common-algorithm selection between a local and peer advertisement, and
// the post-quantum/X448 cipher+hash upgrade rule of RFC 6189 §4.B.
package negotiate

import (
	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/zrtperror"
)

var errNoCommonAlgo = zrtperror.ErrNoCommonAlgo

// Quintuple is the negotiated algorithm set bound to a channel.
type Quintuple struct {
	Hash         algo.Hash
	Cipher       algo.Cipher
	AuthTag      algo.AuthTag
	KeyAgreement algo.KeyAgreement
	SAS          algo.SAS
}

// common selects the intersection of self and peer, ordered by self's
// preference (self is the "issuer" per RFC 6189 §4.B), capped at
// algo.MaxPerFamily. The tie-break compares each side's own common-filtered
// head (not the raw, unfiltered top preference, which may not even be in
// the intersection): when self's and peer's common-filtered heads disagree,
// the numerically smaller (faster) enum value wins.
func common[T comparable](self, peer []T, less func(a, b T) bool) []T {
	peerSet := make(map[T]bool, len(peer))
	for _, p := range peer {
		peerSet[p] = true
	}
	selfSet := make(map[T]bool, len(self))
	for _, s := range self {
		selfSet[s] = true
	}

	var out []T
	for _, s := range self {
		if peerSet[s] {
			out = append(out, s)
		}
		if len(out) == algo.MaxPerFamily {
			break
		}
	}
	if len(out) == 0 {
		return out
	}

	var peerHead T
	found := false
	for _, p := range peer {
		if selfSet[p] {
			peerHead = p
			found = true
			break
		}
	}

	// Tie-break: only relevant when the two sides' common-filtered heads
	// disagree. out[0] is currently self's common-filtered head.
	if found && peerHead != out[0] && less(peerHead, out[0]) {
		out = moveToFront(out, peerHead)
	}
	return out
}

func moveToFront[T comparable](list []T, v T) []T {
	idx := -1
	for i, e := range list {
		if e == v {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return list
	}
	out := make([]T, 0, len(list))
	out = append(out, v)
	out = append(out, list[:idx]...)
	out = append(out, list[idx+1:]...)
	return out
}

func lessHash(a, b algo.Hash) bool                 { return a < b }
func lessCipher(a, b algo.Cipher) bool             { return a < b }
func lessAuthTag(a, b algo.AuthTag) bool           { return a < b }
func lessKeyAgreement(a, b algo.KeyAgreement) bool { return a < b }
func lessSAS(a, b algo.SAS) bool                   { return a < b }

// Select negotiates all five families from a local Hello's advertised
// lists and a peer Hello's advertised lists, applying the PQ/X448
// cipher+hash upgrade rule of RFC 6189 §4.B. self and peer are each already
// completed with their mandatory algorithms (algo.WithMandatory*) and
// ordered by their own preference.
func Select(selfHashes []algo.Hash, selfCiphers []algo.Cipher, selfAuthTags []algo.AuthTag, selfKAs []algo.KeyAgreement, selfSAS []algo.SAS,
	peerHashes []algo.Hash, peerCiphers []algo.Cipher, peerAuthTags []algo.AuthTag, peerKAs []algo.KeyAgreement, peerSAS []algo.SAS,
) (Quintuple, error) {
	kas := common(selfKAs, peerKAs, lessKeyAgreement)
	if len(kas) == 0 {
		return Quintuple{}, errNoCommonAlgo
	}
	ka := kas[0]

	hashes := common(selfHashes, peerHashes, lessHash)
	if len(hashes) == 0 {
		return Quintuple{}, errNoCommonAlgo
	}
	ciphers := common(selfCiphers, peerCiphers, lessCipher)
	if len(ciphers) == 0 {
		return Quintuple{}, errNoCommonAlgo
	}
	authTags := common(selfAuthTags, peerAuthTags, lessAuthTag)
	if len(authTags) == 0 {
		return Quintuple{}, errNoCommonAlgo
	}
	sasSchemes := common(selfSAS, peerSAS, lessSAS)
	if len(sasSchemes) == 0 {
		return Quintuple{}, errNoCommonAlgo
	}

	q := Quintuple{
		Hash:         hashes[0],
		Cipher:       ciphers[0],
		AuthTag:      authTags[0],
		KeyAgreement: ka,
		SAS:          sasSchemes[0],
	}

	// IsPostQuantum already reports true for plain K448 (see its case list
	// in algo.KeyAgreement), so this single guard covers both halves of
	// "post-quantum and X448" without a separate predicate.
	if ka.IsPostQuantum() {
		upgradeForPostQuantum(&q, ciphers, hashes)
	}

	return q, nil
}

// upgradeForPostQuantum applies RFC 6189 §4.B: "Post-quantum and X448 key
// agreements force the cipher to AES-256 (AES3) if available, else AES-192
// (AES2), else AES-128; and force the hash to SHA-512 if available, else
// SHA-384, else SHA-256."
func upgradeForPostQuantum(q *Quintuple, ciphers []algo.Cipher, hashes []algo.Hash) {
	q.Cipher = pickBest(ciphers, []algo.Cipher{algo.CipherAES3, algo.CipherAES2, algo.CipherAES1}, q.Cipher)
	q.Hash = pickBest(hashes, []algo.Hash{algo.HashS512, algo.HashS384, algo.HashS256}, q.Hash)
}

func pickBest[T comparable](available []T, preference []T, fallback T) T {
	set := make(map[T]bool, len(available))
	for _, a := range available {
		set[a] = true
	}
	for _, p := range preference {
		if set[p] {
			return p
		}
	}
	return fallback
}
