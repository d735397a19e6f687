// Package algo is the ZRTP algorithm registry: the per-family enumerations,
// their 4-char wire codes, and the mandatory-algorithm sets that every
// Hello must advertise.
//
// Enum values are ordered so that a smaller value means "faster/preferred",
// which lets negotiation tie-break with a plain numeric comparison.
package algo

// Hash is the negotiated hash algorithm family.
type Hash uint8

const (
	HashInvalid Hash = iota
	HashS256
	HashS384
	HashS512
)

// Cipher is the negotiated symmetric cipher family (always AES-CFB per
// RFC 6189 §4.A; the enum distinguishes key length).
type Cipher uint8

const (
	CipherInvalid Cipher = iota
	CipherAES1 // AES-128
	CipherAES2 // AES-192
	CipherAES3 // AES-256
)

// AuthTag is the negotiated SRTP authentication-tag algorithm.
type AuthTag uint8

const (
	AuthTagInvalid AuthTag = iota
	AuthTagHS32
	AuthTagHS80
	AuthTagSK32
	AuthTagSK80
	AuthTagGCM
)

// KeyAgreement is the negotiated key-agreement algorithm: a DH group
// (finite-field or the EC groups EC25/EC38/EC52), classic/PQ KEM (including
// X25519/X448, treated as a degenerate ephemeral-DH KEM), or one of the two
// non-DH modes (Multistream, Preshared).
type KeyAgreement uint8

const (
	KeyAgreementInvalid KeyAgreement = iota
	KeyAgreementDH2k
	KeyAgreementDH3k
	KeyAgreementEC25
	KeyAgreementEC38
	KeyAgreementEC52
	KeyAgreementK255 // X25519
	KeyAgreementK448 // X448
	KeyAgreementKyber512
	KeyAgreementKyber768
	KeyAgreementKyber1024
	KeyAgreementHQC128
	KeyAgreementHQC192
	KeyAgreementHQC256
	KeyAgreementX1K1 // K255 + Kyber512
	KeyAgreementX1H1 // K255 + HQC128
	KeyAgreementX3K3 // K448 + Kyber1024
	KeyAgreementX3H3 // K448 + HQC256
	KeyAgreementXKR1 // triple hybrid, rank 1
	KeyAgreementXKR3 // triple hybrid, rank 3
	KeyAgreementMult
	KeyAgreementPrsh
)

// SAS is the negotiated short-authentication-string rendering scheme.
type SAS uint8

const (
	SASInvalid SAS = iota
	SASBase32
	SASBase256
)

// IsPostQuantum reports whether the key-agreement algorithm involves a
// post-quantum or X448 component, which per RFC 6189 §4.B forces the cipher and
// hash upgrade rule in package negotiate.
func (k KeyAgreement) IsPostQuantum() bool {
	switch k {
	case KeyAgreementK448,
		KeyAgreementKyber512, KeyAgreementKyber768, KeyAgreementKyber1024,
		KeyAgreementHQC128, KeyAgreementHQC192, KeyAgreementHQC256,
		KeyAgreementX1K1, KeyAgreementX1H1, KeyAgreementX3K3, KeyAgreementX3H3,
		KeyAgreementXKR1, KeyAgreementXKR3:
		return true
	}
	return false
}

// IsKEM reports whether the algorithm is encapsulation-style (a ciphertext
// travels in DHPart1, a nonce in DHPart2) as opposed to classic
// two-sided-public-value DH.
func (k KeyAgreement) IsKEM() bool {
	switch k {
	case KeyAgreementK255, KeyAgreementK448,
		KeyAgreementKyber512, KeyAgreementKyber768, KeyAgreementKyber1024,
		KeyAgreementHQC128, KeyAgreementHQC192, KeyAgreementHQC256,
		KeyAgreementX1K1, KeyAgreementX1H1, KeyAgreementX3K3, KeyAgreementX3H3,
		KeyAgreementXKR1, KeyAgreementXKR3:
		return true
	}
	return false
}

// IsDHGroup reports whether the algorithm is classic finite-field or EC
// Diffie-Hellman (fixed-length public values exchanged by both sides).
func (k KeyAgreement) IsDHGroup() bool {
	switch k {
	case KeyAgreementDH2k, KeyAgreementDH3k,
		KeyAgreementEC25, KeyAgreementEC38, KeyAgreementEC52:
		return true
	}
	return false
}

// PVLength returns the fixed public-value (or, for KEM, ciphertext) length
// in bytes used by DHPart1, per RFC 6189 §4.C's length table. KEM algorithms
// whose ciphertext length is not fixed per-algorithm return 0; callers must
// use the backend's reported ciphertext length instead.
func (k KeyAgreement) PVLength() int {
	switch k {
	case KeyAgreementDH2k:
		return 256
	case KeyAgreementDH3k:
		return 384
	case KeyAgreementEC25:
		return 64
	case KeyAgreementEC38:
		return 96
	case KeyAgreementEC52:
		return 132
	case KeyAgreementK255:
		return 32
	case KeyAgreementK448:
		return 56
	}
	return 0
}
