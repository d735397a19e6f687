package zrtpcrypto

import (
	"crypto/rand"

	"github.com/cloudflare/circl/dh/x25519"
	"github.com/cloudflare/circl/dh/x448"
	"golang.org/x/xerrors"
)

// x25519KEM and x448KEM model the X25519/X448 Diffie-Hellman groups as
// KEMs, per RFC 6189 §4.A's K255/K448 codepoints: GenerateKeyPair produces the
// long-lived side's public key (carried in Commit/DHPart2 in the wire
// layout); Encapsulate generates a fresh ephemeral keypair, runs DH against
// the peer's public key, and returns the ephemeral public key as the
// "ciphertext" (carried in DHPart1) alongside the shared secret;
// Decapsulate runs DH between the stored private key and the ciphertext.
type x25519KEM struct {
	priv x25519.Key
	pub  x25519.Key
	have bool
}

func newX25519KEM() *x25519KEM { return &x25519KEM{} }

func (k *x25519KEM) GenerateKeyPair() ([]byte, error) {
	if _, err := rand.Read(k.priv[:]); err != nil {
		return nil, xerrors.Errorf("x25519 keygen: %w", err)
	}
	x25519.KeyGen(&k.pub, &k.priv)
	k.have = true
	return append([]byte(nil), k.pub[:]...), nil
}

func (k *x25519KEM) Encapsulate(peerPublicKey []byte) (ct, ss []byte, err error) {
	if len(peerPublicKey) != x25519.Size {
		return nil, nil, xerrors.Errorf("x25519 encapsulate: bad public key length %d", len(peerPublicKey))
	}
	var ephPriv, ephPub, peerPub, shared x25519.Key
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, nil, xerrors.Errorf("x25519 encapsulate: %w", err)
	}
	x25519.KeyGen(&ephPub, &ephPriv)
	copy(peerPub[:], peerPublicKey)
	if !x25519.Shared(&shared, &ephPriv, &peerPub) {
		return nil, nil, xerrors.New("x25519 encapsulate: low-order peer public key")
	}
	return append([]byte(nil), ephPub[:]...), append([]byte(nil), shared[:]...), nil
}

func (k *x25519KEM) Decapsulate(ciphertext []byte) ([]byte, error) {
	if !k.have {
		return nil, xerrors.New("x25519 decapsulate: context not ready")
	}
	if len(ciphertext) != x25519.Size {
		return nil, xerrors.Errorf("x25519 decapsulate: bad ciphertext length %d", len(ciphertext))
	}
	var ephPub, shared x25519.Key
	copy(ephPub[:], ciphertext)
	if !x25519.Shared(&shared, &k.priv, &ephPub) {
		return nil, xerrors.New("x25519 decapsulate: low-order ciphertext")
	}
	return append([]byte(nil), shared[:]...), nil
}

func (k *x25519KEM) PublicKeyLength() int  { return x25519.Size }
func (k *x25519KEM) CiphertextLength() int { return x25519.Size }

type x448KEM struct {
	priv x448.Key
	pub  x448.Key
	have bool
}

func newX448KEM() *x448KEM { return &x448KEM{} }

func (k *x448KEM) GenerateKeyPair() ([]byte, error) {
	if _, err := rand.Read(k.priv[:]); err != nil {
		return nil, xerrors.Errorf("x448 keygen: %w", err)
	}
	x448.KeyGen(&k.pub, &k.priv)
	k.have = true
	return append([]byte(nil), k.pub[:]...), nil
}

func (k *x448KEM) Encapsulate(peerPublicKey []byte) (ct, ss []byte, err error) {
	if len(peerPublicKey) != x448.Size {
		return nil, nil, xerrors.Errorf("x448 encapsulate: bad public key length %d", len(peerPublicKey))
	}
	var ephPriv, ephPub, peerPub, shared x448.Key
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, nil, xerrors.Errorf("x448 encapsulate: %w", err)
	}
	x448.KeyGen(&ephPub, &ephPriv)
	copy(peerPub[:], peerPublicKey)
	if !x448.Shared(&shared, &ephPriv, &peerPub) {
		return nil, nil, xerrors.New("x448 encapsulate: low-order peer public key")
	}
	return append([]byte(nil), ephPub[:]...), append([]byte(nil), shared[:]...), nil
}

func (k *x448KEM) Decapsulate(ciphertext []byte) ([]byte, error) {
	if !k.have {
		return nil, xerrors.New("x448 decapsulate: context not ready")
	}
	if len(ciphertext) != x448.Size {
		return nil, xerrors.Errorf("x448 decapsulate: bad ciphertext length %d", len(ciphertext))
	}
	var ephPub, shared x448.Key
	copy(ephPub[:], ciphertext)
	if !x448.Shared(&shared, &k.priv, &ephPub) {
		return nil, xerrors.New("x448 decapsulate: low-order ciphertext")
	}
	return append([]byte(nil), shared[:]...), nil
}

func (k *x448KEM) PublicKeyLength() int  { return x448.Size }
func (k *x448KEM) CiphertextLength() int { return x448.Size }
