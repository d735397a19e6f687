package zrtpcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/cloudflare/circl/dh/x25519"
	"github.com/cloudflare/circl/dh/x448"
	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/kyber/kyber1024"
	"github.com/cloudflare/circl/kem/kyber/kyber512"
	"github.com/cloudflare/circl/kem/kyber/kyber768"
	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/algo"
)

// CirclBackend is the sole Backend implementation shipped with this module:
// stdlib crypto/* for hash/HMAC/AES-CFB (no richer third-party equivalent
// exists in the retrieved pack), github.com/cloudflare/circl for X25519,
// X448, and Kyber512/768/1024. HQC is not offered (circl has no HQC
// package; see DESIGN.md).
type CirclBackend struct{}

// NewCirclBackend returns the default backend.
func NewCirclBackend() *CirclBackend { return &CirclBackend{} }

var _ Backend = (*CirclBackend)(nil)

func (b *CirclBackend) SHA256(input []byte) []byte { h := sha256.Sum256(input); return h[:] }
func (b *CirclBackend) SHA384(input []byte) []byte { h := sha512.Sum384(input); return h[:] }
func (b *CirclBackend) SHA512(input []byte) []byte { h := sha512.Sum512(input); return h[:] }

func (b *CirclBackend) Hash(h algo.Hash, input []byte) []byte {
	switch h {
	case algo.HashS256:
		return b.SHA256(input)
	case algo.HashS384:
		return b.SHA384(input)
	case algo.HashS512:
		return b.SHA512(input)
	default:
		return nil
	}
}

func (b *CirclBackend) HashLength(h algo.Hash) int {
	switch h {
	case algo.HashS256:
		return sha256.Size
	case algo.HashS384:
		return sha512.Size384
	case algo.HashS512:
		return sha512.Size
	default:
		return 0
	}
}

func (b *CirclBackend) HMAC(h algo.Hash, key, input []byte, outLen int) []byte {
	var mac interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
	switch h {
	case algo.HashS256:
		mac = hmac.New(sha256.New, key)
	case algo.HashS384:
		mac = hmac.New(sha512.New384, key)
	case algo.HashS512:
		mac = hmac.New(sha512.New, key)
	default:
		return nil
	}
	mac.Write(input)
	sum := mac.Sum(nil)
	if outLen > 0 && outLen < len(sum) {
		return sum[:outLen]
	}
	return sum
}

func (b *CirclBackend) CipherKeyLength(c algo.Cipher) int {
	switch c {
	case algo.CipherAES1:
		return 16
	case algo.CipherAES2:
		return 24
	case algo.CipherAES3:
		return 32
	default:
		return 0
	}
}

func (b *CirclBackend) AESCFBEncrypt(c algo.Cipher, key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, xerrors.Errorf("aes-cfb encrypt: %w", err)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, plaintext)
	return out, nil
}

func (b *CirclBackend) AESCFBDecrypt(c algo.Cipher, key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, xerrors.Errorf("aes-cfb decrypt: %w", err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, ciphertext)
	return out, nil
}

func (b *CirclBackend) RNGBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, xerrors.Errorf("rng: %w", err)
	}
	return buf, nil
}

func (b *CirclBackend) SupportsKeyAgreement(k algo.KeyAgreement) bool {
	switch k {
	case algo.KeyAgreementHQC128, algo.KeyAgreementHQC192, algo.KeyAgreementHQC256,
		algo.KeyAgreementX1H1, algo.KeyAgreementX3H3,
		algo.KeyAgreementXKR1, algo.KeyAgreementXKR3,
		algo.KeyAgreementEC25, algo.KeyAgreementEC38, algo.KeyAgreementEC52:
		// No HQC package in circl; hybrids that include an HQC component
		// are unavailable too. The EC groups have neither a NewDH nor a
		// NewKEM implementation here.
		return false
	default:
		return true
	}
}

func (b *CirclBackend) kyberScheme(k algo.KeyAgreement) kem.Scheme {
	switch k {
	case algo.KeyAgreementKyber512:
		return kyber512.Scheme()
	case algo.KeyAgreementKyber768:
		return kyber768.Scheme()
	case algo.KeyAgreementKyber1024:
		return kyber1024.Scheme()
	default:
		return nil
	}
}

// NewDH is only used for the classic finite-field groups (DH-2048/3072);
// X25519/X448 are modeled as KEMs per ZRTP's wire layout (see KEM doc
// comment), and the EC groups (EC25/EC38/EC52) are not implemented by this
// backend at all, so NewDH rejects them.
func (b *CirclBackend) NewDH(k algo.KeyAgreement) (DH, error) {
	switch k {
	case algo.KeyAgreementDH2k:
		return newFFDHE(ffdheGroup2048)
	case algo.KeyAgreementDH3k:
		return newFFDHE(ffdheGroup3072)
	default:
		return nil, xerrors.Errorf("unsupported classic DH group %v", k)
	}
}

func (b *CirclBackend) NewKEM(k algo.KeyAgreement, hash algo.Hash) (KEM, error) {
	switch {
	case k == algo.KeyAgreementK255:
		return newX25519KEM(), nil
	case k == algo.KeyAgreementK448:
		return newX448KEM(), nil
	case k == algo.KeyAgreementKyber512 || k == algo.KeyAgreementKyber768 || k == algo.KeyAgreementKyber1024:
		scheme := b.kyberScheme(k)
		if scheme == nil {
			return nil, xerrors.Errorf("unsupported KEM %v", k)
		}
		return &circlKEM{scheme: scheme}, nil
	case k == algo.KeyAgreementX1K1:
		inner, err := b.NewKEM(algo.KeyAgreementKyber512, hash)
		if err != nil {
			return nil, err
		}
		return newHybridKEM(b, hash, newX25519KEM(), inner), nil
	case k == algo.KeyAgreementX3K3:
		inner, err := b.NewKEM(algo.KeyAgreementKyber1024, hash)
		if err != nil {
			return nil, err
		}
		return newHybridKEM(b, hash, newX448KEM(), inner), nil
	default:
		return nil, xerrors.Errorf("unsupported KEM %v", k)
	}
}

// circlKEM adapts a circl kem.Scheme (Kyber) to the Backend's KEM
// interface.
type circlKEM struct {
	scheme kem.Scheme
	sk     kem.PrivateKey
}

func (k *circlKEM) GenerateKeyPair() ([]byte, error) {
	pk, sk, err := k.scheme.GenerateKeyPair()
	if err != nil {
		return nil, xerrors.Errorf("kyber keygen: %w", err)
	}
	k.sk = sk
	raw, err := pk.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("kyber marshal pubkey: %w", err)
	}
	return raw, nil
}

func (k *circlKEM) Encapsulate(peerPublicKey []byte) (ct, ss []byte, err error) {
	pk, err := k.scheme.UnmarshalBinaryPublicKey(peerPublicKey)
	if err != nil {
		return nil, nil, xerrors.Errorf("kyber unmarshal pubkey: %w", err)
	}
	ct, ss, err = k.scheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, xerrors.Errorf("kyber encapsulate: %w", err)
	}
	return ct, ss, nil
}

func (k *circlKEM) Decapsulate(ciphertext []byte) ([]byte, error) {
	if k.sk == nil {
		return nil, xerrors.New("kyber decapsulate: context not ready")
	}
	ss, err := k.scheme.Decapsulate(k.sk, ciphertext)
	if err != nil {
		return nil, xerrors.Errorf("kyber decapsulate: %w", err)
	}
	return ss, nil
}

func (k *circlKEM) PublicKeyLength() int  { return k.scheme.PublicKeySize() }
func (k *circlKEM) CiphertextLength() int { return k.scheme.CiphertextSize() }
