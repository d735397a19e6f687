package zrtpcrypto

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/xerrors"
)

// Classic finite-field Diffie-Hellman (DH-2048, DH-3072), the mandatory
// key-agreement algorithm per RFC 6189 §4.B. No pack dependency (circl
// included) implements finite-field DH; see DESIGN.md for why math/big
// against the RFC 3526 MODP primes is used directly instead.

type ffdheGroup struct {
	p        *big.Int
	g        *big.Int
	byteSize int
}

var ffdheGroup2048 = mustFFDHEGroup(ffdhe2048Hex, 256)
var ffdheGroup3072 = mustFFDHEGroup(ffdhe3072Hex, 384)

func mustFFDHEGroup(hexPrime string, byteSize int) *ffdheGroup {
	p, ok := new(big.Int).SetString(hexPrime, 16)
	if !ok {
		panic("zrtpcrypto: malformed FFDHE prime constant")
	}
	return &ffdheGroup{p: p, g: big.NewInt(2), byteSize: byteSize}
}

type ffdheDH struct {
	group  *ffdheGroup
	priv   *big.Int
	pubVal []byte
}

func newFFDHE(group *ffdheGroup) (*ffdheDH, error) {
	// Private exponent: a uniformly random value < p-1, at least as large
	// as the group's security level requires. We take a full-width random
	// value modulo p-2, plus 1, which is adequate for the ephemeral,
	// single-use exponents ZRTP needs.
	buf := make([]byte, group.byteSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, xerrors.Errorf("ffdhe keygen: %w", err)
	}
	priv := new(big.Int).SetBytes(buf)
	pMinus2 := new(big.Int).Sub(group.p, big.NewInt(2))
	priv.Mod(priv, pMinus2)
	priv.Add(priv, big.NewInt(1))

	pub := new(big.Int).Exp(group.g, priv, group.p)
	return &ffdheDH{
		group:  group,
		priv:   priv,
		pubVal: leftPad(pub.Bytes(), group.byteSize),
	}, nil
}

func (d *ffdheDH) SelfPublicValue() []byte { return append([]byte(nil), d.pubVal...) }

func (d *ffdheDH) ComputeShared(peerPublicValue []byte) ([]byte, error) {
	if len(peerPublicValue) != d.group.byteSize {
		return nil, xerrors.Errorf("ffdhe: bad peer public value length %d", len(peerPublicValue))
	}
	peerPub := new(big.Int).SetBytes(peerPublicValue)
	one := big.NewInt(1)
	pMinus1 := new(big.Int).Sub(d.group.p, one)
	if peerPub.Cmp(one) <= 0 || peerPub.Cmp(pMinus1) >= 0 {
		return nil, xerrors.New("ffdhe: peer public value out of range")
	}
	shared := new(big.Int).Exp(peerPub, d.priv, d.group.p)
	return leftPad(shared.Bytes(), d.group.byteSize), nil
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b[len(b)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// RFC 3526 MODP group 14 (2048-bit) and group 15 (3072-bit) primes,
// generator 2.
const ffdhe2048Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC7" +
	"4020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14" +
	"374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B" +
	"7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163" +
	"BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208" +
	"552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E" +
	"36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF69" +
	"55817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFF" +
	"FFFFFFFF"

const ffdhe3072Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC7" +
	"4020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14" +
	"374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B" +
	"7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163" +
	"BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208" +
	"552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E" +
	"36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF69" +
	"55817183995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D" +
	"04507A33A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F8" +
	"5A6E1E4C7ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA" +
	"06D98A0864D87602733EC86A64521F2B18177B200CBBE117577A615D6C77098" +
	"8C0BAD946E208E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFF" +
	"FFFFFFFFFFFF"
