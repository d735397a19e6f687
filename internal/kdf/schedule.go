package kdf

import (
	"encoding/binary"

	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/zrtpcrypto"
)

// RetainedSecrets bundles the three optional inputs to s0 (RFC 6189 §4.E step
// 4): s1 is whichever of rs1/rs2 matched (rs1 preferred), s2 is
// auxsecret, s3 is pbxsecret. A nil slice means "missing" and contributes
// a zero length with no bytes, per spec.
type RetainedSecrets struct {
	S1, S2, S3 []byte
}

// ComputeTotalHash hashes the concatenation of the given packet bodies
// (each already stripped of its 12-byte packet header, per RFC 6189 §4.E step
// 1), in the order given by the caller (responder Hello, Commit, DHPart1,
// DHPart2 for channel 0; responder Hello, Commit only for multistream).
func ComputeTotalHash(b zrtpcrypto.Backend, h algo.Hash, parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return b.Hash(h, buf)
}

// ComputeKDFContext builds KDF_Context = ZIDi || ZIDr || total_hash.
func ComputeKDFContext(zidInitiator, zidResponder, totalHash []byte) []byte {
	out := make([]byte, 0, len(zidInitiator)+len(zidResponder)+len(totalHash))
	out = append(out, zidInitiator...)
	out = append(out, zidResponder...)
	out = append(out, totalHash...)
	return out
}

const s0HMACKDFLabel = "ZRTP-HMAC-KDF"

// ComputeS0 implements RFC 6189 §4.E step 4:
//
//	s0 = H(0x00000001 || DHResult || "ZRTP-HMAC-KDF" || KDF_Context ||
//	       len(s1)||s1 || len(s2)||s2 || len(s3)||s3)
func ComputeS0(b zrtpcrypto.Backend, h algo.Hash, dhResult, kdfContext []byte, secrets RetainedSecrets) []byte {
	buf := make([]byte, 0, 4+len(dhResult)+len(s0HMACKDFLabel)+len(kdfContext)+
		4+len(secrets.S1)+4+len(secrets.S2)+4+len(secrets.S3))
	buf = append(buf, 0x00, 0x00, 0x00, 0x01)
	buf = append(buf, dhResult...)
	buf = append(buf, []byte(s0HMACKDFLabel)...)
	buf = append(buf, kdfContext...)
	buf = appendLengthPrefixed(buf, secrets.S1)
	buf = appendLengthPrefixed(buf, secrets.S2)
	buf = appendLengthPrefixed(buf, secrets.S3)
	return b.Hash(h, buf)
}

func appendLengthPrefixed(buf, secret []byte) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(secret)))
	buf = append(buf, l[:]...)
	buf = append(buf, secret...)
	return buf
}

// ZRTPSession computes ZRTPSess = KDF(s0, "ZRTP Session Key", KDF_Context,
// hashLength), created once, on channel 0's completion (RFC 6189 §3 invariant).
func ZRTPSession(b zrtpcrypto.Backend, h algo.Hash, s0, kdfContext []byte) []byte {
	return Derive(b, h, s0, "ZRTP Session Key", kdfContext, b.HashLength(h))
}

// MultistreamS0 implements the multistream-channel variant of s0 (spec
// §4.E, "Multistream channel N>0"): s0 = KDF(ZRTPSess, "ZRTP MSK",
// KDF_Context, hashLength). No DH is performed for these channels.
func MultistreamS0(b zrtpcrypto.Backend, h algo.Hash, zrtpSess, kdfContext []byte) []byte {
	return Derive(b, h, zrtpSess, "ZRTP MSK", kdfContext, b.HashLength(h))
}

// ChannelKeys holds the per-channel derivations common to both the
// channel-0 (DH/KEM) and multistream-channel key schedules; RFC 6189 §4.E says
// "same call for DH and multistream channels, differing only in the s0
// input".
type ChannelKeys struct {
	MacKeyInitiator  []byte
	MacKeyResponder  []byte
	ZRTPKeyInitiator []byte
	ZRTPKeyResponder []byte
}

// DeriveChannelKeys computes mackey_{i,r} and zrtpkey_{i,r} from s0.
func DeriveChannelKeys(b zrtpcrypto.Backend, h algo.Hash, c algo.Cipher, s0, kdfContext []byte) ChannelKeys {
	hashLen := b.HashLength(h)
	cipherKeyLen := b.CipherKeyLength(c)
	return ChannelKeys{
		MacKeyInitiator:  Derive(b, h, s0, "Initiator HMAC key", kdfContext, hashLen),
		MacKeyResponder:  Derive(b, h, s0, "Responder HMAC key", kdfContext, hashLen),
		ZRTPKeyInitiator: Derive(b, h, s0, "Initiator ZRTP key", kdfContext, cipherKeyLen),
		ZRTPKeyResponder: Derive(b, h, s0, "Responder ZRTP key", kdfContext, cipherKeyLen),
	}
}

// SRTPSecrets holds the master key/salt pair for each direction, handed to
// the host via the srtp_secrets_available callback (RFC 6189 §6); this module
// never performs SRTP encryption itself (RFC 6189 §1 Non-goals).
type SRTPSecrets struct {
	InitiatorKey  []byte
	InitiatorSalt []byte
	ResponderKey  []byte
	ResponderSalt []byte
}

const (
	srtpMasterKeyLength  = 16 // AES-128 default master key length
	srtpMasterSaltLength = 14
)

// DeriveSRTPSecrets derives the SRTP master key/salt pairs for both
// directions from s0, using the standard ZRTP labels (RFC 6189 §4.E).
func DeriveSRTPSecrets(b zrtpcrypto.Backend, h algo.Hash, c algo.Cipher, s0, kdfContext []byte) SRTPSecrets {
	keyLen := b.CipherKeyLength(c)
	if keyLen == 0 {
		keyLen = srtpMasterKeyLength
	}
	return SRTPSecrets{
		InitiatorKey:  Derive(b, h, s0, "Initiator SRTP master key", kdfContext, keyLen),
		InitiatorSalt: Derive(b, h, s0, "Initiator SRTP master salt", kdfContext, srtpMasterSaltLength),
		ResponderKey:  Derive(b, h, s0, "Responder SRTP master key", kdfContext, keyLen),
		ResponderSalt: Derive(b, h, s0, "Responder SRTP master salt", kdfContext, srtpMasterSaltLength),
	}
}
