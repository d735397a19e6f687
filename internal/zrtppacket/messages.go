package zrtppacket

import "github.com/lanikai/zrtp/internal/algo"

// MessageType is the 8-byte, space-padded ASCII message-type tag (spec
// §4.C).
type MessageType [8]byte

func messageType(s string) MessageType {
	var t MessageType
	copy(t[:], s)
	for i := len(s); i < 8; i++ {
		t[i] = ' '
	}
	return t
}

func (t MessageType) String() string { return string(t[:]) }

var (
	TypeHello    = messageType("Hello")
	TypeHelloACK = messageType("HelloACK")
	TypeCommit   = messageType("Commit")
	TypeDHPart1  = messageType("DHPart1")
	TypeDHPart2  = messageType("DHPart2")
	TypeConfirm1 = messageType("Confirm1")
	TypeConfirm2 = messageType("Confirm2")
	TypeConf2ACK = messageType("Conf2ACK")
	TypeError    = messageType("Error")
	TypeErrorACK = messageType("ErrorACK")
	TypeGoClear  = messageType("GoClear")
	TypeClearACK = messageType("ClearACK")
	TypeSASRelay = messageType("SASrelay")
	TypeRelayACK = messageType("RelayACK")
	TypePing     = messageType("Ping")
	TypePingACK  = messageType("PingACK")
)

// knownTypes lists every message type the codec accepts during Check; any
// other tag is ErrUnknownMessageType.
var knownTypes = map[MessageType]bool{
	TypeHello: true, TypeHelloACK: true, TypeCommit: true,
	TypeDHPart1: true, TypeDHPart2: true,
	TypeConfirm1: true, TypeConfirm2: true, TypeConf2ACK: true,
	TypeError: true, TypeErrorACK: true,
	TypeGoClear: true, TypeClearACK: true,
	TypeSASRelay: true, TypeRelayACK: true,
	TypePing: true, TypePingACK: true,
}

// Hello is the RFC 6189 §5.2 Hello message, plus this core's post-quantum
// algorithm codepoints.
type Hello struct {
	Version  string // 4 bytes, e.g. "1.10"
	ClientID [16]byte
	H3       [32]byte
	ZID      [12]byte
	S, M, P  bool

	Hashes        []algo.Hash
	Ciphers       []algo.Cipher
	AuthTags      []algo.AuthTag
	KeyAgreements []algo.KeyAgreement
	SASSchemes    []algo.SAS

	MAC [8]byte
}

// Commit is the RFC 6189 §5.4 Commit message. Exactly one of HVI, Nonce,
// or (Nonce, KeyID) is populated, chosen by KeyAgreement's mode: DH and
// KEM modes carry HVI (for KEM, alongside the public value in PV);
// Multistream carries only Nonce; Preshared carries Nonce and KeyID.
type Commit struct {
	H2  [32]byte
	ZID [12]byte

	Hash         algo.Hash
	Cipher       algo.Cipher
	AuthTag      algo.AuthTag
	KeyAgreement algo.KeyAgreement
	SAS          algo.SAS

	HVI   [32]byte // DH and KEM modes
	Nonce [16]byte // Multistream and Preshared modes
	KeyID [8]byte  // Preshared mode only

	// PV carries the KEM initiator's ephemeral public key when
	// KeyAgreement.IsKEM() is true; unused for DH/Multistream/Preshared.
	PV []byte

	MAC [8]byte
}

// DHPart is shared by DHPart1 (responder -> initiator) and DHPart2
// (initiator -> responder). PV holds the classic/EC DH public value, the
// KEM ciphertext (DHPart1 only), or a fixed 32-byte nonce (KEM DHPart2
// only).
type DHPart struct {
	H1           [32]byte
	RS1ID        [8]byte
	RS2ID        [8]byte
	AuxSecretID  [8]byte
	PBXSecretID  [8]byte
	PV           []byte
	MAC          [8]byte
}

// Confirm is shared by Confirm1 (responder -> initiator) and Confirm2
// (initiator -> responder). RawCipherText holds everything from offset 24
// onward as transmitted (the encrypted body); the plaintext fields below
// are only valid after the channel has decrypted and authenticated it.
type Confirm struct {
	MAC8      [8]byte // first 8 bytes: HMAC of the ciphertext, keyed by mackey
	IV        [16]byte
	H0        [32]byte
	SigLen    uint16 // in words
	E, V, A, D bool
	CacheExpirationInterval uint32
	Signature []byte

	// RawCipherText, when set (by Parse on receipt, or by the channel
	// after it encrypts the plaintext fields and before Build), is the
	// as-transmitted encrypted body starting at H0. The channel layer is
	// responsible for the AES-CFB step; the codec only frames the
	// ciphertext and encodes/decodes the plaintext fields.
	RawCipherText []byte
}

type GoClear struct {
	ClearMAC [8]byte
}

// SASRelay carries the encrypted V/A/D flags, an opaque rendering-scheme
// tag, and the relayed peer's sashash (RFC 6189 §4.C; bzrtp's PBX signature
// block is carried the same way Confirm's is).
type SASRelay struct {
	MAC8      [8]byte
	IV        [16]byte
	V, A, D   bool
	Scheme    algo.Wire
	SASHash   [32]byte
	Signature []byte

	RawCipherText []byte
}

// Error is RFC 6189 §5.9's Error message: a single 4-byte code.
type Error struct {
	Code uint32
}

type Ping struct {
	Version      string // 4 bytes
	EndpointHash [8]byte
}

type PingACK struct {
	Version    string // 4 bytes
	SenderHash [8]byte // echoes the Ping's EndpointHash
	SourceHash [8]byte // this endpoint's own hash
	SourceSSRC uint32
}

// Packet is the codec's value object (RFC 6189 §3): wire header fields, the
// message-type tag, and exactly one populated message-variant field (the
// "sum type over all message variants"). PacketString, once set, is the
// byte-exact on-the-wire representation.
type Packet struct {
	Header
	Type MessageType

	Hello    *Hello
	HelloACK *struct{}
	Commit   *Commit
	DHPart1  *DHPart
	DHPart2  *DHPart
	Confirm1 *Confirm
	Confirm2 *Confirm
	Conf2ACK *struct{}
	GoClear  *GoClear
	ClearACK *struct{}
	Error    *Error
	ErrorACK *struct{}
	SASRelay *SASRelay
	RelayACK *struct{}
	Ping     *Ping
	PingACK  *PingACK

	PacketString []byte
}
