package zrtppacket

import (
	"encoding/binary"

	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/packet"
	"github.com/lanikai/zrtp/internal/zrtperror"
)

// helloFlagsWord packs the five algorithm-list counts and the S/M/P flags
// into a single 32-bit word (RFC 6189 §4.C). This core's own internal framing
// choice; the counts it carries are recovered by the parser, not relied on
// by negotiate, which only ever looks at the decoded slices.
func packHelloFlags(hc, cc, ac, kc, sc int, s, m, p bool) uint32 {
	v := uint32(hc&0xf)<<28 | uint32(cc&0xf)<<24 | uint32(ac&0xf)<<20 |
		uint32(kc&0xf)<<16 | uint32(sc&0xf)<<12
	if s {
		v |= 1 << 3
	}
	if m {
		v |= 1 << 2
	}
	if p {
		v |= 1 << 1
	}
	return v
}

func unpackHelloFlags(v uint32) (hc, cc, ac, kc, sc int, s, m, p bool) {
	hc = int(v >> 28 & 0xf)
	cc = int(v >> 24 & 0xf)
	ac = int(v >> 20 & 0xf)
	kc = int(v >> 16 & 0xf)
	sc = int(v >> 12 & 0xf)
	s = v&(1<<3) != 0
	m = v&(1<<2) != 0
	p = v&(1<<1) != 0
	return
}

// Parse decodes a message body (as returned by Check) into the variant
// named by typ, populating one field of pkt. The caller is responsible for
// having already validated framing via Check; Parse only validates
// message-specific structure (declared algorithm counts fit the body
// length, etc.) and returns zrtperror.ErrInvalidMessage on mismatch.
func Parse(pkt *Packet, typ MessageType, body []byte) error {
	pkt.Type = typ
	switch typ {
	case TypeHello:
		h, err := parseHello(body)
		if err != nil {
			return err
		}
		pkt.Hello = h
	case TypeHelloACK:
		if len(body) != 0 {
			return zrtperror.ErrInvalidMessage
		}
		pkt.HelloACK = &struct{}{}
	case TypeCommit:
		c, err := parseCommit(body)
		if err != nil {
			return err
		}
		pkt.Commit = c
	case TypeDHPart1:
		d, err := parseDHPart(body)
		if err != nil {
			return err
		}
		pkt.DHPart1 = d
	case TypeDHPart2:
		d, err := parseDHPart(body)
		if err != nil {
			return err
		}
		pkt.DHPart2 = d
	case TypeConfirm1:
		c, err := parseConfirm(body)
		if err != nil {
			return err
		}
		pkt.Confirm1 = c
	case TypeConfirm2:
		c, err := parseConfirm(body)
		if err != nil {
			return err
		}
		pkt.Confirm2 = c
	case TypeConf2ACK:
		if len(body) != 0 {
			return zrtperror.ErrInvalidMessage
		}
		pkt.Conf2ACK = &struct{}{}
	case TypeError:
		if len(body) != 4 {
			return zrtperror.ErrInvalidMessage
		}
		pkt.Error = &Error{Code: binary.BigEndian.Uint32(body)}
	case TypeErrorACK:
		if len(body) != 0 {
			return zrtperror.ErrInvalidMessage
		}
		pkt.ErrorACK = &struct{}{}
	case TypeGoClear:
		if len(body) != 8 {
			return zrtperror.ErrInvalidMessage
		}
		g := &GoClear{}
		copy(g.ClearMAC[:], body)
		pkt.GoClear = g
	case TypeClearACK:
		if len(body) != 0 {
			return zrtperror.ErrInvalidMessage
		}
		pkt.ClearACK = &struct{}{}
	case TypeSASRelay:
		s, err := parseSASRelay(body)
		if err != nil {
			return err
		}
		pkt.SASRelay = s
	case TypeRelayACK:
		if len(body) != 0 {
			return zrtperror.ErrInvalidMessage
		}
		pkt.RelayACK = &struct{}{}
	case TypePing:
		p, err := parsePing(body)
		if err != nil {
			return err
		}
		pkt.Ping = p
	case TypePingACK:
		p, err := parsePingACK(body)
		if err != nil {
			return err
		}
		pkt.PingACK = p
	default:
		return zrtperror.ErrUnknownMessageType
	}
	return nil
}

func parseHello(body []byte) (*Hello, error) {
	// version(4) clientID(16) H3(32) ZID(12) flags(4) = 68, plus MAC(8) = 76
	// minimum, before any algorithm lists.
	if len(body) < 76 {
		return nil, zrtperror.ErrInvalidMessage
	}
	r := packet.NewReader(body)
	h := &Hello{}
	h.Version = string(r.ReadSlice(4))
	copy(h.ClientID[:], r.ReadSlice(16))
	copy(h.H3[:], r.ReadSlice(32))
	copy(h.ZID[:], r.ReadSlice(12))
	flags := r.ReadUint32()
	hc, cc, ac, kc, sc, s, m, p := unpackHelloFlags(flags)
	h.S, h.M, h.P = s, m, p

	need := 4*(hc+cc+ac+kc+sc) + 8
	if r.Remaining() != need {
		return nil, zrtperror.ErrInvalidMessage
	}

	for i := 0; i < hc; i++ {
		var w algo.Wire
		copy(w[:], r.ReadSlice(4))
		v, ok := algo.HashFromWire(w)
		if !ok {
			return nil, zrtperror.ErrInvalidHashChoice
		}
		h.Hashes = append(h.Hashes, v)
	}
	for i := 0; i < cc; i++ {
		var w algo.Wire
		copy(w[:], r.ReadSlice(4))
		v, ok := algo.CipherFromWire(w)
		if !ok {
			return nil, zrtperror.ErrInvalidCipherChoice
		}
		h.Ciphers = append(h.Ciphers, v)
	}
	for i := 0; i < ac; i++ {
		var w algo.Wire
		copy(w[:], r.ReadSlice(4))
		v, ok := algo.AuthTagFromWire(w)
		if !ok {
			return nil, zrtperror.ErrInvalidAuthTagChoice
		}
		h.AuthTags = append(h.AuthTags, v)
	}
	for i := 0; i < kc; i++ {
		var w algo.Wire
		copy(w[:], r.ReadSlice(4))
		v, ok := algo.KeyAgreementFromWire(w)
		if !ok {
			return nil, zrtperror.ErrInvalidCipherChoice
		}
		h.KeyAgreements = append(h.KeyAgreements, v)
	}
	for i := 0; i < sc; i++ {
		var w algo.Wire
		copy(w[:], r.ReadSlice(4))
		v, ok := algo.SASFromWire(w)
		if !ok {
			return nil, zrtperror.ErrInvalidSASChoice
		}
		h.SASSchemes = append(h.SASSchemes, v)
	}
	copy(h.MAC[:], r.ReadSlice(8))
	return h, nil
}

func parseCommit(body []byte) (*Commit, error) {
	// H2(32) ZID(12) hash/cipher/authtag/ka/sas(4 each=20) = 64, MAC(8) = 72
	// minimum, before the key-agreement-specific variable part.
	if len(body) < 72 {
		return nil, zrtperror.ErrInvalidMessage
	}
	r := packet.NewReader(body)
	c := &Commit{}
	copy(c.H2[:], r.ReadSlice(32))
	copy(c.ZID[:], r.ReadSlice(12))

	var w algo.Wire
	copy(w[:], r.ReadSlice(4))
	hash, ok := algo.HashFromWire(w)
	if !ok {
		return nil, zrtperror.ErrInvalidHashChoice
	}
	c.Hash = hash

	copy(w[:], r.ReadSlice(4))
	cipher, ok := algo.CipherFromWire(w)
	if !ok {
		return nil, zrtperror.ErrInvalidCipherChoice
	}
	c.Cipher = cipher

	copy(w[:], r.ReadSlice(4))
	authTag, ok := algo.AuthTagFromWire(w)
	if !ok {
		return nil, zrtperror.ErrInvalidAuthTagChoice
	}
	c.AuthTag = authTag

	copy(w[:], r.ReadSlice(4))
	ka, ok := algo.KeyAgreementFromWire(w)
	if !ok {
		return nil, zrtperror.ErrInvalidCipherChoice
	}
	c.KeyAgreement = ka

	copy(w[:], r.ReadSlice(4))
	sas, ok := algo.SASFromWire(w)
	if !ok {
		return nil, zrtperror.ErrInvalidSASChoice
	}
	c.SAS = sas

	switch {
	case ka == algo.KeyAgreementMult:
		if r.Remaining() != 16+8 {
			return nil, zrtperror.ErrInvalidMessage
		}
		copy(c.Nonce[:], r.ReadSlice(16))
	case ka == algo.KeyAgreementPrsh:
		if r.Remaining() != 16+8+8 {
			return nil, zrtperror.ErrInvalidMessage
		}
		copy(c.Nonce[:], r.ReadSlice(16))
		copy(c.KeyID[:], r.ReadSlice(8))
	case ka.IsKEM():
		if r.Remaining() < 32+8 {
			return nil, zrtperror.ErrInvalidMessage
		}
		copy(c.HVI[:], r.ReadSlice(32))
		c.PV = append([]byte(nil), r.ReadSlice(r.Remaining()-8)...)
	default: // classic/EC DH
		if r.Remaining() != 32+8 {
			return nil, zrtperror.ErrInvalidMessage
		}
		copy(c.HVI[:], r.ReadSlice(32))
	}
	copy(c.MAC[:], r.ReadSlice(8))
	return c, nil
}

func parseDHPart(body []byte) (*DHPart, error) {
	// H1(32) + 4 secret IDs(8 each=32) + MAC(8) = 72 minimum.
	if len(body) < 72 {
		return nil, zrtperror.ErrInvalidMessage
	}
	r := packet.NewReader(body)
	d := &DHPart{}
	copy(d.H1[:], r.ReadSlice(32))
	copy(d.RS1ID[:], r.ReadSlice(8))
	copy(d.RS2ID[:], r.ReadSlice(8))
	copy(d.AuxSecretID[:], r.ReadSlice(8))
	copy(d.PBXSecretID[:], r.ReadSlice(8))
	pvLen := r.Remaining() - 8
	if pvLen < 0 {
		return nil, zrtperror.ErrInvalidMessage
	}
	d.PV = append([]byte(nil), r.ReadSlice(pvLen)...)
	copy(d.MAC[:], r.ReadSlice(8))
	return d, nil
}

func parseConfirm(body []byte) (*Confirm, error) {
	// MAC8(8) + IV(16) + encrypted{H0(32)+flags(4)+expiry(4)}(40) = 64
	// minimum, before an optional signature block.
	if len(body) < 64 {
		return nil, zrtperror.ErrInvalidMessage
	}
	r := packet.NewReader(body)
	c := &Confirm{}
	copy(c.MAC8[:], r.ReadSlice(8))
	copy(c.IV[:], r.ReadSlice(16))
	c.RawCipherText = append([]byte(nil), r.ReadRemaining()...)
	return c, nil
}

// DecryptConfirm fills in a Confirm's plaintext fields from RawCipherText
// after the channel layer has AES-CFB-decrypted it in place; the codec
// itself never touches key material (RFC 6189 §4.A/§4.F boundary).
func DecryptConfirm(c *Confirm, plaintext []byte) error {
	if len(plaintext) < 40 {
		return zrtperror.ErrInvalidMessage
	}
	r := packet.NewReader(plaintext)
	copy(c.H0[:], r.ReadSlice(32))
	flags := r.ReadUint32()
	c.SigLen = uint16(flags >> 16)
	c.E = flags&(1<<3) != 0
	c.V = flags&(1<<2) != 0
	c.A = flags&(1<<1) != 0
	c.D = flags&1 != 0
	c.CacheExpirationInterval = r.ReadUint32()
	if r.Remaining() > 0 {
		c.Signature = append([]byte(nil), r.ReadRemaining()...)
	}
	return nil
}

func parseSASRelay(body []byte) (*SASRelay, error) {
	if len(body) < 64 {
		return nil, zrtperror.ErrInvalidMessage
	}
	r := packet.NewReader(body)
	s := &SASRelay{}
	copy(s.MAC8[:], r.ReadSlice(8))
	copy(s.IV[:], r.ReadSlice(16))
	s.RawCipherText = append([]byte(nil), r.ReadRemaining()...)
	return s, nil
}

// DecryptSASRelay mirrors DecryptConfirm for SASRelay's encrypted body.
func DecryptSASRelay(s *SASRelay, plaintext []byte) error {
	if len(plaintext) < 40 {
		return zrtperror.ErrInvalidMessage
	}
	r := packet.NewReader(plaintext)
	flags := r.ReadUint32()
	s.V = flags&(1<<2) != 0
	s.A = flags&(1<<1) != 0
	s.D = flags&1 != 0
	var w algo.Wire
	copy(w[:], r.ReadSlice(4))
	s.Scheme = w
	copy(s.SASHash[:], r.ReadSlice(32))
	if r.Remaining() > 0 {
		s.Signature = append([]byte(nil), r.ReadRemaining()...)
	}
	return nil
}

func parsePing(body []byte) (*Ping, error) {
	if len(body) != 12 {
		return nil, zrtperror.ErrInvalidMessage
	}
	r := packet.NewReader(body)
	p := &Ping{}
	p.Version = string(r.ReadSlice(4))
	copy(p.EndpointHash[:], r.ReadSlice(8))
	return p, nil
}

func parsePingACK(body []byte) (*PingACK, error) {
	if len(body) != 24 {
		return nil, zrtperror.ErrInvalidMessage
	}
	r := packet.NewReader(body)
	p := &PingACK{}
	p.Version = string(r.ReadSlice(4))
	copy(p.SenderHash[:], r.ReadSlice(8))
	copy(p.SourceHash[:], r.ReadSlice(8))
	p.SourceSSRC = r.ReadUint32()
	return p, nil
}
