package zrtppacket

import (
	"encoding/binary"

	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/packet"
	"github.com/lanikai/zrtp/internal/zrtperror"
)

// Build assembles the on-the-wire bytes for pkt: packet header, message
// header (preamble/length/type), the message-specific body, and the
// trailing CRC-32. Exactly one of pkt's message-variant fields must be
// populated, matching pkt.Type.
func Build(pkt *Packet) ([]byte, error) {
	body, err := buildBody(pkt)
	if err != nil {
		return nil, err
	}

	messageLen := MessageHeaderLength + len(body)
	if messageLen%4 != 0 {
		return nil, zrtperror.ErrInvalidMessage
	}
	total := HeaderLength + messageLen + CRCLength
	w := packet.NewWriterSize(total)

	pkt.Header.writeTo(w)
	w.WriteUint16(Preamble)
	w.WriteUint16(uint16(messageLen / 4))
	w.WriteSlice(pkt.Type[:])
	w.WriteSlice(body)

	buf := w.Bytes()
	crc := crcOf(buf)
	out := make([]byte, total)
	copy(out, buf)
	binary.BigEndian.PutUint32(out[total-CRCLength:], crc)

	pkt.PacketString = out
	return out, nil
}

func buildBody(pkt *Packet) ([]byte, error) {
	switch {
	case pkt.Hello != nil:
		return buildHello(pkt.Hello)
	case pkt.HelloACK != nil, pkt.Conf2ACK != nil, pkt.ClearACK != nil,
		pkt.ErrorACK != nil, pkt.RelayACK != nil:
		return nil, nil
	case pkt.Commit != nil:
		return buildCommit(pkt.Commit)
	case pkt.DHPart1 != nil:
		return buildDHPart(pkt.DHPart1)
	case pkt.DHPart2 != nil:
		return buildDHPart(pkt.DHPart2)
	case pkt.Confirm1 != nil:
		return buildConfirm(pkt.Confirm1)
	case pkt.Confirm2 != nil:
		return buildConfirm(pkt.Confirm2)
	case pkt.Error != nil:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], pkt.Error.Code)
		return b[:], nil
	case pkt.GoClear != nil:
		return append([]byte(nil), pkt.GoClear.ClearMAC[:]...), nil
	case pkt.SASRelay != nil:
		return buildSASRelay(pkt.SASRelay)
	case pkt.Ping != nil:
		return buildPing(pkt.Ping)
	case pkt.PingACK != nil:
		return buildPingACK(pkt.PingACK)
	}
	return nil, zrtperror.ErrInvalidMessage
}

func buildHello(h *Hello) ([]byte, error) {
	size := 4 + 16 + 32 + 12 + 4 +
		4*(len(h.Hashes)+len(h.Ciphers)+len(h.AuthTags)+len(h.KeyAgreements)+len(h.SASSchemes)) + 8
	w := packet.NewWriterSize(size)
	w.WriteSlice(pad(h.Version, 4))
	w.WriteSlice(h.ClientID[:])
	w.WriteSlice(h.H3[:])
	w.WriteSlice(h.ZID[:])
	w.WriteUint32(packHelloFlags(len(h.Hashes), len(h.Ciphers), len(h.AuthTags),
		len(h.KeyAgreements), len(h.SASSchemes), h.S, h.M, h.P))
	for _, v := range h.Hashes {
		wc, ok := algo.HashToWire(v)
		if !ok {
			return nil, zrtperror.ErrInvalidHashChoice
		}
		w.WriteSlice(wc[:])
	}
	for _, v := range h.Ciphers {
		wc, ok := algo.CipherToWire(v)
		if !ok {
			return nil, zrtperror.ErrInvalidCipherChoice
		}
		w.WriteSlice(wc[:])
	}
	for _, v := range h.AuthTags {
		wc, ok := algo.AuthTagToWire(v)
		if !ok {
			return nil, zrtperror.ErrInvalidAuthTagChoice
		}
		w.WriteSlice(wc[:])
	}
	for _, v := range h.KeyAgreements {
		wc, ok := algo.KeyAgreementToWire(v)
		if !ok {
			return nil, zrtperror.ErrInvalidCipherChoice
		}
		w.WriteSlice(wc[:])
	}
	for _, v := range h.SASSchemes {
		wc, ok := algo.SASToWire(v)
		if !ok {
			return nil, zrtperror.ErrInvalidSASChoice
		}
		w.WriteSlice(wc[:])
	}
	w.WriteSlice(h.MAC[:])
	return w.Bytes(), nil
}

func pad(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	for i := len(s); i < n; i++ {
		b[i] = ' '
	}
	return b
}

func buildCommit(c *Commit) ([]byte, error) {
	var variable []byte
	switch {
	case c.KeyAgreement == algo.KeyAgreementMult:
		variable = c.Nonce[:]
	case c.KeyAgreement == algo.KeyAgreementPrsh:
		variable = append(append([]byte(nil), c.Nonce[:]...), c.KeyID[:]...)
	case c.KeyAgreement.IsKEM():
		variable = append(append([]byte(nil), c.HVI[:]...), c.PV...)
	default:
		variable = c.HVI[:]
	}

	size := 32 + 12 + 4*5 + len(variable) + 8
	w := packet.NewWriterSize(size)
	w.WriteSlice(c.H2[:])
	w.WriteSlice(c.ZID[:])

	hw, ok := algo.HashToWire(c.Hash)
	if !ok {
		return nil, zrtperror.ErrInvalidHashChoice
	}
	w.WriteSlice(hw[:])
	cw, ok := algo.CipherToWire(c.Cipher)
	if !ok {
		return nil, zrtperror.ErrInvalidCipherChoice
	}
	w.WriteSlice(cw[:])
	aw, ok := algo.AuthTagToWire(c.AuthTag)
	if !ok {
		return nil, zrtperror.ErrInvalidAuthTagChoice
	}
	w.WriteSlice(aw[:])
	kw, ok := algo.KeyAgreementToWire(c.KeyAgreement)
	if !ok {
		return nil, zrtperror.ErrInvalidCipherChoice
	}
	w.WriteSlice(kw[:])
	sw, ok := algo.SASToWire(c.SAS)
	if !ok {
		return nil, zrtperror.ErrInvalidSASChoice
	}
	w.WriteSlice(sw[:])

	w.WriteSlice(variable)
	w.WriteSlice(c.MAC[:])
	return w.Bytes(), nil
}

func buildDHPart(d *DHPart) ([]byte, error) {
	size := 32 + 8*4 + len(d.PV) + 8
	w := packet.NewWriterSize(size)
	w.WriteSlice(d.H1[:])
	w.WriteSlice(d.RS1ID[:])
	w.WriteSlice(d.RS2ID[:])
	w.WriteSlice(d.AuxSecretID[:])
	w.WriteSlice(d.PBXSecretID[:])
	w.WriteSlice(d.PV)
	w.WriteSlice(d.MAC[:])
	return w.Bytes(), nil
}

// buildConfirm assembles the Confirm body from an already-authenticated,
// already-encrypted Confirm (c.MAC8, c.IV, and c.RawCipherText populated by
// the channel layer, which alone holds the mackey/zrtpkey material).
func buildConfirm(c *Confirm) ([]byte, error) {
	size := 8 + 16 + len(c.RawCipherText)
	w := packet.NewWriterSize(size)
	w.WriteSlice(c.MAC8[:])
	w.WriteSlice(c.IV[:])
	w.WriteSlice(c.RawCipherText)
	return w.Bytes(), nil
}

// EncodeConfirmPlaintext renders a Confirm's plaintext fields into the
// byte layout the channel layer then AES-CFB-encrypts (the mirror of
// DecryptConfirm). sigLen is computed from len(signature)/4 automatically.
func EncodeConfirmPlaintext(c *Confirm) []byte {
	sigLen := len(c.Signature) / 4
	w := packet.NewWriterSize(40 + len(c.Signature))
	w.WriteSlice(c.H0[:])
	var flags uint32
	flags = uint32(sigLen) << 16
	if c.E {
		flags |= 1 << 3
	}
	if c.V {
		flags |= 1 << 2
	}
	if c.A {
		flags |= 1 << 1
	}
	if c.D {
		flags |= 1
	}
	w.WriteUint32(flags)
	w.WriteUint32(c.CacheExpirationInterval)
	if len(c.Signature) > 0 {
		w.WriteSlice(c.Signature)
	}
	return w.Bytes()
}

func buildSASRelay(s *SASRelay) ([]byte, error) {
	size := 8 + 16 + len(s.RawCipherText)
	w := packet.NewWriterSize(size)
	w.WriteSlice(s.MAC8[:])
	w.WriteSlice(s.IV[:])
	w.WriteSlice(s.RawCipherText)
	return w.Bytes(), nil
}

// EncodeSASRelayPlaintext mirrors EncodeConfirmPlaintext for SASRelay.
func EncodeSASRelayPlaintext(s *SASRelay) []byte {
	w := packet.NewWriterSize(40 + len(s.Signature))
	var flags uint32
	if s.V {
		flags |= 1 << 2
	}
	if s.A {
		flags |= 1 << 1
	}
	if s.D {
		flags |= 1
	}
	w.WriteUint32(flags)
	w.WriteSlice(s.Scheme[:])
	w.WriteSlice(s.SASHash[:])
	if len(s.Signature) > 0 {
		w.WriteSlice(s.Signature)
	}
	return w.Bytes()
}

func buildPing(p *Ping) ([]byte, error) {
	w := packet.NewWriterSize(12)
	w.WriteSlice(pad(p.Version, 4))
	w.WriteSlice(p.EndpointHash[:])
	return w.Bytes(), nil
}

func buildPingACK(p *PingACK) ([]byte, error) {
	w := packet.NewWriterSize(24)
	w.WriteSlice(pad(p.Version, 4))
	w.WriteSlice(p.SenderHash[:])
	w.WriteSlice(p.SourceHash[:])
	w.WriteUint32(p.SourceSSRC)
	return w.Bytes(), nil
}

// MessageBytes returns the span of a built or received packet's wire
// bytes that total_hash and the retained MAC chain hash over: the message
// header (preamble/length/type) plus body, excluding the 12-byte packet
// header and the 4-byte CRC trailer (RFC 6189 §4.E: "bytes are the exact
// stored packet strings minus the 12-byte packet header").
func MessageBytes(wire []byte) []byte {
	return wire[HeaderLength : len(wire)-CRCLength]
}

// Reframe wraps msg (a message header+body span, as returned by
// MessageBytes) back into a full wire packet under a fresh sequence
// number and SSRC, recomputing the CRC. Used by the channel layer to
// resend a previously-built message (e.g. the initiator's own DHPart2,
// built once at Commit time for hvi binding and actually transmitted
// later) without rebuilding its body or disturbing any MAC within it.
func Reframe(msg []byte, typ MessageType, seq uint16, ssrc uint32) []byte {
	total := HeaderLength + len(msg) + CRCLength
	out := make([]byte, total)
	w := packet.NewWriterSize(HeaderLength)
	hdr := Header{Sequence: seq, SSRC: ssrc}
	hdr.writeTo(w)
	copy(out[:HeaderLength], w.Bytes())
	copy(out[HeaderLength:HeaderLength+len(msg)], msg)
	crc := crcOf(out[:total-CRCLength])
	binary.BigEndian.PutUint32(out[total-CRCLength:], crc)
	return out
}

// Retransmit rewrites a previously built packet's sequence number and CRC
// in place, for the channel layer's retry timers (RFC 6189 §4.F); it leaves
// the message body, including any MAC computed over it, untouched, which
// matches ZRTP's requirement that the MAC never covers the packet header.
func Retransmit(wire []byte, seq uint16) {
	binary.BigEndian.PutUint16(wire[2:4], seq)
	crc := crcOf(wire[:len(wire)-CRCLength])
	binary.BigEndian.PutUint32(wire[len(wire)-CRCLength:], crc)
}
