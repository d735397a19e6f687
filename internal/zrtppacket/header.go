// Package zrtppacket is the ZRTP packet codec (RFC 6189 §4.C): frame check,
// CRC-32, parse, and build for every ZRTP message type, bit-exact with the
// wire format of RFC 6189 plus this core's post-quantum extensions.
//
// Field access goes through internal/packet's Reader/Writer byte-cursor
// helpers rather than manual offset arithmetic.
package zrtppacket

import "github.com/lanikai/zrtp/internal/packet"

const (
	// HeaderLength is the fixed 12-byte packet header: 4-bit version, 12
	// reserved bits, 16-bit sequence number, 32-bit magic cookie, 32-bit
	// SSRC.
	HeaderLength = 12

	// Version is the 4-bit ZRTP version nibble, "0001".
	Version = 0x1

	// MagicCookie is the 32-bit magic cookie "ZRTP" (RFC 6189 §4.C).
	MagicCookie uint32 = 0x5a525450

	// Preamble is the 2-byte ZRTP message preamble.
	Preamble uint16 = 0x505a

	// CRCLength is the trailing 4-byte CRC-32.
	CRCLength = 4

	// MinPacketLength and MaxPacketLength bound total packet size (spec
	// §4.C check phase).
	MinPacketLength = 28
	MaxPacketLength = 3072

	// MessageTypeLength is the fixed width of the type field.
	MessageTypeLength = 8
	// MessageHeaderLength is preamble(2) + length(2) + type(8).
	MessageHeaderLength = 12
)

// Header is the 12-byte packet header shared by every ZRTP packet.
type Header struct {
	Sequence uint16
	SSRC     uint32
}

func (h *Header) writeTo(w *packet.Writer) {
	// Version nibble in the high 4 bits, 12 reserved bits as zero.
	w.WriteByte(Version << 4)
	w.WriteByte(0)
	w.WriteUint16(h.Sequence)
	w.WriteUint32(MagicCookie)
	w.WriteUint32(h.SSRC)
}

func (h *Header) readFrom(r *packet.Reader) {
	r.Skip(2) // version/reserved already validated by Check
	h.Sequence = r.ReadUint16()
	r.Skip(4) // magic cookie already validated by Check
	h.SSRC = r.ReadUint32()
}
