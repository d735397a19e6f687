package zrtppacket

import (
	"encoding/binary"

	"github.com/lanikai/zrtp/internal/zrtperror"
)

// Check is the frame-validation gate every packet passes through before
// Parse ever looks at message-specific fields (RFC 6189 §4.C "packet_check").
// It validates overall length bounds, the version nibble, the message
// preamble and declared length, that the type tag is one this core
// understands, and the trailing CRC-32 — in that order, so a short or
// corrupt packet is rejected before any field read can run past the end
// of the buffer.
//
// On success it returns the message type tag and the message body (the
// bytes strictly between the 12-byte message header and the CRC
// trailer); seq and ssrc are the packet header's fields.
func Check(data []byte) (seq uint16, ssrc uint32, typ MessageType, body []byte, err error) {
	if len(data) < MinPacketLength || len(data) > MaxPacketLength {
		return 0, 0, MessageType{}, nil, zrtperror.ErrInvalidLength
	}
	if len(data)%4 != 0 {
		return 0, 0, MessageType{}, nil, zrtperror.ErrInvalidLength
	}

	if data[0]>>4 != Version {
		return 0, 0, MessageType{}, nil, zrtperror.ErrInvalidHeader
	}
	magic := binary.BigEndian.Uint32(data[4:8])
	if magic != MagicCookie {
		return 0, 0, MessageType{}, nil, zrtperror.ErrInvalidHeader
	}
	seq = binary.BigEndian.Uint16(data[2:4])
	ssrc = binary.BigEndian.Uint32(data[8:12])

	preamble := binary.BigEndian.Uint16(data[12:14])
	if preamble != Preamble {
		return 0, 0, MessageType{}, nil, zrtperror.ErrInvalidHeader
	}
	lengthWords := binary.BigEndian.Uint16(data[14:16])
	messageLen := int(lengthWords) * 4
	wantTotal := HeaderLength + messageLen + CRCLength
	if wantTotal != len(data) || messageLen < MessageHeaderLength {
		return 0, 0, MessageType{}, nil, zrtperror.ErrInvalidLength
	}

	copy(typ[:], data[16:24])
	if !knownTypes[typ] {
		return 0, 0, MessageType{}, nil, zrtperror.ErrUnknownMessageType
	}

	gotCRC := binary.BigEndian.Uint32(data[len(data)-CRCLength:])
	wantCRC := crcOf(data[:len(data)-CRCLength])
	if gotCRC != wantCRC {
		return 0, 0, MessageType{}, nil, zrtperror.ErrInvalidCRC
	}

	body = data[HeaderLength+MessageHeaderLength : len(data)-CRCLength]
	return seq, ssrc, typ, body, nil
}
