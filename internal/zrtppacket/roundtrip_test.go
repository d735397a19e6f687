package zrtppacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/zrtperror"
)

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func TestHelloRoundTrip(t *testing.T) {
	in := &Hello{
		Version:       "1.10",
		S:             true,
		P:             true,
		Hashes:        []algo.Hash{algo.HashS256, algo.HashS384},
		Ciphers:       []algo.Cipher{algo.CipherAES1},
		AuthTags:      []algo.AuthTag{algo.AuthTagHS32, algo.AuthTagHS80},
		KeyAgreements: []algo.KeyAgreement{algo.KeyAgreementDH3k, algo.KeyAgreementMult},
		SASSchemes:    []algo.SAS{algo.SASBase32},
	}
	fill(in.ClientID[:], 0x11)
	fill(in.H3[:], 0x22)
	fill(in.ZID[:], 0x33)
	fill(in.MAC[:], 0x44)

	pkt := &Packet{Header: Header{Sequence: 7, SSRC: 0xdeadbeef}, Type: TypeHello, Hello: in}
	wire, err := Build(pkt)
	require.NoError(t, err)

	seq, ssrc, typ, body, err := Check(wire)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), seq)
	assert.Equal(t, uint32(0xdeadbeef), ssrc)
	assert.Equal(t, TypeHello, typ)

	out := &Packet{}
	require.NoError(t, Parse(out, typ, body))
	require.NotNil(t, out.Hello)
	assert.Equal(t, in.Version, out.Hello.Version)
	assert.Equal(t, in.ClientID, out.Hello.ClientID)
	assert.Equal(t, in.H3, out.Hello.H3)
	assert.Equal(t, in.ZID, out.Hello.ZID)
	assert.Equal(t, in.S, out.Hello.S)
	assert.Equal(t, in.M, out.Hello.M)
	assert.Equal(t, in.P, out.Hello.P)
	assert.Equal(t, in.Hashes, out.Hello.Hashes)
	assert.Equal(t, in.Ciphers, out.Hello.Ciphers)
	assert.Equal(t, in.AuthTags, out.Hello.AuthTags)
	assert.Equal(t, in.KeyAgreements, out.Hello.KeyAgreements)
	assert.Equal(t, in.SASSchemes, out.Hello.SASSchemes)
	assert.Equal(t, in.MAC, out.Hello.MAC)
}

func TestCommitRoundTripDH(t *testing.T) {
	in := &Commit{
		Hash: algo.HashS256, Cipher: algo.CipherAES1,
		AuthTag: algo.AuthTagHS32, KeyAgreement: algo.KeyAgreementDH3k,
		SAS: algo.SASBase32,
	}
	fill(in.H2[:], 0x55)
	fill(in.ZID[:], 0x66)
	fill(in.HVI[:], 0x77)
	fill(in.MAC[:], 0x88)

	pkt := &Packet{Header: Header{Sequence: 1, SSRC: 1}, Type: TypeCommit, Commit: in}
	wire, err := Build(pkt)
	require.NoError(t, err)

	_, _, typ, body, err := Check(wire)
	require.NoError(t, err)
	out := &Packet{}
	require.NoError(t, Parse(out, typ, body))
	require.NotNil(t, out.Commit)
	assert.Equal(t, in.HVI, out.Commit.HVI)
	assert.Equal(t, in.KeyAgreement, out.Commit.KeyAgreement)
	assert.Empty(t, out.Commit.PV)
}

func TestCommitRoundTripKEM(t *testing.T) {
	in := &Commit{
		Hash: algo.HashS512, Cipher: algo.CipherAES3,
		AuthTag: algo.AuthTagHS80, KeyAgreement: algo.KeyAgreementKyber768,
		SAS: algo.SASBase256,
		PV:  make([]byte, 1184), // kyber768 public key size
	}
	fill(in.H2[:], 0x01)
	fill(in.ZID[:], 0x02)
	fill(in.HVI[:], 0x03)
	fill(in.PV, 0xaa)
	fill(in.MAC[:], 0x04)

	pkt := &Packet{Header: Header{Sequence: 2, SSRC: 2}, Type: TypeCommit, Commit: in}
	wire, err := Build(pkt)
	require.NoError(t, err)

	_, _, typ, body, err := Check(wire)
	require.NoError(t, err)
	out := &Packet{}
	require.NoError(t, Parse(out, typ, body))
	require.NotNil(t, out.Commit)
	assert.Equal(t, in.PV, out.Commit.PV)
	assert.Equal(t, in.HVI, out.Commit.HVI)
}

func TestDHPartRoundTrip(t *testing.T) {
	in := &DHPart{PV: make([]byte, 384)}
	fill(in.H1[:], 0x10)
	fill(in.RS1ID[:], 0x11)
	fill(in.RS2ID[:], 0x12)
	fill(in.AuxSecretID[:], 0x13)
	fill(in.PBXSecretID[:], 0x14)
	fill(in.PV, 0x15)
	fill(in.MAC[:], 0x16)

	pkt := &Packet{Header: Header{Sequence: 3, SSRC: 3}, Type: TypeDHPart1, DHPart1: in}
	wire, err := Build(pkt)
	require.NoError(t, err)

	_, _, typ, body, err := Check(wire)
	require.NoError(t, err)
	out := &Packet{}
	require.NoError(t, Parse(out, typ, body))
	require.NotNil(t, out.DHPart1)
	assert.Equal(t, in.H1, out.DHPart1.H1)
	assert.Equal(t, in.PV, out.DHPart1.PV)
	assert.Equal(t, in.MAC, out.DHPart1.MAC)
}

func TestConfirmRoundTrip(t *testing.T) {
	plain := &Confirm{E: true, V: true, CacheExpirationInterval: 3600}
	fill(plain.H0[:], 0x20)
	cipherText := EncodeConfirmPlaintext(plain)

	in := &Confirm{RawCipherText: cipherText}
	fill(in.MAC8[:], 0x21)
	fill(in.IV[:], 0x22)

	pkt := &Packet{Header: Header{Sequence: 4, SSRC: 4}, Type: TypeConfirm1, Confirm1: in}
	wire, err := Build(pkt)
	require.NoError(t, err)

	_, _, typ, body, err := Check(wire)
	require.NoError(t, err)
	out := &Packet{}
	require.NoError(t, Parse(out, typ, body))
	require.NotNil(t, out.Confirm1)
	assert.Equal(t, in.MAC8, out.Confirm1.MAC8)
	assert.Equal(t, in.IV, out.Confirm1.IV)
	assert.Equal(t, cipherText, out.Confirm1.RawCipherText)

	decoded := &Confirm{}
	require.NoError(t, DecryptConfirm(decoded, out.Confirm1.RawCipherText))
	assert.Equal(t, plain.H0, decoded.H0)
	assert.True(t, decoded.E)
	assert.True(t, decoded.V)
	assert.False(t, decoded.A)
	assert.Equal(t, plain.CacheExpirationInterval, decoded.CacheExpirationInterval)
}

func TestFixedLengthACKsAndPing(t *testing.T) {
	pkt := &Packet{Header: Header{Sequence: 5, SSRC: 5}, Type: TypeHelloACK, HelloACK: &struct{}{}}
	wire, err := Build(pkt)
	require.NoError(t, err)
	assert.Equal(t, MinPacketLength, len(wire))

	_, _, typ, body, err := Check(wire)
	require.NoError(t, err)
	assert.Equal(t, TypeHelloACK, typ)
	assert.Empty(t, body)

	ping := &Ping{Version: "1.10"}
	fill(ping.EndpointHash[:], 0x99)
	pingPkt := &Packet{Header: Header{Sequence: 6, SSRC: 6}, Type: TypePing, Ping: ping}
	wire, err = Build(pingPkt)
	require.NoError(t, err)
	_, _, typ, body, err = Check(wire)
	require.NoError(t, err)
	out := &Packet{}
	require.NoError(t, Parse(out, typ, body))
	assert.Equal(t, ping.EndpointHash, out.Ping.EndpointHash)
}

func TestCheckRejectsTamperedCRC(t *testing.T) {
	pkt := &Packet{Header: Header{Sequence: 9, SSRC: 9}, Type: TypeHelloACK, HelloACK: &struct{}{}}
	wire, err := Build(pkt)
	require.NoError(t, err)
	wire[len(wire)-1] ^= 0xff

	_, _, _, _, err = Check(wire)
	assert.ErrorIs(t, err, zrtperror.ErrInvalidCRC)
}
