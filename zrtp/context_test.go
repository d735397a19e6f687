package zrtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/channel"
	"github.com/lanikai/zrtp/internal/kdf"
)

// pair wires two Contexts together in-process: each side's SendData
// callback appends to the other side's inbox, and pump() drains both
// inboxes until neither produces new output, simulating a lossless wire
// with no network between them.
type pair struct {
	a, b     *Context
	chA, chB *channel.Channel
	inboxA   [][]byte
	inboxB   [][]byte
}

func newPair(t *testing.T, cfgA, cfgB Config) *pair {
	t.Helper()
	p := &pair{}
	p.a = NewContext("a", cfgA, Callbacks{
		SendData: func(_ any, ssrc uint32, wire []byte) int {
			p.inboxB = append(p.inboxB, wire)
			return len(wire)
		},
	})
	p.b = NewContext("b", cfgB, Callbacks{
		SendData: func(_ any, ssrc uint32, wire []byte) int {
			p.inboxA = append(p.inboxA, wire)
			return len(wire)
		},
	})
	return p
}

// pump feeds every queued wire packet to the opposite side until both
// inboxes drain, bounded so a protocol bug can't hang the test suite.
func (p *pair) pump(t *testing.T) {
	t.Helper()
	for i := 0; i < 64 && (len(p.inboxA) > 0 || len(p.inboxB) > 0); i++ {
		for len(p.inboxB) > 0 {
			wire := p.inboxB[0]
			p.inboxB = p.inboxB[1:]
			require.NoError(t, p.b.ProcessMessage(p.chB_ssrc(), 0, wire))
		}
		for len(p.inboxA) > 0 {
			wire := p.inboxA[0]
			p.inboxA = p.inboxA[1:]
			require.NoError(t, p.a.ProcessMessage(p.chA_ssrc(), 0, wire))
		}
	}
}

func (p *pair) chA_ssrc() uint32 { return 0x1001 }
func (p *pair) chB_ssrc() uint32 { return 0x2002 }

func baseConfig() Config {
	return Config{
		ClientID:      [16]byte{'t', 'e', 's', 't'},
		Hashes:        []algo.Hash{algo.HashS256},
		Ciphers:       []algo.Cipher{algo.CipherAES1},
		AuthTags:      []algo.AuthTag{algo.AuthTagHS32},
		KeyAgreements: []algo.KeyAgreement{algo.KeyAgreementDH3k},
		SASSchemes:    []algo.SAS{algo.SASBase32},
	}
}

// TestFullHandshakeReachesSecure drives two Contexts through Hello,
// Commit, DHPart1/2, and Confirm1/2/Conf2ACK and checks both sides land
// on Secure with matching SAS values (RFC 6189 §8's seed scenario 2).
func TestFullHandshakeReachesSecure(t *testing.T) {
	p := newPair(t, baseConfig(), baseConfig())

	var err error
	p.chA, err = p.a.AddChannel(p.chA_ssrc())
	require.NoError(t, err)
	p.chB, err = p.b.AddChannel(p.chB_ssrc())
	require.NoError(t, err)

	require.NoError(t, p.a.StartChannelEngine(p.chA_ssrc(), 0))
	require.NoError(t, p.b.StartChannelEngine(p.chB_ssrc(), 0))
	p.pump(t)

	assert.Equal(t, channel.Secure, p.chA.CurrentState())
	assert.Equal(t, channel.Secure, p.chB.CurrentState())
	assert.NotEqual(t, channel.RoleUnknown, p.chA.CurrentRole())
	assert.NotEqual(t, p.chA.CurrentRole(), p.chB.CurrentRole())
	assert.Equal(t, p.chA.SAS().String, p.chB.SAS().String)
	assert.NotEmpty(t, p.chA.ZRTPSess())
	assert.Equal(t, p.chA.ZRTPSess(), p.chB.ZRTPSess())
}

// TestMultistreamChannelBindsToChannelZero establishes channel 0, then
// adds a second channel on each side and checks it reaches Secure using
// Multistream, with the same hash/cipher/auth-tag/SAS as channel 0 and
// no fresh DH exchange.
func TestMultistreamChannelBindsToChannelZero(t *testing.T) {
	cfg := baseConfig()
	cfg.KeyAgreements = []algo.KeyAgreement{algo.KeyAgreementDH3k, algo.KeyAgreementMult}
	p := newPair(t, cfg, cfg)

	var err error
	p.chA, err = p.a.AddChannel(p.chA_ssrc())
	require.NoError(t, err)
	p.chB, err = p.b.AddChannel(p.chB_ssrc())
	require.NoError(t, err)
	require.NoError(t, p.a.StartChannelEngine(p.chA_ssrc(), 0))
	require.NoError(t, p.b.StartChannelEngine(p.chB_ssrc(), 0))
	p.pump(t)
	require.Equal(t, channel.Secure, p.chA.CurrentState())
	require.Equal(t, channel.Secure, p.chB.CurrentState())

	const ssrcA2, ssrcB2 = 0x1002, 0x2003
	msChA, err := p.a.AddChannel(ssrcA2)
	require.NoError(t, err)
	msChB, err := p.b.AddChannel(ssrcB2)
	require.NoError(t, err)

	q0 := p.chA.NegotiatedQuintuple()

	require.NoError(t, p.a.StartChannelEngine(ssrcA2, 0))
	require.NoError(t, p.b.StartChannelEngine(ssrcB2, 0))

	for i := 0; i < 64 && (len(p.inboxA) > 0 || len(p.inboxB) > 0); i++ {
		for len(p.inboxB) > 0 {
			wire := p.inboxB[0]
			p.inboxB = p.inboxB[1:]
			require.NoError(t, p.b.ProcessMessage(ssrcB2, 0, wire))
		}
		for len(p.inboxA) > 0 {
			wire := p.inboxA[0]
			p.inboxA = p.inboxA[1:]
			require.NoError(t, p.a.ProcessMessage(ssrcA2, 0, wire))
		}
	}

	assert.Equal(t, channel.Secure, msChA.CurrentState())
	assert.Equal(t, channel.Secure, msChB.CurrentState())
	q1 := msChA.NegotiatedQuintuple()
	assert.Equal(t, q0.Hash, q1.Hash)
	assert.Equal(t, q0.Cipher, q1.Cipher)
	assert.Equal(t, q0.AuthTag, q1.AuthTag)
	assert.Equal(t, q0.SAS, q1.SAS)
	assert.Equal(t, algo.KeyAgreementMult, q1.KeyAgreement)
	assert.Equal(t, msChA.SAS().String, msChB.SAS().String)
}

// TestAddChannelBeforeChannelZeroSecureFails checks the control surface
// refuses a second channel until channel 0 has actually reached Secure
// (RFC 6189 §4.G).
func TestAddChannelBeforeChannelZeroSecureFails(t *testing.T) {
	cfg := baseConfig()
	ctx := NewContext("host", cfg, Callbacks{
		SendData: func(any, uint32, []byte) int { return 0 },
	})
	_, err := ctx.AddChannel(1)
	require.NoError(t, err)
	_, err = ctx.AddChannel(2)
	assert.Error(t, err)
}

// TestSASReadyVerifiedFlagReadFromCache checks that a SAS confirmed via
// SetSASVerified on one session is reported back through SASReady's
// verified flag the next time the same peer ZID reaches Secure, with the
// cache round-tripped purely through the host's load/store callbacks
// (RFC 6189 §6: "verified flag read from the cache").
func TestSASReadyVerifiedFlagReadFromCache(t *testing.T) {
	cfgB := baseConfig()
	cfgB.ZID = [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	var blobA []byte
	runSession := func() bool {
		var inboxA, inboxB [][]byte
		var verified bool
		ctxA := NewContext("a", baseConfig(), Callbacks{
			SendData: func(_ any, ssrc uint32, wire []byte) int {
				inboxB = append(inboxB, wire)
				return len(wire)
			},
			LoadCache:  func(any) ([]byte, bool) { return blobA, blobA != nil },
			StoreCache: func(_ any, blob []byte) { blobA = blob },
			SASReady: func(_ any, ssrc uint32, sas kdf.SAS, decoys []kdf.SAS, v bool) {
				verified = v
			},
		})
		ctxB := NewContext("b", cfgB, Callbacks{
			SendData: func(_ any, ssrc uint32, wire []byte) int {
				inboxA = append(inboxA, wire)
				return len(wire)
			},
		})

		_, err := ctxA.AddChannel(1)
		require.NoError(t, err)
		_, err = ctxB.AddChannel(2)
		require.NoError(t, err)
		require.NoError(t, ctxA.StartChannelEngine(1, 0))
		require.NoError(t, ctxB.StartChannelEngine(2, 0))

		for i := 0; i < 64 && (len(inboxA) > 0 || len(inboxB) > 0); i++ {
			for len(inboxB) > 0 {
				wire := inboxB[0]
				inboxB = inboxB[1:]
				require.NoError(t, ctxB.ProcessMessage(2, 0, wire))
			}
			for len(inboxA) > 0 {
				wire := inboxA[0]
				inboxA = inboxA[1:]
				require.NoError(t, ctxA.ProcessMessage(1, 0, wire))
			}
		}
		require.NoError(t, ctxA.SetSASVerified(true))
		return verified
	}

	assert.False(t, runSession(), "first session with this peer has no prior verification on record")
	assert.True(t, runSession(), "second session should see the verified flag persisted via the cache blob")
}
