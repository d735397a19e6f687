package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/cache"
	"github.com/lanikai/zrtp/internal/logging"
	"github.com/lanikai/zrtp/internal/zrtpcrypto"
)

func testConfig(zid byte) Config {
	return Config{
		ZID:           [12]byte{zid},
		ClientID:      [16]byte{'t'},
		Hashes:        []algo.Hash{algo.HashS256},
		Ciphers:       []algo.Cipher{algo.CipherAES1},
		AuthTags:      []algo.AuthTag{algo.AuthTagHS32},
		KeyAgreements: []algo.KeyAgreement{algo.KeyAgreementDH3k},
		SASSchemes:    []algo.SAS{algo.SASBase32},
	}
}

func TestHandshakeReachesSecureDH3k(t *testing.T) {
	backend := zrtpcrypto.NewCirclBackend()
	storeA := cache.NewStore(nil, cache.Callbacks{})
	storeB := cache.NewStore(nil, cache.Callbacks{})
	log := logging.DefaultLogger

	var inboxA, inboxB [][]byte
	a := NewChannel(1, testConfig(0xAA), backend, storeA, Callbacks{
		SendData: func(ssrc uint32, wire []byte) { inboxB = append(inboxB, wire) },
	}, false, nil, log)
	b := NewChannel(2, testConfig(0xBB), backend, storeB, Callbacks{
		SendData: func(ssrc uint32, wire []byte) { inboxA = append(inboxA, wire) },
	}, false, nil, log)

	require.NoError(t, a.Start(0))
	require.NoError(t, b.Start(0))

	for i := 0; i < 64 && (len(inboxA) > 0 || len(inboxB) > 0); i++ {
		for len(inboxB) > 0 {
			wire := inboxB[0]
			inboxB = inboxB[1:]
			require.NoError(t, b.HandleIncoming(0, wire))
		}
		for len(inboxA) > 0 {
			wire := inboxA[0]
			inboxA = inboxA[1:]
			require.NoError(t, a.HandleIncoming(0, wire))
		}
	}

	assert.Equal(t, Secure, a.CurrentState())
	assert.Equal(t, Secure, b.CurrentState())
	assert.Equal(t, a.SAS().String, b.SAS().String)
}

// TestDuplicateSequenceNumberDropped checks that replaying an
// already-processed wire packet (same or lower sequence number) is
// silently ignored rather than re-run through the state machine.
func TestDuplicateSequenceNumberDropped(t *testing.T) {
	backend := zrtpcrypto.NewCirclBackend()
	storeA := cache.NewStore(nil, cache.Callbacks{})
	storeB := cache.NewStore(nil, cache.Callbacks{})
	log := logging.DefaultLogger

	var inboxA, inboxB [][]byte
	a := NewChannel(1, testConfig(0xAA), backend, storeA, Callbacks{
		SendData: func(ssrc uint32, wire []byte) { inboxB = append(inboxB, wire) },
	}, false, nil, log)
	b := NewChannel(2, testConfig(0xBB), backend, storeB, Callbacks{
		SendData: func(ssrc uint32, wire []byte) { inboxA = append(inboxA, wire) },
	}, false, nil, log)

	require.NoError(t, a.Start(0))
	require.NoError(t, b.Start(0))
	require.Len(t, inboxB, 1)
	helloWire := inboxB[0]

	require.NoError(t, b.HandleIncoming(0, helloWire))
	stateAfterFirst := b.CurrentState()
	require.NotEqual(t, Init, stateAfterFirst)

	// Replaying the exact same wire bytes (same sequence number) a second
	// time must not re-run onHello/maybeCommit.
	require.NoError(t, b.HandleIncoming(0, helloWire))
	assert.Equal(t, stateAfterFirst, b.CurrentState())
}
