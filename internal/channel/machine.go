package channel

import (
	"bytes"
	"fmt"

	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/cache"
	"github.com/lanikai/zrtp/internal/kdf"
	"github.com/lanikai/zrtp/internal/logging"
	"github.com/lanikai/zrtp/internal/negotiate"
	"github.com/lanikai/zrtp/internal/zrtpcrypto"
	"github.com/lanikai/zrtp/internal/zrtperror"
	"github.com/lanikai/zrtp/internal/zrtppacket"
)

// Severity classifies a Status callback invocation.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// Callbacks is the subset of the host embedding interface (RFC 6189 §6) that a
// Channel drives directly. Context owns the cache load/store callbacks;
// a Channel only hands off outbound bytes and announces user-visible
// events.
type Callbacks struct {
	SendData               func(ssrc uint32, wire []byte)
	SRTPSecretsAvailable   func(ssrc uint32, secrets kdf.SRTPSecrets, weAreInitiator bool)
	SASReady               func(ssrc uint32, sas kdf.SAS, decoys []kdf.SAS)
	Status                 func(ssrc uint32, severity Severity, code zrtperror.Code, text string)
	ZRTPSessionEstablished func(zrtpSess []byte) // channel 0 only
}

// Config bundles one channel's locally enabled algorithm preferences and
// identity fields (RFC 6189 §3). A multistream channel N>0 gets the same
// Config as channel 0; the Context then binds it with BindMultistream, which
// makes it negotiate Multistream regardless of KeyAgreements (RFC 6189 §4.G).
type Config struct {
	ZID      [12]byte
	ClientID [16]byte
	Version  string
	Passive  bool // P flag: never initiates Commit
	PBX      bool // M flag: never contends

	Hashes        []algo.Hash
	Ciphers       []algo.Cipher
	AuthTags      []algo.AuthTag
	KeyAgreements []algo.KeyAgreement
	SASSchemes    []algo.SAS

	// AllowGoClear gates whether this channel honors an inbound GoClear at
	// all: wire-level-only GoClear support, no SASRelay-style MiTM
	// business logic, just the ClearMAC check. An inbound GoClear is
	// rejected with GoClearNotAllowed whenever this is false, which is
	// the default.
	AllowGoClear bool
}

func skipsDHExchange(ka algo.KeyAgreement) bool {
	return ka == algo.KeyAgreementMult || ka == algo.KeyAgreementPrsh
}

// Channel is one per-SSRC handshake automaton (RFC 6189 §4.F). A Channel
// never blocks and never spawns a goroutine; the host drives it by
// feeding incoming wire bytes to HandleIncoming and by calling Iterate
// on its own clock tick.
type Channel struct {
	ssrc        uint32
	cfg         Config
	backend     zrtpcrypto.Backend
	store       *cache.Store
	cb          Callbacks
	multistream bool
	zrtpSess    []byte // channel 0: produced here; channel N>0: supplied by Context

	state State
	role  Role

	selfSeq      uint16
	peerSSRC     uint32
	peerSeqKnown bool
	peerSeq      uint16

	chain *hashChain

	peerZID      [12]byte
	peerH3       [32]byte
	peerClientID [16]byte
	peerPassive  bool
	peerPBX      bool

	selfHelloMsg  []byte
	peerHelloMsg  []byte
	selfCommitMsg []byte
	peerCommitMsg []byte
	selfDHPartMsg []byte
	peerDHPartMsg []byte
	peerCommitH2  [32]byte
	peerDHPartH1  [32]byte

	q negotiate.Quintuple

	// forced, when non-nil, is channel 0's negotiated hash/cipher/authtag/sas
	// (RFC 6189 §4.G: a multistream channel N>0 must use the identical
	// quintuple as channel 0, substituting only KeyAgreement). Set by the
	// Context when it binds a multistream channel; left nil for channel 0.
	forced *negotiate.Quintuple

	dhHandle zrtpcrypto.DH
	kem      zrtpcrypto.KEM // initiator's KEM, kept from GenerateKeyPair to Decapsulate
	selfPV   []byte
	dhResult []byte

	secrets *cache.Secrets

	s0         []byte
	kdfContext []byte
	keys       kdf.ChannelKeys
	srtp       kdf.SRTPSecrets
	sas        kdf.SAS
	decoys     []kdf.SAS

	timer *retryTimer
	log   *logging.Logger

	lastWire []byte
	lastType zrtppacket.MessageType
}

// NewChannel constructs a channel in Init, ready for Start. parentLog is
// tagged per-channel (`"zrtp:<ssrc>"`, by WithTag).
func NewChannel(ssrc uint32, cfg Config, backend zrtpcrypto.Backend, store *cache.Store, cb Callbacks, multistream bool, zrtpSess []byte, parentLog *logging.Logger) *Channel {
	return &Channel{
		ssrc:        ssrc,
		cfg:         cfg,
		backend:     backend,
		store:       store,
		cb:          cb,
		multistream: multistream,
		zrtpSess:    zrtpSess,
		state:       Init,
		timer:       newRetryTimer(NT1),
		log:         parentLog.WithTag(fmt.Sprintf("zrtp:%08x", ssrc)),
	}
}

// BindMultistream locks this channel's non-KeyAgreement quintuple fields to
// q (channel 0's negotiated quintuple), per RFC 6189 §4.G. Must be called
// before Start.
func (c *Channel) BindMultistream(q negotiate.Quintuple) {
	c.forced = &q
}

func (c *Channel) CurrentState() State { return c.state }
func (c *Channel) CurrentRole() Role   { return c.role }
func (c *Channel) SAS() kdf.SAS        { return c.sas }
func (c *Channel) ZRTPSess() []byte    { return c.zrtpSess }
func (c *Channel) PeerZID() [12]byte   { return c.peerZID }

// NegotiatedQuintuple returns the hash/cipher/auth-tag/key-agreement/SAS
// this channel settled on with its peer. Used by the Context to bind a
// later multistream channel to channel 0's choice (RFC 6189 §4.G).
func (c *Channel) NegotiatedQuintuple() negotiate.Quintuple { return c.q }

func (c *Channel) status(sev Severity, code zrtperror.Code, text string) {
	if c.cb.Status != nil {
		c.cb.Status(c.ssrc, sev, code, text)
	}
}

func (c *Channel) send(wire []byte, typ zrtppacket.MessageType) {
	c.lastWire = wire
	c.lastType = typ
	if c.cb.SendData != nil {
		c.cb.SendData(c.ssrc, wire)
	}
}

func (c *Channel) nextSeq() uint16 {
	c.selfSeq++
	return c.selfSeq
}

// fail transitions to the absorbing Error state, reports it to the host,
// and sends a ZRTP Error message carrying code, per RFC 6189 §7's policy that
// hash-chain/MAC/confirm failures promote to a wire Error.
func (c *Channel) fail(code zrtperror.Code, text string) error {
	c.state = Error
	c.timer.disarm()
	c.log.Error("%s: %s", code, text)
	c.status(SeverityError, code, text)
	pkt := &zrtppacket.Packet{
		Header: zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:   zrtppacket.TypeError,
		Error:  &zrtppacket.Error{Code: uint32(code)},
	}
	if wire, err := zrtppacket.Build(pkt); err == nil {
		c.send(wire, zrtppacket.TypeError)
	}
	return &zrtperror.WireError{Code: code}
}

// Start begins the handshake by sending Hello (RFC 6189 §4.F).
func (c *Channel) Start(nowMS int64) error {
	chain, err := newHashChain(c.backend)
	if err != nil {
		return err
	}
	c.chain = chain
	c.state = SendingHello
	return c.sendHello(nowMS)
}

func (c *Channel) sendHello(nowMS int64) error {
	h := &zrtppacket.Hello{
		Version:       c.cfg.Version,
		ClientID:      c.cfg.ClientID,
		H3:            c.chain.H3,
		ZID:           c.cfg.ZID,
		P:             c.cfg.Passive,
		M:             c.cfg.PBX,
		Hashes:        algo.WithMandatoryHashes(c.cfg.Hashes),
		Ciphers:       algo.WithMandatoryCiphers(c.cfg.Ciphers),
		AuthTags:      algo.WithMandatoryAuthTags(c.cfg.AuthTags),
		KeyAgreements: algo.WithMandatoryKeyAgreements(c.cfg.KeyAgreements),
		SASSchemes:    algo.WithMandatorySAS(c.cfg.SASSchemes),
	}
	pkt := &zrtppacket.Packet{
		Header: zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:   zrtppacket.TypeHello,
		Hello:  h,
	}
	unsigned, err := zrtppacket.Build(pkt)
	if err != nil {
		return err
	}
	// MAC over the message bytes sans the trailing 8, keyed by our own H2
	// (the preimage revealed next, in Commit) (RFC 6189 §3). Hello/Commit/
	// DHPart chain MACs are always keyed with SHA-256 regardless of the
	// negotiated hash: the H0..H3 chain itself is always SHA-256, and the
	// MAC is just HMAC over that chain's preimages.
	msg := zrtppacket.MessageBytes(unsigned)
	mac := c.backend.HMAC(algo.HashS256, c.chain.H2[:], msg[:len(msg)-8], 8)
	copy(h.MAC[:], mac)
	wire, err := zrtppacket.Build(pkt)
	if err != nil {
		return err
	}
	c.selfHelloMsg = append([]byte(nil), zrtppacket.MessageBytes(wire)...)
	c.timer.arm(nowMS)
	c.send(wire, zrtppacket.TypeHello)
	return nil
}

// Iterate drives the channel's single outstanding retransmit timer (spec
// §4.F/§9: cooperative, no goroutines). Call on every host clock tick.
func (c *Channel) Iterate(nowMS int64) {
	if !c.timer.due(nowMS) {
		return
	}
	if exhausted := c.timer.advance(nowMS); exhausted {
		c.fail(zrtperror.ProtocolTimeout, "retransmit budget exhausted in state "+c.state.String())
		return
	}
	if c.lastWire != nil {
		seq := c.nextSeq()
		zrtppacket.Retransmit(c.lastWire, seq)
		c.send(c.lastWire, c.lastType)
	}
}

// HandleIncoming runs one received packet through Check, sequencing, and
// the per-message-type dispatch table.
func (c *Channel) HandleIncoming(nowMS int64, wire []byte) error {
	seq, ssrc, typ, body, err := zrtppacket.Check(wire)
	if err != nil {
		return nil // parser errors: drop silently, per RFC 6189 §7
	}
	if typ == zrtppacket.TypePing || typ == zrtppacket.TypePingACK {
		return c.handlePing(ssrc, typ, body)
	}
	if c.peerSeqKnown && seq <= c.peerSeq {
		return nil // strictly-increasing only; duplicates/reorders dropped
	}
	c.peerSeq = seq
	c.peerSeqKnown = true
	c.peerSSRC = ssrc

	pkt := &zrtppacket.Packet{}
	if err := zrtppacket.Parse(pkt, typ, body); err != nil {
		return nil
	}

	switch typ {
	case zrtppacket.TypeHello:
		return c.onHello(nowMS, pkt.Hello, wire)
	case zrtppacket.TypeHelloACK:
		return c.onHelloACK(nowMS)
	case zrtppacket.TypeCommit:
		return c.onCommit(nowMS, pkt.Commit, wire)
	case zrtppacket.TypeDHPart1:
		return c.onDHPart1(nowMS, pkt.DHPart1, wire)
	case zrtppacket.TypeDHPart2:
		return c.onDHPart2(nowMS, pkt.DHPart2, wire)
	case zrtppacket.TypeConfirm1:
		return c.onConfirm1(nowMS, pkt.Confirm1)
	case zrtppacket.TypeConfirm2:
		return c.onConfirm2(nowMS, pkt.Confirm2)
	case zrtppacket.TypeConf2ACK:
		return c.onConf2ACK(nowMS)
	case zrtppacket.TypeError:
		c.state = Error
		c.timer.disarm()
		c.status(SeverityError, zrtperror.Code(pkt.Error.Code), "peer reported error")
	case zrtppacket.TypeGoClear:
		return c.onGoClear(pkt.GoClear)
	case zrtppacket.TypeClearACK:
		return c.onClearACK()
	}
	return nil
}

func (c *Channel) handlePing(ssrc uint32, typ zrtppacket.MessageType, body []byte) error {
	if typ != zrtppacket.TypePing {
		return nil // PingACK needs no reply
	}
	pkt := &zrtppacket.Packet{}
	if err := zrtppacket.Parse(pkt, typ, body); err != nil {
		return nil
	}
	ack := &zrtppacket.PingACK{
		Version:    c.cfg.Version,
		SenderHash: pkt.Ping.EndpointHash,
		SourceSSRC: c.ssrc,
	}
	copy(ack.SourceHash[:], c.cfg.ZID[:8])
	reply := &zrtppacket.Packet{
		Header:  zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:    zrtppacket.TypePingACK,
		PingACK: ack,
	}
	wire, err := zrtppacket.Build(reply)
	if err != nil {
		return err
	}
	if c.cb.SendData != nil {
		c.cb.SendData(ssrc, wire)
	}
	return nil
}

// peerSupports reports whether a multistream peer's Hello advertises every
// algorithm channel 0 already settled on, plus Multistream itself (spec
// §4.G: a bound channel N>0 must find channel 0's exact quintuple, with
// only KeyAgreement substituted, among the peer's offered lists).
func peerSupports(h *zrtppacket.Hello, q negotiate.Quintuple) bool {
	hasHash, hasCipher, hasAuthTag, hasSAS, hasMult := false, false, false, false, false
	for _, v := range h.Hashes {
		if v == q.Hash {
			hasHash = true
		}
	}
	for _, v := range h.Ciphers {
		if v == q.Cipher {
			hasCipher = true
		}
	}
	for _, v := range h.AuthTags {
		if v == q.AuthTag {
			hasAuthTag = true
		}
	}
	for _, v := range h.SASSchemes {
		if v == q.SAS {
			hasSAS = true
		}
	}
	for _, v := range h.KeyAgreements {
		if v == algo.KeyAgreementMult {
			hasMult = true
		}
	}
	return hasHash && hasCipher && hasAuthTag && hasSAS && hasMult
}

func (c *Channel) onHello(nowMS int64, h *zrtppacket.Hello, wire []byte) error {
	if c.state != SendingHello && c.state != WaitingForHello {
		return nil
	}
	c.peerHelloMsg = append([]byte(nil), zrtppacket.MessageBytes(wire)...)
	c.peerZID = h.ZID
	c.peerH3 = h.H3
	c.peerClientID = h.ClientID
	c.peerPassive = h.P
	c.peerPBX = h.M

	var q negotiate.Quintuple
	if c.forced != nil {
		if !peerSupports(h, *c.forced) {
			return c.fail(zrtperror.HelloComponentsMismatch, "peer lacks channel 0's negotiated algorithms")
		}
		q = *c.forced
		q.KeyAgreement = algo.KeyAgreementMult
	} else {
		var err error
		q, err = negotiate.Select(
			algo.WithMandatoryHashes(c.cfg.Hashes), algo.WithMandatoryCiphers(c.cfg.Ciphers),
			algo.WithMandatoryAuthTags(c.cfg.AuthTags), algo.WithMandatoryKeyAgreements(c.cfg.KeyAgreements),
			algo.WithMandatorySAS(c.cfg.SASSchemes),
			algo.WithMandatoryHashes(h.Hashes), algo.WithMandatoryCiphers(h.Ciphers),
			algo.WithMandatoryAuthTags(h.AuthTags), algo.WithMandatoryKeyAgreements(h.KeyAgreements),
			algo.WithMandatorySAS(h.SASSchemes))
		if err != nil {
			return c.fail(zrtperror.HelloComponentsMismatch, "no common algorithm")
		}
		if c.multistream {
			q.KeyAgreement = algo.KeyAgreementMult
		}
	}
	c.q = q
	c.secrets = c.store.Get(c.peerZID)
	if c.secrets == nil {
		c.secrets = &cache.Secrets{}
	}

	ack := &zrtppacket.Packet{
		Header:   zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:     zrtppacket.TypeHelloACK,
		HelloACK: &struct{}{},
	}
	if wire, err := zrtppacket.Build(ack); err == nil {
		c.send(wire, zrtppacket.TypeHelloACK)
	}
	if c.state == SendingHello {
		c.state = WaitingForPeerAck
	}
	return c.maybeCommit(nowMS)
}

func (c *Channel) onHelloACK(nowMS int64) error {
	if c.state != SendingHello {
		return nil
	}
	c.state = WaitingForHello
	c.timer.disarm()
	return c.maybeCommit(nowMS)
}

// maybeCommit sends our Commit (moving to WaitingDHPart1) once both a peer
// Hello and a negotiated quintuple exist, unless this side is Passive (RFC 6189 §4.F:
// a Passive endpoint never initiates Commit).
func (c *Channel) maybeCommit(nowMS int64) error {
	if c.peerHelloMsg == nil || c.q.KeyAgreement == algo.KeyAgreementInvalid {
		return nil
	}
	if c.cfg.Passive {
		return nil
	}
	if c.state != WaitingForPeerAck && c.state != WaitingForHello {
		return nil
	}
	return c.sendCommit(nowMS)
}

func (c *Channel) sendCommit(nowMS int64) error {
	commit := &zrtppacket.Commit{
		ZID: c.cfg.ZID, H2: c.chain.H2,
		Hash: c.q.Hash, Cipher: c.q.Cipher, AuthTag: c.q.AuthTag,
		KeyAgreement: c.q.KeyAgreement, SAS: c.q.SAS,
	}

	switch {
	case skipsDHExchange(c.q.KeyAgreement):
		nonce, err := c.backend.RNGBytes(16)
		if err != nil {
			return err
		}
		copy(commit.Nonce[:], nonce)
	default:
		if err := c.generateSelfKeyMaterial(); err != nil {
			return err
		}
		dhPart2PV := c.selfPV
		if c.q.KeyAgreement.IsKEM() {
			// KEM DHPart2 carries a 32-byte nonce; the public key rides in Commit.
			nonce, err := c.backend.RNGBytes(32)
			if err != nil {
				return err
			}
			dhPart2PV = nonce
		}
		dhPart2 := c.buildDHPartBody(c.chain.H1, dhPart2PV)
		dhPart2Pkt := &zrtppacket.Packet{
			Header:  zrtppacket.Header{SSRC: c.ssrc},
			Type:    zrtppacket.TypeDHPart2,
			DHPart2: dhPart2,
		}
		dhPart2Wire, err := zrtppacket.Build(dhPart2Pkt)
		if err != nil {
			return err
		}
		// DHPart MAC keyed by our H0, as for DHPart1 (RFC 6189 §3).
		dhMsg := zrtppacket.MessageBytes(dhPart2Wire)
		copy(dhPart2.MAC[:], c.backend.HMAC(algo.HashS256, c.chain.H0[:], dhMsg[:len(dhMsg)-8], 8))
		if dhPart2Wire, err = zrtppacket.Build(dhPart2Pkt); err != nil {
			return err
		}
		c.selfDHPartMsg = append([]byte(nil), zrtppacket.MessageBytes(dhPart2Wire)...)
		if c.q.KeyAgreement.IsKEM() {
			commit.PV = c.selfPV
		}
		commit.HVI = hviOf(c.backend, c.q.Hash, c.selfDHPartMsg, c.peerHelloMsg)
	}

	pkt := &zrtppacket.Packet{
		Header: zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:   zrtppacket.TypeCommit,
		Commit: commit,
	}
	unsigned, err := zrtppacket.Build(pkt)
	if err != nil {
		return err
	}
	msg := zrtppacket.MessageBytes(unsigned)
	mac := c.backend.HMAC(algo.HashS256, c.chain.H1[:], msg[:len(msg)-8], 8)
	copy(commit.MAC[:], mac)
	wire, err := zrtppacket.Build(pkt)
	if err != nil {
		return err
	}
	c.selfCommitMsg = append([]byte(nil), zrtppacket.MessageBytes(wire)...)
	c.role = RoleInitiator // tentative; flips on contention loss
	c.log.Debug("sending commit, key agreement %v", c.q.KeyAgreement)
	c.state = WaitingDHPart1
	c.timer.arm(nowMS)
	c.send(wire, zrtppacket.TypeCommit)
	return nil
}

func hviOf(b zrtpcrypto.Backend, h algo.Hash, dhPart2MessageBytes, responderHelloMessageBytes []byte) [32]byte {
	buf := append(append([]byte(nil), dhPart2MessageBytes...), responderHelloMessageBytes...)
	var out [32]byte
	copy(out[:], b.Hash(h, buf))
	return out
}

// generateSelfKeyMaterial creates the tentative initiator's DH keypair or
// KEM ephemeral keypair (GenerateKeyPair plays the initiator's ephemeral
// role, per zrtpcrypto.KEM's doc comment).
func (c *Channel) generateSelfKeyMaterial() error {
	if c.q.KeyAgreement.IsKEM() {
		kem, err := c.backend.NewKEM(c.q.KeyAgreement, c.q.Hash)
		if err != nil {
			return err
		}
		pub, err := kem.GenerateKeyPair()
		if err != nil {
			return err
		}
		c.selfPV = pub
		c.kem = kem
		return nil
	}
	dh, err := c.backend.NewDH(c.q.KeyAgreement)
	if err != nil {
		return err
	}
	c.selfPV = dh.SelfPublicValue()
	c.dhHandle = dh
	return nil
}

func (c *Channel) buildDHPartBody(h1 [32]byte, pv []byte) *zrtppacket.DHPart {
	d := &zrtppacket.DHPart{H1: h1, PV: pv}
	if c.secrets != nil {
		if len(c.secrets.RS1) > 0 {
			d.RS1ID = cache.ResponderID(c.backend, c.q.Hash, c.secrets.RS1)
		}
		if len(c.secrets.RS2) > 0 {
			d.RS2ID = cache.ResponderID(c.backend, c.q.Hash, c.secrets.RS2)
		}
		if len(c.secrets.AuxSecret) > 0 {
			d.AuxSecretID = cache.SecretID(c.backend, c.q.Hash, c.secrets.AuxSecret, c.chain.H3, c.peerH3)
		}
		if len(c.secrets.PBXSecret) > 0 {
			d.PBXSecretID = cache.ResponderID(c.backend, c.q.Hash, c.secrets.PBXSecret)
		}
	}
	return d
}

// onCommit handles a peer Commit, including contention with our own
// tentative Commit (RFC 6189 §4.F).
func (c *Channel) onCommit(nowMS int64, commit *zrtppacket.Commit, wire []byte) error {
	if !verifyChainStep(c.backend, c.peerH3[:], commit.H2[:]) {
		return c.fail(zrtperror.MalformedPacket, "commit H2 does not chain to peer H3")
	}
	if c.peerHelloMsg != nil {
		sansMAC := c.peerHelloMsg[:len(c.peerHelloMsg)-8]
		if !verifyMAC(c.backend, algo.HashS256, commit.H2[:], sansMAC, c.peerHelloMsg[len(c.peerHelloMsg)-8:]) {
			return c.fail(zrtperror.MalformedPacket, "hello mac mismatch once H2 revealed")
		}
	}
	c.peerCommitH2 = commit.H2
	c.peerCommitMsg = append([]byte(nil), zrtppacket.MessageBytes(wire)...)

	if c.state == WaitingDHPart1 {
		if c.wonContention(commit) {
			return nil // discard peer's Commit, stay initiator
		}
		c.role = RoleResponder
		c.q = negotiate.Quintuple{
			Hash:         commit.Hash,
			Cipher:       commit.Cipher,
			AuthTag:      commit.AuthTag,
			KeyAgreement: commit.KeyAgreement,
			SAS:          commit.SAS,
		}
		c.log.Debug("lost commit contention, becoming responder")
		return c.becomeResponder(nowMS, commit)
	}

	if c.state != WaitingForPeerAck && c.state != WaitingForHello {
		return nil
	}
	c.role = RoleResponder
	c.q = negotiate.Quintuple{
		Hash:         commit.Hash,
		Cipher:       commit.Cipher,
		AuthTag:      commit.AuthTag,
		KeyAgreement: commit.KeyAgreement,
		SAS:          commit.SAS,
	}
	c.timer.disarm()
	c.log.Debug("peer committed first, becoming responder")
	return c.becomeResponder(nowMS, commit)
}

// wonContention compares hvi (or nonce, for Multistream/Preshared) as
// unsigned big-endian integers; larger wins (RFC 6189 §4.F). A PBX-flagged
// side never contends, so it always defers to a non-PBX peer's Commit.
func (c *Channel) wonContention(peerCommit *zrtppacket.Commit) bool {
	if c.cfg.PBX {
		return false
	}
	if c.peerPBX {
		return true
	}
	// Our hvi or nonce directly follows the fixed Commit fields: message
	// header, H2 (32), ZID (12) and the five algorithm tags (20).
	const variableOffset = zrtppacket.MessageHeaderLength + 32 + 12 + 20
	if skipsDHExchange(c.q.KeyAgreement) {
		ourNonce := c.selfCommitMsg[variableOffset : variableOffset+16]
		return bytes.Compare(ourNonce, peerCommit.Nonce[:]) > 0
	}
	ourHVI := c.selfCommitMsg[variableOffset : variableOffset+32]
	return bytes.Compare(ourHVI, peerCommit.HVI[:]) > 0
}

func (c *Channel) becomeResponder(nowMS int64, commit *zrtppacket.Commit) error {
	if skipsDHExchange(c.q.KeyAgreement) {
		if err := c.deriveSecrets(); err != nil {
			return err
		}
		return c.sendConfirm(nowMS, true)
	}

	if c.q.KeyAgreement.IsKEM() {
		kem, err := c.backend.NewKEM(c.q.KeyAgreement, c.q.Hash)
		if err != nil {
			return err
		}
		ciphertext, shared, err := kem.Encapsulate(commit.PV)
		if err != nil {
			return c.fail(zrtperror.DHErrorBadPVI, "key encapsulation failed")
		}
		c.dhResult = shared
		c.selfPV = ciphertext
	} else {
		dh, err := c.backend.NewDH(c.q.KeyAgreement)
		if err != nil {
			return err
		}
		c.selfPV = dh.SelfPublicValue()
		c.dhHandle = dh
	}

	d := c.buildDHPartBody(c.chain.H1, c.selfPV)
	pkt := &zrtppacket.Packet{
		Header:  zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:    zrtppacket.TypeDHPart1,
		DHPart1: d,
	}
	unsigned, err := zrtppacket.Build(pkt)
	if err != nil {
		return err
	}
	msg := zrtppacket.MessageBytes(unsigned)
	mac := c.backend.HMAC(algo.HashS256, c.chain.H0[:], msg[:len(msg)-8], 8)
	copy(d.MAC[:], mac)
	wire, err := zrtppacket.Build(pkt)
	if err != nil {
		return err
	}
	c.selfDHPartMsg = append([]byte(nil), zrtppacket.MessageBytes(wire)...)
	c.state = WaitingDHPart2
	c.timer.arm(nowMS)
	c.send(wire, zrtppacket.TypeDHPart1)
	return nil
}

// onDHPart1 is the initiator's receipt of the responder's DHPart1: a
// two-step chain verification back to the responder's Hello H3, since
// the responder never sent a Commit of its own to reveal an intermediate
// H2 (RFC 6189 §4.C).
func (c *Channel) onDHPart1(nowMS int64, d *zrtppacket.DHPart, wire []byte) error {
	if c.state != WaitingDHPart1 {
		return nil
	}
	step1 := c.backend.Hash(algo.HashS256, d.H1[:])
	step2 := c.backend.Hash(algo.HashS256, step1)
	if !bytes.Equal(step2, c.peerH3[:]) {
		return c.fail(zrtperror.MalformedPacket, "dhpart1 does not chain to peer H3")
	}
	c.peerDHPartH1 = d.H1
	c.peerDHPartMsg = append([]byte(nil), zrtppacket.MessageBytes(wire)...)

	var err error
	if c.q.KeyAgreement.IsKEM() {
		c.dhResult, err = c.kem.Decapsulate(d.PV)
	} else {
		c.dhResult, err = c.dhHandle.ComputeShared(d.PV)
	}
	if err != nil {
		return c.fail(zrtperror.DHErrorBadPVI, "key agreement failed")
	}

	if err := c.deriveSecrets(); err != nil {
		return err
	}

	seq := c.nextSeq()
	wireOut := zrtppacket.Reframe(c.selfDHPartMsg, zrtppacket.TypeDHPart2, seq, c.ssrc)
	c.state = WaitingConfirm1
	c.timer.arm(nowMS)
	c.send(wireOut, zrtppacket.TypeDHPart2)
	return nil
}

// onDHPart2 is the responder's receipt of the initiator's DHPart2: a
// single-step chain verification against the H2 already revealed by the
// initiator's Commit, plus the deferred check of that Commit's own MAC
// now that H1 is available (RFC 6189 §4.C).
func (c *Channel) onDHPart2(nowMS int64, d *zrtppacket.DHPart, wire []byte) error {
	if c.state != WaitingDHPart2 {
		return nil
	}
	if !verifyChainStep(c.backend, c.peerCommitH2[:], d.H1[:]) {
		return c.fail(zrtperror.MalformedPacket, "dhpart2 does not chain to peer commit H2")
	}
	sansMAC := c.peerCommitMsg[:len(c.peerCommitMsg)-8]
	if !verifyMAC(c.backend, algo.HashS256, d.H1[:], sansMAC, c.peerCommitMsg[len(c.peerCommitMsg)-8:]) {
		return c.fail(zrtperror.MalformedPacket, "commit mac mismatch once H1 revealed")
	}
	c.peerDHPartH1 = d.H1
	c.peerDHPartMsg = append([]byte(nil), zrtppacket.MessageBytes(wire)...)

	var err error
	if !c.q.KeyAgreement.IsKEM() {
		c.dhResult, err = c.dhHandle.ComputeShared(d.PV)
		if err != nil {
			return c.fail(zrtperror.DHErrorBadPVI, "key agreement failed")
		}
	}
	// For KEM, dhResult was already produced by Encapsulate in becomeResponder.

	if err := c.deriveSecrets(); err != nil {
		return err
	}
	c.timer.disarm()
	return c.sendConfirm(nowMS, true)
}

// orderedHandshakeMessages returns (responder Hello, Commit, DHPart1,
// DHPart2) message-byte spans, resolved from whichever side locally sent
// or received each one, for RFC 6189 §4.E's total_hash.
func (c *Channel) orderedHandshakeMessages() (responderHello, commitMsg, dhPart1Msg, dhPart2Msg []byte) {
	if c.role == RoleInitiator {
		return c.peerHelloMsg, c.selfCommitMsg, c.peerDHPartMsg, c.selfDHPartMsg
	}
	return c.selfHelloMsg, c.peerCommitMsg, c.selfDHPartMsg, c.peerDHPartMsg
}

func (c *Channel) deriveSecrets() error {
	var zidI, zidR [12]byte
	if c.role == RoleInitiator {
		zidI, zidR = c.cfg.ZID, c.peerZID
	} else {
		zidI, zidR = c.peerZID, c.cfg.ZID
	}
	responderHello, commitMsg, dhPart1Msg, dhPart2Msg := c.orderedHandshakeMessages()
	var totalHash []byte
	if skipsDHExchange(c.q.KeyAgreement) {
		totalHash = kdf.ComputeTotalHash(c.backend, c.q.Hash, responderHello, commitMsg)
	} else {
		totalHash = kdf.ComputeTotalHash(c.backend, c.q.Hash, responderHello, commitMsg, dhPart1Msg, dhPart2Msg)
	}
	c.kdfContext = kdf.ComputeKDFContext(zidI[:], zidR[:], totalHash)

	var rs kdf.RetainedSecrets
	if c.secrets != nil {
		switch {
		case len(c.secrets.RS1) > 0:
			rs.S1 = c.secrets.RS1
		case len(c.secrets.RS2) > 0:
			rs.S1 = c.secrets.RS2
		}
		rs.S2 = c.secrets.AuxSecret
		rs.S3 = c.secrets.PBXSecret
	}

	switch c.q.KeyAgreement {
	case algo.KeyAgreementMult:
		c.s0 = kdf.MultistreamS0(c.backend, c.q.Hash, c.zrtpSess, c.kdfContext)
	case algo.KeyAgreementPrsh:
		if len(rs.S1) == 0 {
			return c.fail(zrtperror.NoSharedSecret, "no retained secret for preshared mode")
		}
		c.s0 = kdf.ComputeS0(c.backend, c.q.Hash, nil, c.kdfContext, rs)
	default:
		c.s0 = kdf.ComputeS0(c.backend, c.q.Hash, c.dhResult, c.kdfContext, rs)
	}

	c.keys = kdf.DeriveChannelKeys(c.backend, c.q.Hash, c.q.Cipher, c.s0, c.kdfContext)
	c.srtp = kdf.DeriveSRTPSecrets(c.backend, c.q.Hash, c.q.Cipher, c.s0, c.kdfContext)
	sasHash := kdf.ComputeSASHash(c.backend, c.q.Hash, c.s0, c.kdfContext)
	c.sas = kdf.RenderSAS(sasHash, c.q.SAS)
	if decoys, err := kdf.GenerateDecoySASes(c.backend, c.q.SAS, c.sas, 3); err == nil {
		c.decoys = decoys
	}
	if !c.multistream {
		c.zrtpSess = kdf.ZRTPSession(c.backend, c.q.Hash, c.s0, c.kdfContext)
	}
	return nil
}

// sendConfirm builds and sends Confirm1 (asResponder==true) or Confirm2
// (asResponder==false), encrypted and MAC'd with this side's own
// zrtpkey/mackey (RFC 6189 §4.E/§4.F).
func (c *Channel) sendConfirm(nowMS int64, asResponder bool) error {
	zrtpKey, macKey := c.keys.ZRTPKeyInitiator, c.keys.MacKeyInitiator
	typ := zrtppacket.TypeConfirm2
	nextState := WaitingConf2ACK
	if asResponder {
		zrtpKey, macKey = c.keys.ZRTPKeyResponder, c.keys.MacKeyResponder
		typ = zrtppacket.TypeConfirm1
		nextState = WaitingConfirm2
	}

	confirm := &zrtppacket.Confirm{H0: c.chain.H0, A: true}
	plaintext := zrtppacket.EncodeConfirmPlaintext(confirm)
	iv, err := c.backend.RNGBytes(16)
	if err != nil {
		return err
	}
	copy(confirm.IV[:], iv)
	ciphertext, err := c.backend.AESCFBEncrypt(c.q.Cipher, zrtpKey, confirm.IV[:], plaintext)
	if err != nil {
		return err
	}
	confirm.RawCipherText = ciphertext
	mac := c.backend.HMAC(c.q.Hash, macKey, ciphertext, 8)
	copy(confirm.MAC8[:], mac)

	pkt := &zrtppacket.Packet{
		Header: zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:   typ,
	}
	if asResponder {
		pkt.Confirm1 = confirm
	} else {
		pkt.Confirm2 = confirm
	}
	wire, err := zrtppacket.Build(pkt)
	if err != nil {
		return err
	}
	c.state = nextState
	c.timer.arm(nowMS)
	c.send(wire, typ)
	return nil
}

// verifyAndDecryptConfirm checks a received Confirm's MAC (keyed by the
// sender's mackey, over the ciphertext alone), decrypts it with the
// sender's zrtpkey, and checks its H0. After a DH/KEM exchange, H0 must
// chain to the peer DHPart's already recorded H1 and match that DHPart's
// own deferred MAC. In Multistream/Preshared mode, where no DHPart exists,
// H0 must chain up to the peer Hello's H3 and, in the initiator's Confirm2,
// match the initiator Commit's deferred MAC (keyed by H1).
func (c *Channel) verifyAndDecryptConfirm(confirm *zrtppacket.Confirm, senderIsInitiator bool) error {
	zrtpKey, macKey := c.keys.ZRTPKeyResponder, c.keys.MacKeyResponder
	if senderIsInitiator {
		zrtpKey, macKey = c.keys.ZRTPKeyInitiator, c.keys.MacKeyInitiator
	}
	mac := c.backend.HMAC(c.q.Hash, macKey, confirm.RawCipherText, 8)
	if !bytes.Equal(mac, confirm.MAC8[:]) {
		return c.fail(zrtperror.ConfirmMACMismatch, "confirm mac mismatch")
	}
	plaintext, err := c.backend.AESCFBDecrypt(c.q.Cipher, zrtpKey, confirm.IV[:], confirm.RawCipherText)
	if err != nil {
		return c.fail(zrtperror.ConfirmMACMismatch, "confirm decrypt failed")
	}
	if err := zrtppacket.DecryptConfirm(confirm, plaintext); err != nil {
		return c.fail(zrtperror.MalformedPacket, "malformed confirm plaintext")
	}
	if !skipsDHExchange(c.q.KeyAgreement) {
		if !verifyChainStep(c.backend, c.peerDHPartH1[:], confirm.H0[:]) {
			return c.fail(zrtperror.MalformedPacket, "confirm H0 does not chain to peer dhpart H1")
		}
		sansMAC := c.peerDHPartMsg[:len(c.peerDHPartMsg)-8]
		if !verifyMAC(c.backend, algo.HashS256, confirm.H0[:], sansMAC, c.peerDHPartMsg[len(c.peerDHPartMsg)-8:]) {
			return c.fail(zrtperror.MalformedPacket, "dhpart mac mismatch once H0 revealed")
		}
	} else {
		h1 := c.backend.Hash(algo.HashS256, confirm.H0[:])
		if !verifyChainStep(c.backend, c.peerH3[:], c.backend.Hash(algo.HashS256, h1)) {
			return c.fail(zrtperror.MalformedPacket, "confirm H0 does not chain to peer H3")
		}
		if senderIsInitiator {
			sansMAC := c.peerCommitMsg[:len(c.peerCommitMsg)-8]
			if !verifyMAC(c.backend, algo.HashS256, h1, sansMAC, c.peerCommitMsg[len(c.peerCommitMsg)-8:]) {
				return c.fail(zrtperror.MalformedPacket, "commit mac mismatch once H1 revealed")
			}
		}
	}
	return nil
}

func (c *Channel) onConfirm1(nowMS int64, confirm *zrtppacket.Confirm) error {
	if c.role != RoleInitiator {
		return nil
	}
	if c.state == WaitingDHPart1 && skipsDHExchange(c.q.KeyAgreement) {
		// Multistream/Preshared: no DHPart exchange, so Confirm1 answers our
		// Commit directly and the keys are derived now.
		if err := c.deriveSecrets(); err != nil {
			return err
		}
		c.state = WaitingConfirm1
	}
	if c.state != WaitingConfirm1 {
		return nil
	}
	if err := c.verifyAndDecryptConfirm(confirm, false); err != nil {
		return err
	}
	return c.sendConfirm(nowMS, false)
}

func (c *Channel) onConfirm2(nowMS int64, confirm *zrtppacket.Confirm) error {
	if c.role != RoleResponder || c.state != WaitingConfirm2 {
		return nil
	}
	if err := c.verifyAndDecryptConfirm(confirm, true); err != nil {
		return err
	}
	ack := &zrtppacket.Packet{
		Header:   zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:     zrtppacket.TypeConf2ACK,
		Conf2ACK: &struct{}{},
	}
	if wire, err := zrtppacket.Build(ack); err == nil {
		c.send(wire, zrtppacket.TypeConf2ACK)
	}
	c.enterSecure(nowMS)
	return nil
}

func (c *Channel) onConf2ACK(nowMS int64) error {
	if c.role != RoleInitiator || c.state != WaitingConf2ACK {
		return nil
	}
	c.enterSecure(nowMS)
	return nil
}

func (c *Channel) enterSecure(nowMS int64) {
	c.state = Secure
	c.timer.disarm()
	c.log.Info("secure, sas=%s", c.sas.String)
	if c.cb.SRTPSecretsAvailable != nil {
		c.cb.SRTPSecretsAvailable(c.ssrc, c.srtp, c.role == RoleInitiator)
	}
	if c.cb.SASReady != nil {
		c.cb.SASReady(c.ssrc, c.sas, c.decoys)
	}
	if !c.multistream && c.cb.ZRTPSessionEstablished != nil {
		c.cb.ZRTPSessionEstablished(c.zrtpSess)
	}
	if !skipsDHExchange(c.q.KeyAgreement) {
		if c.secrets == nil {
			c.secrets = &cache.Secrets{}
		}
		newRS1 := kdf.Derive(c.backend, c.q.Hash, c.s0, "retained secret", c.kdfContext, c.backend.HashLength(c.q.Hash))
		c.secrets.Rotate(newRS1, nowMS)
		c.store.Put(c.peerZID, c.secrets)
	}
}

func (c *Channel) selfZRTPKey() []byte {
	if c.role == RoleInitiator {
		return c.keys.ZRTPKeyInitiator
	}
	return c.keys.ZRTPKeyResponder
}

func (c *Channel) peerZRTPKey() []byte {
	if c.role == RoleInitiator {
		return c.keys.ZRTPKeyResponder
	}
	return c.keys.ZRTPKeyInitiator
}

// InitiateGoClear asks the peer to drop SRTP encryption (wire support
// only, no SASRelay-style MiTM handling). Only meaningful once
// Secure; the host must have set Config.AllowGoClear, since a channel
// that itself rejects inbound GoClear has no business sending one.
func (c *Channel) InitiateGoClear(nowMS int64) error {
	if !c.cfg.AllowGoClear || c.state != Secure {
		return zrtperror.ErrUnexpectedForState
	}
	clearMAC := c.backend.HMAC(c.q.Hash, c.selfZRTPKey(), []byte("Clear"), 8)
	gc := &zrtppacket.GoClear{}
	copy(gc.ClearMAC[:], clearMAC)
	pkt := &zrtppacket.Packet{
		Header:  zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:    zrtppacket.TypeGoClear,
		GoClear: gc,
	}
	wire, err := zrtppacket.Build(pkt)
	if err != nil {
		return err
	}
	c.state = GoingClear
	c.timer.arm(nowMS)
	c.send(wire, zrtppacket.TypeGoClear)
	return nil
}

// onGoClear verifies an inbound GoClear's ClearMAC (HMAC of "Clear" keyed
// by the sender's own zrtpkey) and, if AllowGoClear is set,
// drops to the Clear state and acknowledges it. When AllowGoClear is
// false, the GoClear is refused with a wire Error rather than honored.
func (c *Channel) onGoClear(g *zrtppacket.GoClear) error {
	if !c.cfg.AllowGoClear {
		return c.fail(zrtperror.GoClearNotAllowed, "GoClear received but not allowed")
	}
	if c.state != Secure {
		return nil
	}
	want := c.backend.HMAC(c.q.Hash, c.peerZRTPKey(), []byte("Clear"), 8)
	if !bytes.Equal(want, g.ClearMAC[:]) {
		return c.fail(zrtperror.MalformedPacket, "bad ClearMAC")
	}
	c.state = Clear
	c.timer.disarm()
	c.log.Warn("peer requested GoClear, session now clear")
	c.status(SeverityWarning, zrtperror.GoClearAccepted, "peer requested GoClear")
	ack := &zrtppacket.Packet{
		Header:   zrtppacket.Header{Sequence: c.nextSeq(), SSRC: c.ssrc},
		Type:     zrtppacket.TypeClearACK,
		ClearACK: &struct{}{},
	}
	if wire, err := zrtppacket.Build(ack); err == nil {
		c.send(wire, zrtppacket.TypeClearACK)
	}
	return nil
}

func (c *Channel) onClearACK() error {
	if c.state != GoingClear {
		return nil
	}
	c.state = Clear
	c.timer.disarm()
	c.log.Warn("GoClear acknowledged, session now clear")
	return nil
}
