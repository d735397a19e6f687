// Package zrtp is the host-facing ZRTP control surface: one Context per
// media session, multiplexing one Channel per SSRC over a shared ZID,
// cache, and algorithm policy.
//
// Context is a thin session object: it wraps the internal subsystems
// (channel, cache, zrtpcrypto, algo) and is constructed with NewContext,
// then driven through a handful of exported methods.
package zrtp

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/lanikai/zrtp/internal/algo"
	"github.com/lanikai/zrtp/internal/cache"
	"github.com/lanikai/zrtp/internal/channel"
	"github.com/lanikai/zrtp/internal/kdf"
	"github.com/lanikai/zrtp/internal/logging"
	"github.com/lanikai/zrtp/internal/zrtperror"
	"github.com/lanikai/zrtp/internal/zrtpcrypto"
)

// Severity mirrors channel.Severity at the host boundary, so callers of
// this package never need to import internal/channel.
type Severity = channel.Severity

const (
	SeverityInfo    = channel.SeverityInfo
	SeverityWarning = channel.SeverityWarning
	SeverityError   = channel.SeverityError
)

// Callbacks is the host embedding interface (RFC 6189 §6). Every callback
// carries the clientData handle the host supplied to NewContext, the
// same opaque-handle convention cache.Callbacks uses for load/store.
type Callbacks struct {
	LoadCache  func(clientData any) ([]byte, bool)
	StoreCache func(clientData any, blob []byte)

	// SendData hands the host a packet to transmit on ssrc's media
	// stream. Required.
	SendData func(clientData any, ssrc uint32, wire []byte) int

	// SRTPSecretsAvailable fires once per channel, as soon as that
	// channel reaches Secure.
	SRTPSecretsAvailable func(clientData any, ssrc uint32, secrets kdf.SRTPSecrets, weAreInitiator bool)

	// SASReady fires once per channel on reaching Secure. verified is
	// read from the cache (RFC 6189 §6): true only if a prior session with
	// this ZID already had its SAS confirmed out of band.
	SASReady func(clientData any, ssrc uint32, sas kdf.SAS, decoys []kdf.SAS, verified bool)

	StatusMessage func(clientData any, severity Severity, code zrtperror.Code, text string)

	// ZRTPSessionEstablished fires once, when channel 0 reaches Secure;
	// the resulting zrtpSess is what every later multistream channel is
	// bound to.
	ZRTPSessionEstablished func(clientData any, zrtpSess []byte)
}

// Config is the session-wide policy (RFC 6189 §3): identity, per-family
// algorithm preferences, and the host-tunable knobs (channel limit,
// GoClear policy) this core adds on top of it.
type Config struct {
	// ZID is this endpoint's 12-byte ZRTP identifier. If zero, NewContext
	// derives one from a random UUID (SilvaMendes/go-rtpengine's
	// GetCookie uses uuid.NewString() the same way: a ready-made random
	// identifier borrowed from the ecosystem instead of hand-rolled
	// randomness).
	ZID      [12]byte
	ClientID [16]byte
	Version  string

	Passive bool // P flag: this endpoint never initiates Commit
	PBX     bool // M flag: this endpoint never contends a Commit race

	Hashes        []algo.Hash
	Ciphers       []algo.Cipher
	AuthTags      []algo.AuthTag
	KeyAgreements []algo.KeyAgreement
	SASSchemes    []algo.SAS

	// MaxChannels bounds the multistream fan-out (0 means unbounded).
	MaxChannels int

	// AllowGoClear gates whether an inbound GoClear is honored at all;
	// default false rejects every GoClear with GoClearNotAllowed.
	AllowGoClear bool
}

func (cfg *Config) fillDefaults() {
	if cfg.Version == "" {
		cfg.Version = "1.10"
	}
	if len(cfg.Hashes) == 0 {
		cfg.Hashes = []algo.Hash{algo.HashS384, algo.HashS256}
	}
	if len(cfg.Ciphers) == 0 {
		cfg.Ciphers = []algo.Cipher{algo.CipherAES3, algo.CipherAES1}
	}
	if len(cfg.AuthTags) == 0 {
		cfg.AuthTags = []algo.AuthTag{algo.AuthTagGCM, algo.AuthTagHS80, algo.AuthTagHS32}
	}
	if len(cfg.KeyAgreements) == 0 {
		cfg.KeyAgreements = []algo.KeyAgreement{
			algo.KeyAgreementX3K3, algo.KeyAgreementDH3k, algo.KeyAgreementMult,
		}
	}
	if len(cfg.SASSchemes) == 0 {
		cfg.SASSchemes = []algo.SAS{algo.SASBase32}
	}
	if cfg.ZID == ([12]byte{}) {
		id := uuid.New()
		copy(cfg.ZID[:], id[:12])
	}
}

func (cfg Config) channelConfig() channel.Config {
	return channel.Config{
		ZID:           cfg.ZID,
		ClientID:      cfg.ClientID,
		Version:       cfg.Version,
		Passive:       cfg.Passive,
		PBX:           cfg.PBX,
		Hashes:        cfg.Hashes,
		Ciphers:       cfg.Ciphers,
		AuthTags:      cfg.AuthTags,
		KeyAgreements: cfg.KeyAgreements,
		SASSchemes:    cfg.SASSchemes,
		AllowGoClear:  cfg.AllowGoClear,
	}
}

// Context is one ZRTP session (RFC 6189 §6): a cache, a crypto backend, and a
// table of per-SSRC Channels. Channel 0 is whichever channel is added
// first; every later channel is a multistream channel bound to it.
type Context struct {
	clientData any
	cfg        Config
	cb         Callbacks

	backend zrtpcrypto.Backend
	store   *cache.Store
	log     *logging.Logger

	channels map[uint32]*channel.Channel
	order    []uint32 // SSRC insertion order; order[0] is channel 0
	zrtpSess []byte
}

// NewContext loads the cache (via Callbacks.LoadCache, if set) and
// returns a ready Context. It does not create any channel; call
// AddChannel for each SSRC the host wants to establish.
func NewContext(clientData any, cfg Config, cb Callbacks) *Context {
	cfg.fillDefaults()
	ctx := &Context{
		clientData: clientData,
		cfg:        cfg,
		cb:         cb,
		backend:    zrtpcrypto.NewCirclBackend(),
		log:        logging.DefaultLogger.WithTag("zrtp"),
		channels:   make(map[uint32]*channel.Channel),
	}
	ctx.store = cache.NewStore(clientData, cache.Callbacks{
		Load:  cb.LoadCache,
		Store: cb.StoreCache,
	})
	return ctx
}

// channelZero returns the first-added channel, or nil if none exists yet.
func (ctx *Context) channelZero() *channel.Channel {
	if len(ctx.order) == 0 {
		return nil
	}
	return ctx.channels[ctx.order[0]]
}

// AddChannel creates and binds a new Channel for ssrc. The first call
// establishes channel 0 with ctx.cfg's full algorithm lists; every
// subsequent call creates a multistream channel locked to channel 0's
// negotiated quintuple (RFC 6189 §4.G) and requires channel 0 to have
// already reached Secure. See channel_bind.go for the binding logic.
func (ctx *Context) AddChannel(ssrc uint32) (*channel.Channel, error) {
	if _, exists := ctx.channels[ssrc]; exists {
		return nil, zrtperror.ErrSSRCAlreadyBound
	}
	if ctx.cfg.MaxChannels > 0 && len(ctx.order) >= ctx.cfg.MaxChannels {
		return nil, zrtperror.ErrTooManyChannels
	}

	ch, multistream, err := ctx.newBoundChannel(ssrc)
	if err != nil {
		return nil, err
	}

	ctx.channels[ssrc] = ch
	ctx.order = append(ctx.order, ssrc)
	ctx.log.Info("channel %08x added (multistream=%v)", ssrc, multistream)
	return ch, nil
}

// channelCallbacks adapts ctx.cb (the host-facing Callbacks, keyed by
// clientData) down to channel.Callbacks (keyed by ssrc only); the
// Context is the layer that knows clientData and the cache, so it's the
// layer that reads SASVerified back out of the store for SASReady.
func (ctx *Context) channelCallbacks() channel.Callbacks {
	return channel.Callbacks{
		SendData: func(ssrc uint32, wire []byte) {
			if ctx.cb.SendData != nil {
				ctx.cb.SendData(ctx.clientData, ssrc, wire)
			}
		},
		SRTPSecretsAvailable: func(ssrc uint32, secrets kdf.SRTPSecrets, weAreInitiator bool) {
			if ctx.cb.SRTPSecretsAvailable != nil {
				ctx.cb.SRTPSecretsAvailable(ctx.clientData, ssrc, secrets, weAreInitiator)
			}
		},
		SASReady: func(ssrc uint32, sas kdf.SAS, decoys []kdf.SAS) {
			if ctx.cb.SASReady == nil {
				return
			}
			verified := false
			ch, ok := ctx.channels[ssrc]
			if ok {
				if rec := ctx.store.Get(ch.PeerZID()); rec != nil {
					verified = rec.SASVerified
				}
			}
			ctx.cb.SASReady(ctx.clientData, ssrc, sas, decoys, verified)
		},
		Status: func(ssrc uint32, severity channel.Severity, code zrtperror.Code, text string) {
			if ctx.cb.StatusMessage != nil {
				ctx.cb.StatusMessage(ctx.clientData, severity, code, text)
			}
		},
		ZRTPSessionEstablished: func(zrtpSess []byte) {
			ctx.zrtpSess = zrtpSess
			if ctx.cb.ZRTPSessionEstablished != nil {
				ctx.cb.ZRTPSessionEstablished(ctx.clientData, zrtpSess)
			}
		},
	}
}

// StartChannelEngine begins ssrc's handshake by sending its first Hello.
func (ctx *Context) StartChannelEngine(ssrc uint32, nowMS int64) error {
	ch, ok := ctx.channels[ssrc]
	if !ok {
		return zrtperror.ErrUnknownChannel
	}
	return ch.Start(nowMS)
}

// ProcessMessage feeds one inbound ZRTP packet to ssrc's channel.
func (ctx *Context) ProcessMessage(ssrc uint32, nowMS int64, wire []byte) error {
	ch, ok := ctx.channels[ssrc]
	if !ok {
		return zrtperror.ErrUnknownChannel
	}
	return ch.HandleIncoming(nowMS, wire)
}

// Iterate drives ssrc's retransmit timer forward to nowMS; the host is
// expected to call this periodically. There are no internal goroutines
// or timers of our own.
func (ctx *Context) Iterate(ssrc uint32, nowMS int64) error {
	ch, ok := ctx.channels[ssrc]
	if !ok {
		return zrtperror.ErrUnknownChannel
	}
	ch.Iterate(nowMS)
	return nil
}

// SetSASVerified records the user's out-of-band SAS confirmation against
// channel 0's peer ZID, so future sessions with the same peer start with
// SASReady's verified flag already true.
func (ctx *Context) SetSASVerified(verified bool) error {
	zero := ctx.channelZero()
	if zero == nil {
		return zrtperror.ErrUnknownChannel
	}
	zid := zero.PeerZID()
	rec := ctx.store.Get(zid)
	if rec == nil {
		rec = &cache.Secrets{}
	}
	rec.SASVerified = verified
	ctx.store.Put(zid, rec)
	return nil
}

// ResetRetainedSecrets clears every cached retained secret for every peer
// this context has ever spoken to, without touching SASVerified flags
// (cache.Store.Reset's own documented behavior).
func (ctx *Context) ResetRetainedSecrets() {
	ctx.store.Reset()
}

// Destroy releases ctx's channel table. Safe to call once; ctx must not
// be used again afterward.
func (ctx *Context) Destroy() {
	ctx.log.Info("context destroyed, %d channel(s)", len(ctx.channels))
	ctx.channels = nil
	ctx.order = nil
}

// String aids debugging/log lines that want to name a context without
// reaching into its fields.
func (ctx *Context) String() string {
	return fmt.Sprintf("zrtp.Context{zid=%x, channels=%d}", ctx.cfg.ZID, len(ctx.channels))
}
