package cache

import (
	"encoding/binary"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Callbacks mirrors the host embedding interface's load_cache/store_cache
// pair (RFC 6189 §6): an opaque blob, round-tripped through the host's own
// persistence, indexed however the host likes (a file, a KV store, ...).
// clientData is passed back unmodified, the same opaque-handle pattern
// RFC 6189 implementations use to avoid the core depending on any
// particular storage medium.
type Callbacks struct {
	Load  func(clientData any) ([]byte, bool)
	Store func(clientData any, blob []byte)
}

// Store is the in-process view of the cache: a ZID-keyed map of Secrets,
// hydrated from a load_cache blob when the Store is created and flushed back out through
// store_cache on every mutation. It is not safe for concurrent use,
// matching RFC 6189 §5's requirement that the host serialize all entry
// points.
type Store struct {
	clientData any
	cb         Callbacks
	peers      map[[12]byte]*Secrets

	logger zerolog.Logger
}

// NewStore loads the host's persisted blob (if any) and returns a ready
// Store. A nil Callbacks.Load/Store pair is legal: the cache then behaves
// as in-memory-only for the lifetime of the Context.
func NewStore(clientData any, cb Callbacks) *Store {
	s := &Store{
		clientData: clientData,
		cb:         cb,
		peers:      make(map[[12]byte]*Secrets),
		logger:     log.With().Str("component", "zrtp-cache").Logger(),
	}
	if cb.Load != nil {
		if blob, ok := cb.Load(clientData); ok {
			peers, err := unmarshalBlob(blob)
			if err != nil {
				s.logger.Warn().Err(err).Msg("discarding unreadable cache blob")
			} else {
				s.peers = peers
				s.logger.Debug().Int("peers", len(peers)).Msg("loaded cache")
			}
		}
	}
	return s
}

// Get returns the retained-secrets record for zid, or nil if none is
// known yet.
func (s *Store) Get(zid [12]byte) *Secrets {
	return s.peers[zid]
}

// Put stores (or replaces) zid's record and flushes the cache to the
// host's store_cache callback.
func (s *Store) Put(zid [12]byte, secrets *Secrets) {
	s.peers[zid] = secrets
	s.logger.Debug().Hex("zid", zid[:]).Bool("sas_verified", secrets.SASVerified).Msg("updated retained secrets")
	s.flush()
}

// Reset clears every retained secret (RFC 6189 §6's reset_retained_secrets
// control-surface operation) but keeps the previously-verified-SAS flags,
// matching RFC 6189 §4.6.1's guidance that resetting secrets should not
// silently un-verify a SAS the user already confirmed out of band.
func (s *Store) Reset() {
	for zid, rec := range s.peers {
		s.peers[zid] = &Secrets{SASVerified: rec.SASVerified}
	}
	s.logger.Info().Msg("reset all retained secrets")
	s.flush()
}

func (s *Store) flush() {
	if s.cb.Store == nil {
		return
	}
	s.cb.Store(s.clientData, marshalBlob(s.peers))
}

// Blob encoding: count(4) then, per peer: zid(12) + sasVerified(1) +
// lastUsedMS(8) + four length-prefixed secrets. This core's own choice
// of opaque-blob layout; the host never interprets it.
func marshalBlob(peers map[[12]byte]*Secrets) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(peers)))
	for zid, rec := range peers {
		buf = append(buf, zid[:]...)
		if rec.SASVerified {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		var ts [8]byte
		binary.BigEndian.PutUint64(ts[:], uint64(rec.LastUsedMS))
		buf = append(buf, ts[:]...)
		buf = appendField(buf, rec.RS1)
		buf = appendField(buf, rec.RS2)
		buf = appendField(buf, rec.AuxSecret)
		buf = appendField(buf, rec.PBXSecret)
	}
	return buf
}

func appendField(buf, field []byte) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(field)))
	buf = append(buf, l[:]...)
	return append(buf, field...)
}

func unmarshalBlob(blob []byte) (map[[12]byte]*Secrets, error) {
	peers := make(map[[12]byte]*Secrets)
	if len(blob) < 4 {
		if len(blob) == 0 {
			return peers, nil
		}
		return nil, errShortBlob
	}
	n := binary.BigEndian.Uint32(blob[:4])
	off := 4
	for i := uint32(0); i < n; i++ {
		if len(blob) < off+12+1+8 {
			return nil, errShortBlob
		}
		var zid [12]byte
		copy(zid[:], blob[off:off+12])
		off += 12
		verified := blob[off] != 0
		off++
		lastUsed := int64(binary.BigEndian.Uint64(blob[off : off+8]))
		off += 8

		rec := &Secrets{SASVerified: verified, LastUsedMS: lastUsed}
		var err error
		rec.RS1, off, err = readField(blob, off)
		if err != nil {
			return nil, err
		}
		rec.RS2, off, err = readField(blob, off)
		if err != nil {
			return nil, err
		}
		rec.AuxSecret, off, err = readField(blob, off)
		if err != nil {
			return nil, err
		}
		rec.PBXSecret, off, err = readField(blob, off)
		if err != nil {
			return nil, err
		}
		peers[zid] = rec
	}
	return peers, nil
}

func readField(blob []byte, off int) ([]byte, int, error) {
	if len(blob) < off+4 {
		return nil, 0, errShortBlob
	}
	l := int(binary.BigEndian.Uint32(blob[off : off+4]))
	off += 4
	if l == 0 {
		return nil, off, nil
	}
	if len(blob) < off+l {
		return nil, 0, errShortBlob
	}
	return append([]byte(nil), blob[off:off+l]...), off + l, nil
}

type blobError string

func (e blobError) Error() string { return string(e) }

const errShortBlob = blobError("cache: truncated blob")
