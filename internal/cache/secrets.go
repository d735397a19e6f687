// Package cache implements the ZRTP retained-secrets cache (RFC 6189 §3/§6):
// a ZID-indexed record of rs1/rs2/auxsecret/pbxsecret, the
// previously-verified-SAS flag, and a last-used timestamp, persisted by
// the host through opaque load/store callbacks.
//
// Lifecycle events (load/update/reset) log through github.com/rs/zerolog
// for structured, leveled operational output; the protocol hot path
// elsewhere in this module uses the plain tag-scoped logger instead.
package cache

// Secrets is one peer's retained-secret record, keyed externally by ZID.
// A nil or empty byte slice means "not yet established"; every reader
// tests len() > 0.
type Secrets struct {
	RS1         []byte
	RS2         []byte
	AuxSecret   []byte
	PBXSecret   []byte
	SASVerified bool
	LastUsedMS  int64
}

// Rotate stores newRS1 (the retained secret the caller derived from this
// session's s0) as rs1 and demotes the previous rs1, if any, to rs2, per
// RFC 6189 §4.9's retained-secret rotation rule.
func (s *Secrets) Rotate(newRS1 []byte, nowMS int64) {
	if len(s.RS1) > 0 {
		s.RS2 = s.RS1
	}
	s.RS1 = newRS1
	s.LastUsedMS = nowMS
}

// Empty reports whether the peer has no retained secret yet (a fresh
// peer, or one whose cache entry was reset).
func (s *Secrets) Empty() bool {
	return s == nil || (len(s.RS1) == 0 && len(s.RS2) == 0)
}
