package algo

// Wire is a 4-byte, space-padded ASCII algorithm tag as carried in a Hello
// message's algorithm lists.
type Wire [4]byte

func wire(s string) Wire {
	var w Wire
	copy(w[:], s)
	for i := len(s); i < 4; i++ {
		w[i] = ' '
	}
	return w
}

func (w Wire) String() string { return string(w[:]) }

var hashToWire = map[Hash]Wire{
	HashS256: wire("S256"),
	HashS384: wire("S384"),
	HashS512: wire("S512"),
}

var wireToHash = invertHash(hashToWire)

func invertHash(m map[Hash]Wire) map[Wire]Hash {
	out := make(map[Wire]Hash, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func HashToWire(h Hash) (Wire, bool) { w, ok := hashToWire[h]; return w, ok }
func HashFromWire(w Wire) (Hash, bool) { h, ok := wireToHash[w]; return h, ok }

var cipherToWire = map[Cipher]Wire{
	CipherAES1: wire("AES1"),
	CipherAES2: wire("AES2"),
	CipherAES3: wire("AES3"),
}
var wireToCipher = invertCipher(cipherToWire)

func invertCipher(m map[Cipher]Wire) map[Wire]Cipher {
	out := make(map[Wire]Cipher, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func CipherToWire(c Cipher) (Wire, bool)   { w, ok := cipherToWire[c]; return w, ok }
func CipherFromWire(w Wire) (Cipher, bool) { c, ok := wireToCipher[w]; return c, ok }

var authTagToWire = map[AuthTag]Wire{
	AuthTagHS32: wire("HS32"),
	AuthTagHS80: wire("HS80"),
	AuthTagSK32: wire("SK32"),
	AuthTagSK80: wire("SK80"),
	AuthTagGCM:  wire("GCM "),
}
var wireToAuthTag = invertAuthTag(authTagToWire)

func invertAuthTag(m map[AuthTag]Wire) map[Wire]AuthTag {
	out := make(map[Wire]AuthTag, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func AuthTagToWire(a AuthTag) (Wire, bool)   { w, ok := authTagToWire[a]; return w, ok }
func AuthTagFromWire(w Wire) (AuthTag, bool) { a, ok := wireToAuthTag[w]; return a, ok }

var keyAgreementToWire = map[KeyAgreement]Wire{
	KeyAgreementDH2k:      wire("DH2k"),
	KeyAgreementDH3k:      wire("DH3k"),
	KeyAgreementEC25:      wire("EC25"),
	KeyAgreementEC38:      wire("EC38"),
	KeyAgreementEC52:      wire("EC52"),
	KeyAgreementK255:      wire("K255"),
	KeyAgreementK448:      wire("K448"),
	KeyAgreementKyber512:  wire("KYB1"),
	KeyAgreementKyber768:  wire("KYB2"),
	KeyAgreementKyber1024: wire("KYB3"),
	KeyAgreementHQC128:    wire("HQD1"),
	KeyAgreementHQC192:    wire("HQD2"),
	KeyAgreementHQC256:    wire("HQD3"),
	KeyAgreementX1K1:      wire("X1K1"),
	KeyAgreementX1H1:      wire("X1H1"),
	KeyAgreementX3K3:      wire("X3K3"),
	KeyAgreementX3H3:      wire("X3H3"),
	KeyAgreementXKR1:      wire("XKR1"),
	KeyAgreementXKR3:      wire("XKR3"),
	KeyAgreementMult:      wire("Mult"),
	KeyAgreementPrsh:      wire("Prsh"),
}

// legacyKeyAgreementFromWire holds Round-3-submission-era codepoints that
// must still decode to the current enum values for interop with older
// peers: accept both on the wire, but always encode the final name
// (keyAgreementToWire only has the final names).
var legacyKeyAgreementFromWire = map[Wire]KeyAgreement{
	wire("HQB1"): KeyAgreementHQC128,
	wire("HQB2"): KeyAgreementHQC192,
	wire("HQB3"): KeyAgreementHQC256,
	wire("XKQ1"): KeyAgreementXKR1,
	wire("XKQ3"): KeyAgreementXKR3,
}

var wireToKeyAgreement = buildKeyAgreementDecodeTable()

func buildKeyAgreementDecodeTable() map[Wire]KeyAgreement {
	out := make(map[Wire]KeyAgreement, len(keyAgreementToWire)+len(legacyKeyAgreementFromWire))
	for k, v := range keyAgreementToWire {
		out[v] = k
	}
	for w, k := range legacyKeyAgreementFromWire {
		out[w] = k
	}
	return out
}

func KeyAgreementToWire(k KeyAgreement) (Wire, bool)   { w, ok := keyAgreementToWire[k]; return w, ok }
func KeyAgreementFromWire(w Wire) (KeyAgreement, bool) { k, ok := wireToKeyAgreement[w]; return k, ok }

var sasToWire = map[SAS]Wire{
	SASBase32:  wire("B32 "),
	SASBase256: wire("B256"),
}
var wireToSAS = invertSAS(sasToWire)

func invertSAS(m map[SAS]Wire) map[Wire]SAS {
	out := make(map[Wire]SAS, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func SASToWire(s SAS) (Wire, bool)   { w, ok := sasToWire[s]; return w, ok }
func SASFromWire(w Wire) (SAS, bool) { s, ok := wireToSAS[w]; return s, ok }
