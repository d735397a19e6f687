package zrtpcrypto

// Zeroize overwrites buf with random bytes, then zero, before it is
// released. Spec §9: "Manual key zeroisation becomes a scoped-acquisition
// wrapper around every key buffer: on any exit path (including error) the
// buffer is overwritten with RNG output before release." Random-then-zero
// (rather than zero alone) avoids a pattern a compiler could plausibly
// elide as a dead store; RNGBytes failure just falls back to zero.
func Zeroize(b Backend, buf []byte) {
	if len(buf) == 0 {
		return
	}
	if r, err := b.RNGBytes(len(buf)); err == nil {
		copy(buf, r)
	}
	for i := range buf {
		buf[i] = 0
	}
}

// ZeroizeAll is a convenience for the common case of scrubbing several
// buffers gathered from one key-schedule step (RFC 6189 §4.E: "After s0 is
// consumed, all inputs (s1, s2, s3, DHResult) are overwritten with random
// bytes then freed.").
func ZeroizeAll(b Backend, bufs ...[]byte) {
	for _, buf := range bufs {
		Zeroize(b, buf)
	}
}
