package zrtp

import (
	"github.com/lanikai/zrtp/internal/channel"
	"github.com/lanikai/zrtp/internal/zrtperror"
)

// newBoundChannel constructs the channel.Channel backing ssrc and, if
// this isn't the session's first channel, binds it to channel 0's
// already-negotiated quintuple (RFC 6189 §4.G). It does not register the
// result in ctx.channels/ctx.order; callers do that once construction
// succeeds.
func (ctx *Context) newBoundChannel(ssrc uint32) (ch *channel.Channel, multistream bool, err error) {
	zero := ctx.channelZero()
	multistream = zero != nil
	if multistream && zero.CurrentState() != channel.Secure {
		return nil, false, zrtperror.ErrChannelZeroNotSecure
	}

	var zrtpSess []byte
	if multistream {
		zrtpSess = zero.ZRTPSess()
	}

	ch = channel.NewChannel(
		ssrc, ctx.cfg.channelConfig(), ctx.backend, ctx.store,
		ctx.channelCallbacks(), multistream, zrtpSess, ctx.log,
	)
	if multistream {
		ch.BindMultistream(zero.NegotiatedQuintuple())
	}
	return ch, multistream, nil
}
