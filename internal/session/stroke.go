package session

import (
	"github.com/gofrs/uuid/v5"
	"github.com/oklog/ulid/v2"

	"github.com/paintroom/paintroom/internal/protocol"
)

type strokeKey struct {
	user  uuid.UUID
	layer string
}

// stroke is one open drawing state for a (user, layer) pair. Applied
// segments are buffered here and shipped to peers in batches on the flush
// tick rather than per move, bounding the relay rate regardless of pointer
// sampling rate.
type stroke struct {
	author  string
	pending []protocol.Segment
}

func (st *stroke) buffer(segs []protocol.Segment) {
	st.pending = append(st.pending, segs...)
}

// drain returns the buffered batch as a RemoteDraw, or false when there is
// nothing to flush. Batch tokens are monotonic per process, so receivers can
// spot redelivery.
func (st *stroke) drain(layer string) (protocol.RemoteDraw, bool) {
	if len(st.pending) == 0 {
		return protocol.RemoteDraw{}, false
	}
	out := protocol.RemoteDraw{
		Author:   st.author,
		Layer:    layer,
		Batch:    ulid.Make().String(),
		Segments: st.pending,
	}
	st.pending = nil
	return out, true
}
