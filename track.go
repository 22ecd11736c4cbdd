// +build !js

package webrtc

import (
	"sync"

	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// TrackState is the lifecycle state of a Track.
type TrackState int

const (
	// TrackStateCreated is the initial state: the Track has been
	// negotiated but no SRTP path has been wired to it yet.
	TrackStateCreated TrackState = iota + 1

	// TrackStateOpen indicates the Track is wired to an SRTPTransport and
	// can send/receive.
	TrackStateOpen

	// TrackStateClosed is terminal; the Track rejects further reads/writes.
	TrackStateClosed
)

func (s TrackState) String() string {
	switch s {
	case TrackStateCreated:
		return "created"
	case TrackStateOpen:
		return "open"
	case TrackStateClosed:
		return "closed"
	default:
		return ErrUnknownType.Error()
	}
}

// MediaHandler receives demultiplexed RTP/RTCP traffic for a Track. Handlers
// run in registration order.
type MediaHandler interface {
	HandleRTP(track *Track, pkt *rtp.Packet)
	HandleRTCP(track *Track, pkts []rtcp.Packet)
}

// Track is a single media description: the SSRC/mid-addressable unit SDP
// negotiation produces and that SRTPTransport demultiplexes traffic onto.
// It holds no codec packetizer; callers write already-packetized RTP and
// register MediaHandlers to consume already-depacketized RTP.
type Track struct {
	mu sync.RWMutex

	id       string
	streamID string
	kind     RTPCodecType
	codec    RTPCodecParameters
	ssrc     SSRC
	mid      string

	direction RTPTransceiverDirection
	state     TrackState

	handlers []MediaHandler
	dropped  uint64

	writeRTP func(*rtp.Packet) (int, error)

	log logging.LeveledLogger
}

// NewTrack creates a Track in the Created state. It must be Open'd by the
// owning SRTPTransport before it can send or dispatch received packets.
func NewTrack(kind RTPCodecType, ssrc SSRC, id, streamID string, loggerFactory logging.LoggerFactory) *Track {
	return &Track{
		id:        id,
		streamID:  streamID,
		kind:      kind,
		ssrc:      ssrc,
		direction: RTPTransceiverDirectionSendrecv,
		state:     TrackStateCreated,
		log:       loggerFactory.NewLogger("track"),
	}
}

// ID is the unique identifier for this Track within a PeerConnection.
func (t *Track) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id
}

// Label is the MediaStream id (cname/msid) this Track is grouped under.
func (t *Track) Label() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.streamID
}

// Kind reports whether this is an audio or video Track.
func (t *Track) Kind() RTPCodecType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.kind
}

// SSRC is the synchronization source this Track demultiplexes on.
func (t *Track) SSRC() SSRC {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ssrc
}

// Codec returns the negotiated codec parameters for this Track.
func (t *Track) Codec() RTPCodecParameters {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.codec
}

// SetCodec records the codec negotiated for this Track's payload type.
func (t *Track) SetCodec(codec RTPCodecParameters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.codec = codec
}

// Mid is the SDP media identification tag assigned during negotiation.
func (t *Track) Mid() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mid
}

// SetMid assigns the SDP mid for this Track.
func (t *Track) SetMid(mid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mid = mid
}

// Direction returns the negotiated send/receive direction.
func (t *Track) Direction() RTPTransceiverDirection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.direction
}

// SetDirection updates the negotiated direction, e.g. after a renegotiation.
func (t *Track) SetDirection(d RTPTransceiverDirection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.direction = d
}

// State returns the Track's lifecycle state.
func (t *Track) State() TrackState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Open wires the Track to its SRTP write path and marks it ready for
// traffic. Called by SRTPTransport once the DTLS handshake completes.
func (t *Track) Open(writeRTP func(*rtp.Packet) (int, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeRTP = writeRTP
	t.state = TrackStateOpen
}

// Close moves the Track to the closed state. Further Write calls and
// dispatched packets are rejected.
func (t *Track) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = TrackStateClosed
	t.writeRTP = nil
}

// AddHandler appends a MediaHandler to the dispatch chain for inbound RTP
// and RTCP on this Track.
func (t *Track) AddHandler(h MediaHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, h)
}

// DroppedPackets reports how many packets this Track has rejected because
// its negotiated direction disallowed them.
func (t *Track) DroppedPackets() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dropped
}

// WriteRTP sends pkt over the Track's SRTP session. It fails with
// ErrTrackDirectionMismatch if the negotiated direction doesn't permit
// sending.
func (t *Track) WriteRTP(pkt *rtp.Packet) (int, error) {
	t.mu.RLock()
	direction := t.direction
	state := t.state
	write := t.writeRTP
	t.mu.RUnlock()

	if direction != RTPTransceiverDirectionSendrecv && direction != RTPTransceiverDirectionSendonly {
		t.mu.Lock()
		t.dropped++
		t.mu.Unlock()
		return 0, ErrTrackDirectionMismatch
	}
	if state != TrackStateOpen || write == nil {
		return 0, ErrDTLSNotEstablished
	}
	return write(pkt)
}

// dispatchRTP fans an inbound, already SRTP-decrypted packet out to the
// registered handler chain, enforcing the negotiated receive direction.
func (t *Track) dispatchRTP(pkt *rtp.Packet) {
	t.mu.RLock()
	direction := t.direction
	state := t.state
	handlers := t.handlers
	t.mu.RUnlock()

	if state != TrackStateOpen {
		return
	}
	if direction != RTPTransceiverDirectionSendrecv && direction != RTPTransceiverDirectionRecvonly {
		t.mu.Lock()
		t.dropped++
		t.mu.Unlock()
		return
	}
	for _, h := range handlers {
		h.HandleRTP(t, pkt)
	}
}

// dispatchRTCP fans an inbound RTCP compound packet's entries out to the
// handler chain.
func (t *Track) dispatchRTCP(pkts []rtcp.Packet) {
	t.mu.RLock()
	state := t.state
	handlers := t.handlers
	t.mu.RUnlock()

	if state != TrackStateOpen {
		return
	}
	for _, h := range handlers {
		h.HandleRTCP(t, pkts)
	}
}
