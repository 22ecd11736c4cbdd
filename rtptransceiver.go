// +build !js

package webrtc

import "sync"

// RTPTransceiver pairs a sending and a receiving Track for a single
// negotiated media section (an "m=" line addressed by mid).
type RTPTransceiver struct {
	mu sync.RWMutex

	kind      RTPCodecType
	mid       string
	direction RTPTransceiverDirection
	sender    *Track
	receiver  *Track
	stopped   bool
}

func newRTPTransceiver(kind RTPCodecType, direction RTPTransceiverDirection) *RTPTransceiver {
	return &RTPTransceiver{
		kind:      kind,
		direction: direction,
	}
}

// Kind reports whether this transceiver's media section is audio or video.
func (t *RTPTransceiver) Kind() RTPCodecType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.kind
}

// Mid returns the SDP media identification tag, empty until negotiated.
func (t *RTPTransceiver) Mid() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mid
}

// SetMid assigns the SDP mid for this transceiver's media section.
func (t *RTPTransceiver) SetMid(mid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mid = mid
}

// Direction returns the transceiver's current negotiated direction.
func (t *RTPTransceiver) Direction() RTPTransceiverDirection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.direction
}

// SetDirection updates the negotiated direction, applying it to both the
// sender and receiver Track if present.
func (t *RTPTransceiver) SetDirection(d RTPTransceiverDirection) {
	t.mu.Lock()
	sender, receiver := t.sender, t.receiver
	t.direction = d
	t.mu.Unlock()

	if sender != nil {
		sender.SetDirection(d)
	}
	if receiver != nil {
		receiver.SetDirection(d)
	}
}

// Sender returns the local Track used to send on this transceiver, or nil.
func (t *RTPTransceiver) Sender() *Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sender
}

// SetSender attaches the local Track this transceiver sends with.
func (t *RTPTransceiver) SetSender(track *Track) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sender = track
}

// Receiver returns the remote Track this transceiver receives on, or nil
// until a remote description that opens a Track for its mid is applied.
func (t *RTPTransceiver) Receiver() *Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.receiver
}

// SetReceiver attaches the remote Track this transceiver receives from.
func (t *RTPTransceiver) SetReceiver(track *Track) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiver = track
}

// Stopped reports whether Stop has been called.
func (t *RTPTransceiver) Stopped() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stopped
}

// Stop irreversibly closes both the send and receive Track.
func (t *RTPTransceiver) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true
	if t.sender != nil {
		t.sender.Close()
	}
	if t.receiver != nil {
		t.receiver.Close()
	}
	return nil
}
