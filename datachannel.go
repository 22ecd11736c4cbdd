package webrtc

import (
	"sync"
	"sync/atomic"

	"github.com/pion/logging"
	"github.com/rtccore/webrtc/message"
	"github.com/rtccore/webrtc/pkg/rtcerr"
)

// DataChannel represents a label-identified, bidirectional data channel
// between two peers running over a single SCTP stream.
type DataChannel struct {
	mu sync.RWMutex

	label                      string
	ordered                    bool
	maxPacketLifeTime          *uint16
	maxRetransmits             *uint16
	protocol                   string
	negotiated                 bool
	id                         *uint16
	readyState                 DataChannelState
	bufferedAmountLowThreshold uint64

	onMessageHandler    func(DataChannelMessage)
	onOpenHandler       func()
	onCloseHandler      func()
	onErrorHandler      func(error)
	onBufferedAmountLow func()

	sctpTransport *SCTPTransport
	stream        *sctpStream

	// proc is the owning PeerConnection's Processor. Every callback below
	// runs through it so it observes DataChannel events in the same total
	// order as the PeerConnection's own SDP- and ICE-driven state changes.
	proc *processor

	sendQueue *message.Queue

	log logging.LeveledLogger
}

// DataChannelMessage is delivered to OnMessage.
type DataChannelMessage struct {
	Data     []byte
	IsString bool
}

// DataChannelInit mirrors RTCDataChannelInit.
type DataChannelInit struct {
	Ordered           *bool
	MaxPacketLifeTime *uint16
	MaxRetransmits    *uint16
	Protocol          *string
	Negotiated        *bool
	ID                *uint16
	Priority          *PriorityType
}

func newDataChannel(label string, init *DataChannelInit, proc *processor, log logging.LeveledLogger) (*DataChannel, error) {
	d := &DataChannel{
		label:      label,
		ordered:    true,
		readyState: DataChannelStateConnecting,
		proc:       proc,
		sendQueue:  message.NewQueue(0),
		log:        log,
	}

	if init != nil {
		if init.Ordered != nil {
			d.ordered = *init.Ordered
		}
		if init.MaxPacketLifeTime != nil && init.MaxRetransmits != nil {
			return nil, &rtcerr.ConfigurationError{Err: ErrRetransmitsOrPacketLifeTime}
		}
		d.maxPacketLifeTime = init.MaxPacketLifeTime
		d.maxRetransmits = init.MaxRetransmits
		if init.Protocol != nil {
			d.protocol = *init.Protocol
		}
		if init.Negotiated != nil {
			d.negotiated = *init.Negotiated
		}
		if init.ID != nil {
			if *init.ID == reservedDataChannelID {
				return nil, &rtcerr.ConfigurationError{Err: ErrReservedChannelID}
			}
			d.id = init.ID
		}
	}

	return d, nil
}

// enqueue runs j on the owning PeerConnection's Processor so it serializes
// with every other externally-triggered handler. A DataChannel constructed
// without one (as in unit tests that exercise the channel in isolation)
// falls back to its own goroutine per callback.
func (d *DataChannel) enqueue(j job) {
	if d.proc != nil {
		d.proc.Enqueue(j)
		return
	}
	go j()
}

// OnOpen sets an event handler which is invoked when the underlying data
// transport has been established (or re-established).
func (d *DataChannel) OnOpen(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onOpenHandler = f
}

func (d *DataChannel) onOpen() {
	d.mu.RLock()
	hdlr := d.onOpenHandler
	d.mu.RUnlock()
	if hdlr != nil {
		d.enqueue(hdlr)
	}
}

// OnClose sets an event handler which is invoked when the channel's
// underlying data transport has been closed.
func (d *DataChannel) OnClose(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onCloseHandler = f
}

func (d *DataChannel) onClose() {
	d.mu.RLock()
	hdlr := d.onCloseHandler
	d.mu.RUnlock()
	if hdlr != nil {
		d.enqueue(hdlr)
	}
}

// OnMessage sets an event handler which is invoked on every incoming
// message.
func (d *DataChannel) OnMessage(f func(DataChannelMessage)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onMessageHandler = f
}

func (d *DataChannel) onMessage(msg DataChannelMessage) {
	d.mu.RLock()
	hdlr := d.onMessageHandler
	d.mu.RUnlock()
	if hdlr != nil {
		d.enqueue(func() { hdlr(msg) })
	}
}

// OnError sets an event handler invoked when a transport-level error
// terminates the channel.
func (d *DataChannel) OnError(f func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onErrorHandler = f
}

func (d *DataChannel) onError(err error) {
	d.mu.RLock()
	hdlr := d.onErrorHandler
	d.mu.RUnlock()
	if hdlr != nil {
		d.enqueue(func() { hdlr(err) })
	}
}

// OnBufferedAmountLow sets an event handler invoked once BufferedAmount
// crosses back below BufferedAmountLowThreshold on a decrement. It never
// fires spuriously on an increment.
func (d *DataChannel) OnBufferedAmountLow(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onBufferedAmountLow = f
}

// SetBufferedAmountLowThreshold sets the threshold, in bytes, under which
// OnBufferedAmountLow fires.
func (d *DataChannel) SetBufferedAmountLowThreshold(threshold uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bufferedAmountLowThreshold = threshold
}

// BufferedAmount returns the number of bytes queued to be sent that have
// not yet left the local buffer for the wire.
func (d *DataChannel) BufferedAmount() uint64 {
	return d.sendQueue.Size()
}

// BufferedAmountLowThreshold returns the currently configured threshold.
func (d *DataChannel) BufferedAmountLowThreshold() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bufferedAmountLowThreshold
}

// ReadyState returns the channel's current state.
func (d *DataChannel) ReadyState() DataChannelState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readyState
}

func (d *DataChannel) setReadyState(s DataChannelState) {
	d.mu.Lock()
	d.readyState = s
	d.mu.Unlock()
}

// Label returns the channel's label, assigned at creation.
func (d *DataChannel) Label() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.label
}

// ID returns the channel's SCTP stream id, or nil before negotiation has
// assigned one.
func (d *DataChannel) ID() *uint16 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// open binds the channel to an established SCTP transport and, unless
// negotiated out-of-band, exchanges the DCEP OPEN/ACK handshake.
func (d *DataChannel) open(sctpTransport *SCTPTransport, isInitiator bool) error {
	d.mu.Lock()
	d.sctpTransport = sctpTransport
	id := d.id
	ordered := d.ordered
	maxRetransmits := d.maxRetransmits
	maxPacketLifeTime := d.maxPacketLifeTime
	protocol := d.protocol
	label := d.label
	negotiated := d.negotiated
	d.mu.Unlock()

	if id == nil {
		allocated, err := sctpTransport.allocateStreamID(isInitiator)
		if err != nil {
			return err
		}
		id = &allocated
		d.mu.Lock()
		d.id = id
		d.mu.Unlock()
	}

	stream, err := sctpTransport.openStream(*id, ordered)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.stream = stream
	d.mu.Unlock()

	if !negotiated && isInitiator {
		channelType, reliability := channelTypeFor(ordered, maxRetransmits, maxPacketLifeTime)
		msg := (&dcepOpen{
			ChannelType: channelType,
			Reliability: reliability,
			Label:       label,
			Protocol:    protocol,
		}).marshal()
		if err := stream.writeControl(msg); err != nil {
			return err
		}
		// readyState flips to Open only once the remote ACKs; see
		// handleControl.
		go d.readLoop()
		return nil
	}

	d.setReadyState(DataChannelStateOpen)
	d.onOpen()
	go d.readLoop()
	return nil
}

// handleControl processes an inbound DCEP message (PPID 50) for this
// channel's stream.
func (d *DataChannel) handleControl(b []byte) {
	if len(b) == 0 {
		return
	}
	switch b[0] {
	case dcepMessageTypeAck:
		d.setReadyState(DataChannelStateOpen)
		d.onOpen()
	case dcepMessageTypeOpen:
		// Only relevant on the accepting side; acceptDataChannel already
		// consumed the OPEN to construct this DataChannel, so a repeat
		// delivery here is a protocol violation and is ignored.
	}
}

func (d *DataChannel) readLoop() {
	for {
		data, isString, err := d.stream.read()
		if err != nil {
			d.setReadyState(DataChannelStateClosed)
			d.onClose()
			return
		}
		d.onMessage(DataChannelMessage{Data: data, IsString: isString})
	}
}

// Send sends binary data. An error is returned without queuing if the
// message exceeds the remote's advertised max-message-size.
func (d *DataChannel) Send(data []byte) error {
	return d.send(data, false)
}

// SendText sends a UTF-8 string.
func (d *DataChannel) SendText(s string) error {
	return d.send([]byte(s), true)
}

func (d *DataChannel) send(data []byte, isString bool) error {
	d.mu.RLock()
	stream := d.stream
	state := d.readyState
	d.mu.RUnlock()

	if state != DataChannelStateOpen || stream == nil {
		return &rtcerr.StateError{Err: ErrDataChannelNotOpen}
	}
	if uint64(len(data)) > stream.transport.remoteMaxMessageSize() {
		return &rtcerr.ResourceError{Err: ErrMessageTooLarge}
	}

	if !d.sendQueue.Push(message.Message{Data: data}) {
		return &rtcerr.ResourceError{Err: ErrMessageTooLarge}
	}

	defer func() {
		before := d.BufferedAmount()
		d.sendQueue.Pop()
		d.checkBufferedAmountLow(before)
	}()

	return stream.write(data, isString)
}

// checkBufferedAmountLow fires OnBufferedAmountLow only when the buffered
// amount has just dropped from above the threshold to at or below it.
func (d *DataChannel) checkBufferedAmountLow(before uint64) {
	d.mu.RLock()
	threshold := d.bufferedAmountLowThreshold
	hdlr := d.onBufferedAmountLow
	d.mu.RUnlock()

	if hdlr != nil && before > threshold && d.BufferedAmount() <= threshold {
		d.enqueue(hdlr)
	}
}

// Close closes the channel by requesting an SCTP stream reset (RFC 6525).
// It is idempotent.
func (d *DataChannel) Close() error {
	d.mu.Lock()
	if d.readyState == DataChannelStateClosing || d.readyState == DataChannelStateClosed {
		d.mu.Unlock()
		return nil
	}
	d.readyState = DataChannelStateClosing
	stream := d.stream
	d.mu.Unlock()

	if stream != nil {
		return stream.reset()
	}
	return nil
}

var dataChannelIDCounter uint64

func nextEphemeralID() uint16 {
	return uint16(atomic.AddUint64(&dataChannelIDCounter, 1))
}
