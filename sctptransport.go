package webrtc

import (
	"math"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/sctp"
	"github.com/rtccore/webrtc/pkg/rtcerr"
)

const sctpMaxChannels = uint16(65535)

// SCTPTransport carries every DataChannel for a PeerConnection over a
// single SCTP association established on top of the DTLS transport.
type SCTPTransport struct {
	lock sync.RWMutex

	dtlsTransport *DTLSTransport

	State SCTPTransportState

	port uint16

	// MaxMessageSize is the smaller of our local send capability and the
	// remote's advertised receive capability.
	MaxMessageSize uint32

	MaxChannels *uint16

	association *sctp.Association

	// proc is the owning PeerConnection's Processor. It is set once, before
	// the transport is started, and handed to every DataChannel this
	// transport opens or accepts so their OnOpen/OnClose/OnMessage/OnError/
	// OnBufferedAmountLow callbacks serialize with the PeerConnection's own
	// handlers instead of racing in ad hoc goroutines.
	proc *processor

	onDataChannelHandler func(*DataChannel)

	streams map[uint16]*sctpStream
	nextID  map[bool]uint16 // keyed by isInitiator: next free id of matching parity

	settings *SettingEngine
	log      logging.LeveledLogger
}

// sctpStream wraps one SCTP stream carrying both DCEP control messages
// (PPID 50) and application messages (PPID 51/53/56/57) for a single
// DataChannel.
type sctpStream struct {
	id        uint16
	stream    *sctp.Stream
	transport *SCTPTransport
	dc        *DataChannel
}

func newSCTPTransport(dtls *DTLSTransport, settings *SettingEngine, log logging.LeveledLogger) *SCTPTransport {
	r := &SCTPTransport{
		dtlsTransport: dtls,
		State:         SCTPTransportStateConnecting,
		port:          defaultSCTPPort,
		streams:       map[uint16]*sctpStream{},
		nextID:        map[bool]uint16{true: 0, false: 1},
		settings:      settings,
		log:           log,
	}
	r.updateMessageSize()
	r.updateMaxChannels()
	return r
}

// GetCapabilities returns the SCTPCapabilities of the SCTPTransport.
func (r *SCTPTransport) GetCapabilities() SCTPCapabilities {
	return SCTPCapabilities{MaxMessageSize: r.MaxMessageSize}
}

// Start establishes the SCTP association. Per RFC 8841, both sides issue
// a simultaneous INIT rather than one side waiting to accept — the DTLS
// role (client/server) that selected the transport key material has no
// bearing on which side speaks first at the SCTP layer.
func (r *SCTPTransport) Start(remoteCaps SCTPCapabilities) error {
	r.lock.Lock()
	if r.dtlsTransport == nil || r.dtlsTransport.conn == nil {
		r.lock.Unlock()
		return &rtcerr.StateError{Err: ErrDTLSNotEstablished}
	}
	conn := r.dtlsTransport.conn
	r.lock.Unlock()

	config := sctp.Config{
		NetConn:       conn,
		LoggerFactory: loggerFactoryFor(r.log),
	}

	assoc, err := sctp.Client(config)
	if err != nil {
		return &rtcerr.TransportError{Err: err}
	}

	r.lock.Lock()
	r.association = assoc
	r.State = SCTPTransportStateConnected
	if remoteCaps.MaxMessageSize != 0 {
		r.MaxMessageSize = uint32(r.calcMessageSize(float64(remoteCaps.MaxMessageSize), float64(r.MaxMessageSize)))
	}
	r.lock.Unlock()

	go r.acceptStreams()
	return nil
}

// Stop closes the SCTP association, tearing down every DataChannel.
func (r *SCTPTransport) Stop() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.association == nil {
		return nil
	}
	err := r.association.Close()
	r.association = nil
	r.State = SCTPTransportStateClosed
	return err
}

// allocateStreamID picks the next free stream id of the correct parity:
// even for the peer that created the offer, odd for the answerer.
func (r *SCTPTransport) allocateStreamID(isInitiator bool) (uint16, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	id := r.nextID[isInitiator]
	for {
		if id >= maxDataChannelStreamID {
			return 0, &rtcerr.ResourceError{Err: ErrMaxDataChannelID}
		}
		if _, used := r.streams[id]; !used {
			break
		}
		id += 2
	}
	r.nextID[isInitiator] = id + 2
	return id, nil
}

func (r *SCTPTransport) openStream(id uint16, ordered bool) (*sctpStream, error) {
	r.lock.RLock()
	assoc := r.association
	r.lock.RUnlock()
	if assoc == nil {
		return nil, &rtcerr.StateError{Err: ErrSCTPNotEstablished}
	}

	s, err := assoc.OpenStream(id, sctp.PayloadTypeWebRTCBinary)
	if err != nil {
		return nil, &rtcerr.TransportError{Err: err}
	}
	if ordered {
		s.SetReliabilityParams(false, sctp.ReliabilityTypeReliable, 0)
	} else {
		s.SetReliabilityParams(true, sctp.ReliabilityTypeReliable, 0)
	}

	stream := &sctpStream{id: id, stream: s, transport: r}
	r.lock.Lock()
	r.streams[id] = stream
	r.lock.Unlock()
	return stream, nil
}

func (r *SCTPTransport) remoteMaxMessageSize() uint64 {
	// widened to uint64 so a zero (unlimited) reads as huge, not zero
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.MaxMessageSize == 0 {
		return math.MaxUint64
	}
	return uint64(r.MaxMessageSize)
}

func (r *SCTPTransport) acceptStreams() {
	for {
		r.lock.RLock()
		assoc := r.association
		r.lock.RUnlock()
		if assoc == nil {
			return
		}

		s, err := assoc.AcceptStream()
		if err != nil {
			return
		}
		go r.acceptDataChannel(s)
	}
}

// acceptDataChannel reads the first message on a newly-accepted stream,
// which must be a DCEP OPEN, and constructs the matching DataChannel.
func (r *SCTPTransport) acceptDataChannel(s *sctp.Stream) {
	buf := make([]byte, 4096)
	n, ppi, err := s.ReadSCTP(buf)
	if err != nil || ppi != sctp.PayloadTypeWebRTCDCEP {
		return
	}
	open, err := parseDCEPOpen(buf[:n])
	if err != nil {
		return
	}

	ordered, maxRetransmits, maxPacketLifeTime := reliabilityFromChannelType(open.ChannelType, open.Reliability)
	id := s.StreamIdentifier()

	dc := &DataChannel{
		id:                &id,
		label:             open.Label,
		ordered:           ordered,
		maxPacketLifeTime: maxPacketLifeTime,
		maxRetransmits:    maxRetransmits,
		protocol:          open.Protocol,
		readyState:        DataChannelStateOpen,
		proc:              r.proc,
		sctpTransport:     r,
	}

	stream := &sctpStream{id: id, stream: s, transport: r, dc: dc}
	dc.stream = stream

	r.lock.Lock()
	r.streams[id] = stream
	r.lock.Unlock()

	if err := stream.writeControl(dcepAck()); err != nil {
		return
	}

	<-r.onDataChannel(dc)
	dc.onOpen()
	go dc.readLoop()
}

// OnDataChannel sets an event handler invoked when the remote peer opens
// a new DataChannel.
func (r *SCTPTransport) OnDataChannel(f func(*DataChannel)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.onDataChannelHandler = f
}

func (r *SCTPTransport) onDataChannel(dc *DataChannel) (done chan struct{}) {
	r.lock.RLock()
	hdlr := r.onDataChannelHandler
	r.lock.RUnlock()

	done = make(chan struct{})
	if hdlr == nil {
		close(done)
		return
	}
	go func() {
		hdlr(dc)
		close(done)
	}()
	return
}

func (r *SCTPTransport) updateMessageSize() {
	r.MaxMessageSize = uint32(r.calcMessageSize(0, float64(defaultMaxMessageSize)))
}

func (r *SCTPTransport) calcMessageSize(remoteMaxMessageSize, canSendSize float64) float64 {
	switch {
	case remoteMaxMessageSize == 0 && canSendSize == 0:
		return math.Inf(1)
	case remoteMaxMessageSize == 0:
		return canSendSize
	case canSendSize == 0:
		return remoteMaxMessageSize
	case canSendSize > remoteMaxMessageSize:
		return remoteMaxMessageSize
	default:
		return canSendSize
	}
}

func (r *SCTPTransport) updateMaxChannels() {
	val := sctpMaxChannels
	r.MaxChannels = &val
}

// write and read on sctpStream translate between the application/control
// PPID split and the single byte stream sctp.Stream exposes.

func (s *sctpStream) write(data []byte, isString bool) error {
	ppi := sctp.PayloadTypeWebRTCBinary
	if isString {
		ppi = sctp.PayloadTypeWebRTCString
	}
	if len(data) == 0 {
		ppi = sctp.PayloadTypeWebRTCBinaryEmpty
		if isString {
			ppi = sctp.PayloadTypeWebRTCStringEmpty
		}
		data = []byte{0}
	}
	_, err := s.stream.WriteSCTP(data, ppi)
	return err
}

func (s *sctpStream) writeControl(data []byte) error {
	_, err := s.stream.WriteSCTP(data, sctp.PayloadTypeWebRTCDCEP)
	return err
}

func (s *sctpStream) read() (data []byte, isString bool, err error) {
	buf := make([]byte, receiveMTU)
	for {
		n, ppi, rerr := s.stream.ReadSCTP(buf)
		if rerr != nil {
			return nil, false, rerr
		}
		switch ppi {
		case sctp.PayloadTypeWebRTCDCEP:
			if s.dc != nil {
				s.dc.handleControl(buf[:n])
			}
			continue
		case sctp.PayloadTypeWebRTCString, sctp.PayloadTypeWebRTCStringEmpty:
			return append([]byte{}, buf[:n]...), true, nil
		default:
			return append([]byte{}, buf[:n]...), false, nil
		}
	}
}

func (s *sctpStream) reset() error {
	return s.stream.Close()
}

func loggerFactoryFor(l logging.LeveledLogger) logging.LoggerFactory {
	return &singleLoggerFactory{l}
}

type singleLoggerFactory struct{ l logging.LeveledLogger }

func (f *singleLoggerFactory) NewLogger(string) logging.LeveledLogger { return f.l }
