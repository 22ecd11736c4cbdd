// +build !js

package webrtc

import (
	"fmt"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/srtp/v3"
	"github.com/rtccore/webrtc/pkg/rtcerr"
)

// SRTPTransport demultiplexes SRTP/SRTCP traffic carried over a
// DTLSTransport onto individual Tracks by SSRC. It does not set a DSCP code
// point on outbound packets.
type SRTPTransport struct {
	mu sync.RWMutex

	dtlsTransport *DTLSTransport

	tracksBySSRC map[SSRC]*Track
	tracksByMid  map[string]*Track

	writeStream *srtp.WriteStreamSRTP

	closed bool

	log logging.LeveledLogger
}

// NewSRTPTransport creates an SRTPTransport bound to dtlsTransport. It does
// not open any SRTP session until Start is called.
func NewSRTPTransport(dtlsTransport *DTLSTransport, loggerFactory logging.LoggerFactory) *SRTPTransport {
	return &SRTPTransport{
		dtlsTransport: dtlsTransport,
		tracksBySSRC:  map[SSRC]*Track{},
		tracksByMid:   map[string]*Track{},
		log:           loggerFactory.NewLogger("srtp"),
	}
}

// AddTrack registers track for inbound dispatch by SSRC/mid and, if the
// SRTP session is already established, opens its outbound write path.
func (s *SRTPTransport) AddTrack(track *Track) error {
	s.mu.Lock()
	s.tracksBySSRC[track.SSRC()] = track
	if mid := track.Mid(); mid != "" {
		s.tracksByMid[mid] = track
	}
	writeStream := s.writeStream
	s.mu.Unlock()

	if writeStream != nil {
		track.Open(s.writeFunc(track))
	}
	return nil
}

// RemoveTrack stops dispatching to track and closes it.
func (s *SRTPTransport) RemoveTrack(track *Track) {
	s.mu.Lock()
	delete(s.tracksBySSRC, track.SSRC())
	if mid := track.Mid(); mid != "" {
		delete(s.tracksByMid, mid)
	}
	s.mu.Unlock()
	track.Close()
}

// Start opens the SRTP/SRTCP sessions from the underlying DTLS connection's
// exported keying material and begins the per-SSRC read loops for every
// currently registered Track. Further AddTrack calls open their write path
// immediately.
func (s *SRTPTransport) Start() error {
	srtpSession, err := s.dtlsTransport.getSRTPSession()
	if err != nil {
		return &rtcerr.TransportError{Err: fmt.Errorf("srtp session: %w", err)}
	}
	srtcpSession, err := s.dtlsTransport.getSRTCPSession()
	if err != nil {
		return &rtcerr.TransportError{Err: fmt.Errorf("srtcp session: %w", err)}
	}

	writeStream, err := srtpSession.OpenWriteStream()
	if err != nil {
		return &rtcerr.TransportError{Err: err}
	}

	s.mu.Lock()
	s.writeStream = writeStream
	tracks := make([]*Track, 0, len(s.tracksBySSRC))
	for _, track := range s.tracksBySSRC {
		tracks = append(tracks, track)
	}
	s.mu.Unlock()

	for _, track := range tracks {
		track.Open(s.writeFunc(track))
		if err := s.startReadLoop(track, srtpSession, srtcpSession); err != nil {
			return err
		}
	}

	return nil
}

// OpenRemoteTrack begins demultiplexing inbound RTP/RTCP for an SSRC seen on
// the wire that wasn't declared by a prior AddTrack call (e.g. the first
// packet of a newly negotiated remote Track). It returns the Track created
// for it.
func (s *SRTPTransport) OpenRemoteTrack(kind RTPCodecType, ssrc SSRC, mid, streamID string, loggerFactory logging.LoggerFactory) (*Track, error) {
	s.mu.Lock()
	if track, ok := s.tracksBySSRC[ssrc]; ok {
		s.mu.Unlock()
		return track, nil
	}
	track := NewTrack(kind, ssrc, fmt.Sprintf("%d", ssrc), streamID, loggerFactory)
	track.SetMid(mid)
	track.SetDirection(RTPTransceiverDirectionRecvonly)
	s.tracksBySSRC[ssrc] = track
	if mid != "" {
		s.tracksByMid[mid] = track
	}
	s.mu.Unlock()

	srtpSession, err := s.dtlsTransport.getSRTPSession()
	if err != nil {
		return nil, &rtcerr.TransportError{Err: err}
	}
	srtcpSession, err := s.dtlsTransport.getSRTCPSession()
	if err != nil {
		return nil, &rtcerr.TransportError{Err: err}
	}
	track.Open(s.writeFunc(track))
	if err := s.startReadLoop(track, srtpSession, srtcpSession); err != nil {
		return nil, err
	}
	return track, nil
}

func (s *SRTPTransport) writeFunc(track *Track) func(*rtp.Packet) (int, error) {
	return func(pkt *rtp.Packet) (int, error) {
		s.mu.RLock()
		writeStream := s.writeStream
		s.mu.RUnlock()
		if writeStream == nil {
			return 0, &rtcerr.StateError{Err: ErrDTLSNotEstablished}
		}
		raw, err := pkt.Marshal()
		if err != nil {
			return 0, err
		}
		return writeStream.Write(raw)
	}
}

func (s *SRTPTransport) startReadLoop(track *Track, srtpSession *srtp.SessionSRTP, srtcpSession *srtp.SessionSRTCP) error {
	rtpReadStream, err := srtpSession.OpenReadStream(uint32(track.SSRC()))
	if err != nil {
		return &rtcerr.TransportError{Err: err}
	}
	rtcpReadStream, err := srtcpSession.OpenReadStream(uint32(track.SSRC()))
	if err != nil {
		return &rtcerr.TransportError{Err: err}
	}

	go s.readRTP(track, rtpReadStream)
	go s.readRTCP(track, rtcpReadStream)
	return nil
}

func (s *SRTPTransport) readRTP(track *Track, stream *srtp.ReadStreamSRTP) {
	buf := make([]byte, receiveMTU)
	for {
		n, err := stream.Read(buf)
		if err != nil {
			return
		}

		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			s.log.Warnf("discarding malformed RTP packet on ssrc %d: %s", track.SSRC(), err)
			continue
		}
		track.dispatchRTP(pkt)
	}
}

func (s *SRTPTransport) readRTCP(track *Track, stream *srtp.ReadStreamSRTCP) {
	buf := make([]byte, receiveMTU)
	for {
		n, err := stream.Read(buf)
		if err != nil {
			return
		}

		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			s.log.Warnf("discarding malformed RTCP compound packet on ssrc %d: %s", track.SSRC(), err)
			continue
		}
		track.dispatchRTCP(pkts)
	}
}

// WriteRTCP sends an RTCP compound packet, used for receiver reports and PLI/NACK feedback generated outside the media
// handler chain.
func (s *SRTPTransport) WriteRTCP(pkts []rtcp.Packet) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return &rtcerr.StateError{Err: ErrDTLSNotEstablished}
	}

	srtcpSession, err := s.dtlsTransport.getSRTCPSession()
	if err != nil {
		return &rtcerr.TransportError{Err: err}
	}

	raw, err := rtcp.Marshal(pkts)
	if err != nil {
		return err
	}

	writeStream, err := srtcpSession.OpenWriteStream()
	if err != nil {
		return &rtcerr.TransportError{Err: err}
	}
	_, err = writeStream.Write(raw)
	return err
}

// TrackByMid looks up a registered Track by its negotiated SDP mid.
func (s *SRTPTransport) TrackByMid(mid string) *Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracksByMid[mid]
}

// Close releases all Tracks registered on this transport. The underlying
// DTLSTransport/SRTP session is owned and closed separately.
func (s *SRTPTransport) Close() error {
	s.mu.Lock()
	s.closed = true
	tracks := make([]*Track, 0, len(s.tracksBySSRC))
	for _, track := range s.tracksBySSRC {
		tracks = append(tracks, track)
	}
	s.tracksBySSRC = map[SSRC]*Track{}
	s.tracksByMid = map[string]*Track{}
	s.mu.Unlock()

	for _, track := range tracks {
		track.Close()
	}
	return nil
}
