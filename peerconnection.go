// +build !js

package webrtc

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/ice/v4"
	"github.com/pion/logging"
	"github.com/pion/sdp/v3"
	"github.com/rtccore/webrtc/internal/util"
	"github.com/rtccore/webrtc/pkg/rtcerr"
)

// PeerConnection represents a WebRTC connection between the local peer and
// a remote peer. It drives the ICE -> DTLS -> {SCTP, SRTP} transport stack
// through offer/answer negotiation and exposes DataChannels and media Tracks
// once the stack is up.
type PeerConnection struct {
	mu sync.RWMutex

	configuration Configuration
	api           *API

	iceGatherer   *ICEGatherer
	iceTransport  *ICETransport
	dtlsTransport *DTLSTransport
	sctpTransport *SCTPTransport
	srtpTransport *SRTPTransport

	transceivers []*RTPTransceiver

	// pendingDataChannels holds channels created before the SCTP stream
	// allocator's isInitiator parity is known; they are opened in a batch
	// from openPendingDataChannels once the DTLS role resolves.
	pendingDataChannels []*DataChannel
	openedDataChannels  []*DataChannel

	currentLocalDescription  *SessionDescription
	currentRemoteDescription *SessionDescription
	pendingLocalDescription  *SessionDescription
	pendingRemoteDescription *SessionDescription

	signalingState     SignalingState
	iceConnectionState ICEConnectionState
	iceGatheringState  ICEGatheringState
	connectionState    PeerConnectionState

	isOfferer    bool
	transportsUp bool

	isClosed atomic.Bool

	// ops is the Processor every externally-triggered handler below runs
	// through, so a caller's On* callbacks observe state changes in the
	// order they happened and never run concurrently with each other.
	ops *processor

	onSignalingStateChangeHdlr     func(SignalingState)
	onICEConnectionStateChangeHdlr func(ICEConnectionState)
	onConnectionStateChangeHdlr    func(PeerConnectionState)
	onTrackHdlr                    func(*Track, *RTPTransceiver)
	onDataChannelHdlr              func(*DataChannel)
	onICECandidateHdlr             func(*ICECandidate)
	onNegotiationNeededHdlr        func()

	log logging.LeveledLogger
}

// NewPeerConnection creates a PeerConnection with the default API (no
// custom MediaEngine or SettingEngine).
func NewPeerConnection(configuration Configuration) (*PeerConnection, error) {
	return NewAPI().NewPeerConnection(configuration)
}

// NewPeerConnection creates a new PeerConnection using api's MediaEngine and
// SettingEngine.
func (api *API) NewPeerConnection(configuration Configuration) (*PeerConnection, error) {
	if err := api.mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	pc := &PeerConnection{
		configuration:      configuration,
		api:                api,
		signalingState:     SignalingStateStable,
		iceConnectionState: ICEConnectionStateNew,
		iceGatheringState:  ICEGatheringStateNew,
		connectionState:    PeerConnectionStateNew,
		log:                api.settingEngine.LoggerFactory.NewLogger("peerconnection"),
	}
	pc.ops = newProcessor(pc.onNegotiationNeeded)

	if err := pc.initTransports(); err != nil {
		return nil, err
	}

	return pc, nil
}

// initTransports builds the ICEGatherer/ICETransport/DTLSTransport/
// SCTPTransport/SRTPTransport chain. They sit idle (ICE in "new", DTLS in
// "new") until SetLocalDescription/SetRemoteDescription completes the
// offer/answer exchange and calls maybeStartTransports.
func (pc *PeerConnection) initTransports() error {
	gatherer, err := pc.api.NewICEGatherer(ICEGatherOptions{
		ICEServers:           pc.configuration.ICEServers,
		ICEGatherPolicy:      pc.configuration.ICETransportPolicy,
		ICECandidatePoolSize: pc.configuration.ICECandidatePoolSize,
	})
	if err != nil {
		return err
	}
	pc.iceGatherer = gatherer

	iceTransport := pc.api.NewICETransport(gatherer)
	iceTransport.OnConnectionStateChange(pc.onICEStateChange)
	pc.iceTransport = iceTransport

	dtlsTransport, err := pc.api.NewDTLSTransport(iceTransport, pc.configuration.Certificates)
	if err != nil {
		return err
	}
	dtlsTransport.OnStateChange(pc.onDTLSStateChange)
	pc.dtlsTransport = dtlsTransport

	pc.sctpTransport = pc.api.NewSCTPTransport(dtlsTransport)
	pc.sctpTransport.proc = pc.ops
	pc.sctpTransport.OnDataChannel(pc.onRemoteDataChannel)

	pc.srtpTransport = NewSRTPTransport(dtlsTransport, pc.api.settingEngine.LoggerFactory)

	return nil
}

// ---------------------------------------------------------------------
// Event handler registration
// ---------------------------------------------------------------------

// OnSignalingStateChange sets a handler invoked on every signaling state
// transition.
func (pc *PeerConnection) OnSignalingStateChange(f func(SignalingState)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onSignalingStateChangeHdlr = f
}

// OnICEConnectionStateChange sets a handler invoked whenever the aggregate
// ICE connection state changes.
func (pc *PeerConnection) OnICEConnectionStateChange(f func(ICEConnectionState)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onICEConnectionStateChangeHdlr = f
}

// OnConnectionStateChange sets a handler invoked whenever the aggregate
// connection state changes.
func (pc *PeerConnection) OnConnectionStateChange(f func(PeerConnectionState)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onConnectionStateChangeHdlr = f
}

// OnTrack sets a handler invoked when applying a remote description opens a
// remote Track on a transceiver, i.e. for each SSRC of a media section the
// remote peer sends on. It fires before any media has arrived.
func (pc *PeerConnection) OnTrack(f func(*Track, *RTPTransceiver)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onTrackHdlr = f
}

// OnDataChannel sets a handler invoked when the remote peer opens a new
// DataChannel.
func (pc *PeerConnection) OnDataChannel(f func(*DataChannel)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onDataChannelHdlr = f
}

// OnICECandidate stores a handler for local ICE candidates. The handler is
// never invoked: local candidates are only carried in the descriptions
// returned by CreateOffer and CreateAnswer.
func (pc *PeerConnection) OnICECandidate(f func(*ICECandidate)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onICECandidateHdlr = f
}

// OnNegotiationNeeded sets a handler invoked once the operations queue goes
// idle with the negotiation-needed flag set: a new Track (AddTrack) or
// DataChannel (CreateDataChannel) was added since the last stable
// offer/answer.
func (pc *PeerConnection) OnNegotiationNeeded(f func()) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onNegotiationNeededHdlr = f
}

// onNegotiationNeeded is called by the processor's own worker goroutine once
// it drains with the negotiation-needed flag set, so it runs serialized with
// every other handler below rather than needing its own dispatch.
func (pc *PeerConnection) onNegotiationNeeded() {
	pc.mu.RLock()
	hdlr := pc.onNegotiationNeededHdlr
	pc.mu.RUnlock()
	if hdlr != nil {
		hdlr()
	}
}

// scheduleNegotiationNeeded flags that onNegotiationNeeded should fire once
// the processor next drains: a new Track or DataChannel was added since the
// last stable offer/answer.
func (pc *PeerConnection) scheduleNegotiationNeeded() {
	pc.ops.ScheduleNegotiationNeeded()
}

// ---------------------------------------------------------------------
// State accessors
// ---------------------------------------------------------------------

// SignalingState returns the current signaling state.
func (pc *PeerConnection) SignalingState() SignalingState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.signalingState
}

// ICEConnectionState returns the aggregate ICE connection state.
func (pc *PeerConnection) ICEConnectionState() ICEConnectionState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.iceConnectionState
}

// ICEGatheringState returns the current ICE gathering state.
func (pc *PeerConnection) ICEGatheringState() ICEGatheringState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.iceGatheringState
}

// ConnectionState returns the aggregate connection state.
func (pc *PeerConnection) ConnectionState() PeerConnectionState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.connectionState
}

// LocalDescription returns the last successfully applied local description,
// falling back to a pending one if no current one exists yet.
func (pc *PeerConnection) LocalDescription() *SessionDescription {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.currentLocalDescription != nil {
		return pc.currentLocalDescription
	}
	return pc.pendingLocalDescription
}

// RemoteDescription returns the last successfully applied remote
// description, falling back to a pending one if no current one exists yet.
func (pc *PeerConnection) RemoteDescription() *SessionDescription {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.currentRemoteDescription != nil {
		return pc.currentRemoteDescription
	}
	return pc.pendingRemoteDescription
}

// SCTP returns the SCTPTransport carrying this connection's DataChannels.
func (pc *PeerConnection) SCTP() *SCTPTransport {
	return pc.sctpTransport
}

// ---------------------------------------------------------------------
// Track / transceiver management
// ---------------------------------------------------------------------

// AddTrack creates a new sendrecv RTPTransceiver carrying track and flags
// negotiation as needed.
func (pc *PeerConnection) AddTrack(track *Track) (*RTPTransceiver, error) {
	if pc.isClosed.Load() {
		return nil, &rtcerr.StateError{Err: ErrConnectionClosed}
	}

	t := newRTPTransceiver(track.Kind(), RTPTransceiverDirectionSendrecv)
	t.SetSender(track)

	pc.mu.Lock()
	pc.transceivers = append(pc.transceivers, t)
	pc.mu.Unlock()

	if err := pc.srtpTransport.AddTrack(track); err != nil {
		return nil, err
	}

	pc.scheduleNegotiationNeeded()
	return t, nil
}

// ---------------------------------------------------------------------
// DataChannel management
// ---------------------------------------------------------------------

// CreateDataChannel creates a new DataChannel. If the SCTP association is
// already established, the channel is opened immediately; otherwise it is
// deferred until SetLocalDescription/SetRemoteDescription completes the
// handshake and the DTLS role (and therefore the stream-id parity this side
// must allocate from) is known.
func (pc *PeerConnection) CreateDataChannel(label string, options *DataChannelInit) (*DataChannel, error) {
	if pc.isClosed.Load() {
		return nil, &rtcerr.StateError{Err: ErrConnectionClosed}
	}

	dc, err := newDataChannel(label, options, pc.ops, pc.api.settingEngine.LoggerFactory.NewLogger("datachannel"))
	if err != nil {
		return nil, err
	}

	pc.mu.Lock()
	established := pc.sctpTransport.State == SCTPTransportStateConnected
	if established {
		pc.openedDataChannels = append(pc.openedDataChannels, dc)
	} else {
		pc.pendingDataChannels = append(pc.pendingDataChannels, dc)
	}
	pc.mu.Unlock()

	if established {
		isInitiator := pc.dtlsTransport.role() == DTLSRoleClient
		if err := dc.open(pc.sctpTransport, isInitiator); err != nil {
			return nil, err
		}
	}

	pc.scheduleNegotiationNeeded()
	return dc, nil
}

// openPendingDataChannels drains pendingDataChannels once the SCTP
// association (and therefore the resolved DTLS role) is available. It
// realizes create-time stream-id parity assignment by deferring allocation
// to this single point, where the role is already final, rather than
// guessing a parity up front and flipping it if the guess was wrong.
func (pc *PeerConnection) openPendingDataChannels() {
	pc.mu.Lock()
	pending := pc.pendingDataChannels
	pc.pendingDataChannels = nil
	isInitiator := pc.dtlsTransport.role() == DTLSRoleClient
	pc.mu.Unlock()

	for _, dc := range pending {
		if err := dc.open(pc.sctpTransport, isInitiator); err != nil {
			pc.log.Warnf("failed to open data channel %q: %s", dc.Label(), err)
			continue
		}
		pc.mu.Lock()
		pc.openedDataChannels = append(pc.openedDataChannels, dc)
		pc.mu.Unlock()
	}
}

func (pc *PeerConnection) onRemoteDataChannel(dc *DataChannel) {
	pc.mu.Lock()
	pc.openedDataChannels = append(pc.openedDataChannels, dc)
	hdlr := pc.onDataChannelHdlr
	pc.mu.Unlock()

	if hdlr != nil {
		pc.ops.Enqueue(func() { hdlr(dc) })
	}
}

// ---------------------------------------------------------------------
// Offer/answer
// ---------------------------------------------------------------------

func (pc *PeerConnection) mediaSections() ([]mediaSection, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	var sections []mediaSection
	for _, t := range pc.transceivers {
		mid := t.Mid()
		if mid == "" {
			mid = util.RandSeq(8)
			t.SetMid(mid)
		}
		sections = append(sections, mediaSection{id: mid, transceivers: []*RTPTransceiver{t}})
	}

	haveData := len(pc.pendingDataChannels)+len(pc.openedDataChannels) > 0
	if haveData {
		sections = append(sections, mediaSection{id: "data", data: true})
	}

	if len(sections) == 0 {
		return nil, errSDPZeroTransceivers
	}
	return sections, nil
}

func newJSEPSessionDescription() *sdp.SessionDescription {
	return sdp.NewJSEPSessionDescription(false)
}

// CreateOffer generates a local SDP offer describing every Track added via
// AddTrack and every DataChannel created so far. It does not apply the
// description; call SetLocalDescription with the result to do that.
func (pc *PeerConnection) CreateOffer(options *OfferOptions) (SessionDescription, error) {
	if pc.isClosed.Load() {
		return SessionDescription{}, &rtcerr.StateError{Err: ErrConnectionClosed}
	}

	if err := pc.iceGatherer.Gather(); err != nil {
		return SessionDescription{}, err
	}

	localParams, err := pc.iceGatherer.GetLocalParameters()
	if err != nil {
		return SessionDescription{}, err
	}
	candidates, err := pc.iceGatherer.GetLocalCandidates()
	if err != nil {
		return SessionDescription{}, err
	}
	dtlsParams, err := pc.dtlsTransport.GetLocalParameters()
	if err != nil {
		return SessionDescription{}, err
	}

	sections, err := pc.mediaSections()
	if err != nil {
		return SessionDescription{}, err
	}

	d := newJSEPSessionDescription()
	if options != nil && options.ICETricklingSupported {
		d = d.WithValueAttribute(sdp.AttrKeyICEOptions, "trickle")
	}

	out, err := populateSDP(d, false, dtlsParams.Fingerprints, true, false,
		pc.api.mediaEngine, sdp.ConnectionRoleActpass, candidates, localParams, sections,
		pc.iceGatheringState, nil)
	if err != nil {
		return SessionDescription{}, err
	}

	return SessionDescription{Type: SDPTypeOffer, SDP: out.Marshal()}, nil
}

// CreateAnswer generates a local SDP answer reciprocating the currently
// applied remote offer.
func (pc *PeerConnection) CreateAnswer(options *AnswerOptions) (SessionDescription, error) {
	if pc.isClosed.Load() {
		return SessionDescription{}, &rtcerr.StateError{Err: ErrConnectionClosed}
	}

	pc.mu.RLock()
	state := pc.signalingState
	remote := pc.pendingRemoteDescription
	if remote == nil {
		remote = pc.currentRemoteDescription
	}
	pc.mu.RUnlock()
	if state != SignalingStateHaveRemoteOffer && state != SignalingStateHaveLocalPranswer {
		return SessionDescription{}, &rtcerr.StateError{Err: fmt.Errorf("cannot create an answer in signaling state %s", state)}
	}
	if remote == nil {
		return SessionDescription{}, &rtcerr.StateError{Err: ErrNoRemoteDescription}
	}

	if err := pc.iceGatherer.Gather(); err != nil {
		return SessionDescription{}, err
	}

	localParams, err := pc.iceGatherer.GetLocalParameters()
	if err != nil {
		return SessionDescription{}, err
	}
	candidates, err := pc.iceGatherer.GetLocalCandidates()
	if err != nil {
		return SessionDescription{}, err
	}
	dtlsParams, err := pc.dtlsTransport.GetLocalParameters()
	if err != nil {
		return SessionDescription{}, err
	}

	connectionRole := sdp.ConnectionRoleActive
	if remoteDTLSRole(remote.parsed) == sdp.ConnectionRoleActive {
		connectionRole = sdp.ConnectionRolePassive
	}

	sections, err := pc.mediaSections()
	if err != nil {
		return SessionDescription{}, err
	}

	d := newJSEPSessionDescription()
	out, err := populateSDP(d, false, dtlsParams.Fingerprints, true, false,
		pc.api.mediaEngine, connectionRole, candidates, localParams, sections,
		pc.iceGatheringState, nil)
	if err != nil {
		return SessionDescription{}, err
	}

	return SessionDescription{Type: SDPTypeAnswer, SDP: out.Marshal()}, nil
}

func remoteDTLSRole(parsed *sdp.SessionDescription) sdp.ConnectionRole {
	if parsed == nil {
		return sdp.ConnectionRoleActpass
	}
	if value, ok := parsed.Attribute("setup"); ok {
		switch value {
		case "active":
			return sdp.ConnectionRoleActive
		case "passive":
			return sdp.ConnectionRolePassive
		}
	}
	for _, m := range parsed.MediaDescriptions {
		if value, ok := m.Attribute("setup"); ok {
			switch value {
			case "active":
				return sdp.ConnectionRoleActive
			case "passive":
				return sdp.ConnectionRolePassive
			}
		}
	}
	return sdp.ConnectionRoleActpass
}

// SetLocalDescription applies desc as the local description, validating the
// signaling state transition it implies. The first local offer observed
// before any remote description is present marks this side as the offerer;
// maybeStartTransports uses that to pick an ICE controlling/controlled role.
func (pc *PeerConnection) SetLocalDescription(desc SessionDescription) error {
	if pc.isClosed.Load() {
		return &rtcerr.StateError{Err: ErrConnectionClosed}
	}

	pc.mu.Lock()
	cur := pc.signalingState
	pc.mu.Unlock()

	var next SignalingState
	switch desc.Type {
	case SDPTypeOffer:
		next = SignalingStateHaveLocalOffer
	case SDPTypePranswer:
		next = SignalingStateHaveLocalPranswer
	case SDPTypeAnswer:
		next = SignalingStateStable
	default:
		return &rtcerr.ConfigurationError{Err: fmt.Errorf("invalid SDP type for SetLocalDescription: %s", desc.Type)}
	}

	newState, err := checkNextSignalingState(cur, next, stateChangeOpSetLocal, desc.Type)
	if err != nil {
		return err
	}

	if _, err := desc.Unmarshal(); err != nil {
		return err
	}

	pc.mu.Lock()
	if desc.Type == SDPTypeOffer && pc.currentRemoteDescription == nil && pc.pendingRemoteDescription == nil {
		pc.isOfferer = true
	}
	if desc.Type == SDPTypeAnswer {
		pc.currentLocalDescription = &desc
		pc.pendingLocalDescription = nil
		pc.currentRemoteDescription = pc.pendingRemoteDescription
		pc.pendingRemoteDescription = nil
	} else {
		pc.pendingLocalDescription = &desc
	}
	pc.setSignalingStateLocked(newState)
	pc.mu.Unlock()

	return pc.maybeStartTransports()
}

// SetRemoteDescription applies desc as the remote description: it validates
// and applies the fingerprint, ICE credentials/candidates and codec
// negotiation it carries, then (once a local description is also present)
// starts the transport stack. The first remote offer observed before any
// local description is present marks the other side as the offerer.
func (pc *PeerConnection) SetRemoteDescription(desc SessionDescription) error {
	if pc.isClosed.Load() {
		return &rtcerr.StateError{Err: ErrConnectionClosed}
	}

	parsed, err := desc.Unmarshal()
	if err != nil {
		return err
	}

	pc.mu.Lock()
	cur := pc.signalingState
	pc.mu.Unlock()

	var next SignalingState
	switch desc.Type {
	case SDPTypeOffer:
		next = SignalingStateHaveRemoteOffer
	case SDPTypePranswer:
		next = SignalingStateHaveRemotePranswer
	case SDPTypeAnswer:
		next = SignalingStateStable
	default:
		return &rtcerr.ConfigurationError{Err: fmt.Errorf("invalid SDP type for SetRemoteDescription: %s", desc.Type)}
	}

	newState, err := checkNextSignalingState(cur, next, stateChangeOpSetRemote, desc.Type)
	if err != nil {
		return err
	}

	if _, _, err := extractFingerprint(parsed); err != nil {
		return &rtcerr.NegotiationError{Err: err}
	}
	_, _, candidates, err := extractICEDetails(parsed)
	if err != nil {
		return &rtcerr.NegotiationError{Err: err}
	}

	if err := pc.api.mediaEngine.updateFromRemoteDescription(*parsed); err != nil {
		return err
	}

	pc.mu.Lock()
	if desc.Type == SDPTypeOffer && pc.currentLocalDescription == nil && pc.pendingLocalDescription == nil {
		pc.isOfferer = false
	}
	if desc.Type == SDPTypeAnswer {
		pc.currentRemoteDescription = &desc
		pc.pendingRemoteDescription = nil
		pc.currentLocalDescription = pc.pendingLocalDescription
		pc.pendingLocalDescription = nil
	} else {
		pc.pendingRemoteDescription = &desc
	}
	pc.setSignalingStateLocked(newState)
	pc.mu.Unlock()

	for _, c := range candidates {
		if err := pc.iceTransport.AddRemoteCandidate(c); err != nil {
			pc.log.Warnf("failed to add remote candidate: %s", err)
		}
	}

	pc.reconcileTransceivers(parsed)

	return pc.maybeStartTransports()
}

// AddICECandidate adds a trickled remote candidate to the ICE transport.
func (pc *PeerConnection) AddICECandidate(candidate ICECandidateInit) error {
	if candidate.Candidate == "" {
		return nil
	}

	pc.mu.RLock()
	started := pc.iceTransport.State() != ICETransportStateNew
	pc.mu.RUnlock()
	if !started {
		return &rtcerr.StateError{Err: ErrICENotStarted}
	}

	value := strings.TrimPrefix(candidate.Candidate, "candidate:")
	iceCandidate, err := ice.UnmarshalCandidate(value)
	if err != nil {
		return &rtcerr.NegotiationError{Err: err}
	}
	c, err := newICECandidateFromICE(iceCandidate, "", 0)
	if err != nil {
		return err
	}
	return pc.iceTransport.AddRemoteCandidate(c)
}

func (pc *PeerConnection) setSignalingStateLocked(s SignalingState) {
	pc.signalingState = s
	hdlr := pc.onSignalingStateChangeHdlr
	if hdlr != nil {
		pc.ops.Enqueue(func() { hdlr(s) })
	}
}

// reconcileTransceivers matches remote media sections against existing
// transceivers by mid, creating a transceiver in the reciprocal direction
// for remote sections that have no local counterpart yet, and opens a
// receive Track for every SSRC of a section the remote peer sends on.
func (pc *PeerConnection) reconcileTransceivers(parsed *sdp.SessionDescription) {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media == mediaSectionApplication {
			continue
		}

		mid := getMidValue(media)
		kind := NewRTPCodecType(media.MediaName.Media)
		direction := getPeerDirection(media).Reverse()

		pc.mu.Lock()
		var t *RTPTransceiver
		for _, existing := range pc.transceivers {
			if existing.Mid() == mid {
				t = existing
				break
			}
		}
		if t == nil {
			t = newRTPTransceiver(kind, direction)
			t.SetMid(mid)
			pc.transceivers = append(pc.transceivers, t)
		}
		pc.mu.Unlock()

		if direction != RTPTransceiverDirectionRecvonly && direction != RTPTransceiverDirectionSendrecv {
			continue
		}

		for _, td := range trackDetailsFromSDP(pc.log, parsed) {
			if td.mid != mid {
				continue
			}
			track, err := pc.srtpTransport.OpenRemoteTrack(kind, SSRC(td.ssrc), mid, td.label, pc.api.settingEngine.LoggerFactory)
			if err != nil {
				pc.log.Warnf("failed to open remote track on mid %s: %s", mid, err)
				continue
			}
			t.SetReceiver(track)

			pc.mu.RLock()
			hdlr := pc.onTrackHdlr
			pc.mu.RUnlock()
			if hdlr != nil {
				pc.ops.Enqueue(func() { hdlr(track, t) })
			}
		}
	}
}

// maybeStartTransports starts ICE, DTLS, and (once DTLS is up) SCTP and
// SRTP, the first time both a local and a remote description are present
// and the stack hasn't already been started. Order of SetLocalDescription
// vs SetRemoteDescription doesn't matter: whichever call observes both
// sides populated performs the start.
func (pc *PeerConnection) maybeStartTransports() error {
	pc.mu.Lock()
	local := pc.effectiveLocalLocked()
	remote := pc.effectiveRemoteLocked()
	if pc.transportsUp || local == nil || remote == nil {
		pc.mu.Unlock()
		return nil
	}
	pc.transportsUp = true
	isOfferer := pc.isOfferer
	pc.mu.Unlock()

	remoteParsed, err := remote.Unmarshal()
	if err != nil {
		return err
	}

	iceRole := ICERoleControlled
	if isOfferer {
		iceRole = ICERoleControlling
	}

	ufrag, pwd, _, err := extractICEDetails(remoteParsed)
	if err != nil {
		return err
	}
	iceParams := ICEParameters{UsernameFragment: ufrag, Password: pwd}

	role := iceRole
	if err := pc.iceTransport.Start(nil, iceParams, &role); err != nil {
		return &rtcerr.TransportError{Err: err}
	}

	fpHash, fpValue, err := extractFingerprint(remoteParsed)
	if err != nil {
		return &rtcerr.NegotiationError{Err: err}
	}
	dtlsRole := DTLSRoleAuto
	switch remoteDTLSRole(remoteParsed) {
	case sdp.ConnectionRoleActive:
		dtlsRole = DTLSRoleClient
	case sdp.ConnectionRolePassive:
		dtlsRole = DTLSRoleServer
	}

	if err := pc.dtlsTransport.Start(DTLSParameters{
		Role:         dtlsRole,
		Fingerprints: []DTLSFingerprint{{Algorithm: fpHash, Value: fpValue}},
	}); err != nil {
		return err
	}

	if haveApplicationMediaSection(remoteParsed) {
		if err := pc.sctpTransport.Start(SCTPCapabilities{MaxMessageSize: defaultMaxMessageSize}); err != nil {
			return err
		}
		pc.openPendingDataChannels()
	}

	return pc.srtpTransport.Start()
}

func (pc *PeerConnection) effectiveLocalLocked() *SessionDescription {
	if pc.currentLocalDescription != nil {
		return pc.currentLocalDescription
	}
	return pc.pendingLocalDescription
}

func (pc *PeerConnection) effectiveRemoteLocked() *SessionDescription {
	if pc.currentRemoteDescription != nil {
		return pc.currentRemoteDescription
	}
	return pc.pendingRemoteDescription
}

// ---------------------------------------------------------------------
// ICE/DTLS state aggregation
// ---------------------------------------------------------------------

func (pc *PeerConnection) onICEStateChange(state ICETransportState) {
	iceState := iceConnectionStateFromTransport(state)

	pc.mu.Lock()
	pc.iceConnectionState = iceState
	hdlr := pc.onICEConnectionStateChangeHdlr
	pc.mu.Unlock()

	if hdlr != nil {
		pc.ops.Enqueue(func() { hdlr(iceState) })
	}

	pc.updateConnectionState()
}

func (pc *PeerConnection) onDTLSStateChange(DTLSTransportState) {
	pc.updateConnectionState()
}

func iceConnectionStateFromTransport(s ICETransportState) ICEConnectionState {
	switch s {
	case ICETransportStateNew:
		return ICEConnectionStateNew
	case ICETransportStateChecking:
		return ICEConnectionStateChecking
	case ICETransportStateConnected:
		return ICEConnectionStateConnected
	case ICETransportStateCompleted:
		return ICEConnectionStateCompleted
	case ICETransportStateDisconnected:
		return ICEConnectionStateDisconnected
	case ICETransportStateFailed:
		return ICEConnectionStateFailed
	case ICETransportStateClosed:
		return ICEConnectionStateClosed
	default:
		return ICEConnectionStateNew
	}
}

// updateConnectionState recomputes the aggregate PeerConnectionState from
// the current ICE and DTLS transport states.
func (pc *PeerConnection) updateConnectionState() {
	if pc.isClosed.Load() {
		return
	}

	iceState := pc.iceTransport.State()
	dtlsState := pc.dtlsTransport.State()

	var next PeerConnectionState
	switch {
	case iceState == ICETransportStateFailed || dtlsState == DTLSTransportStateFailed:
		next = PeerConnectionStateFailed
	case iceState == ICETransportStateDisconnected:
		next = PeerConnectionStateDisconnected
	case iceState == ICETransportStateNew && dtlsState == DTLSTransportStateNew:
		next = PeerConnectionStateNew
	case (iceState == ICETransportStateConnected || iceState == ICETransportStateCompleted) &&
		dtlsState == DTLSTransportStateConnected:
		next = PeerConnectionStateConnected
	default:
		next = PeerConnectionStateConnecting
	}

	pc.mu.Lock()
	if pc.connectionState == next {
		pc.mu.Unlock()
		return
	}
	pc.connectionState = next
	hdlr := pc.onConnectionStateChangeHdlr
	pc.mu.Unlock()

	if hdlr != nil {
		pc.ops.Enqueue(func() { hdlr(next) })
	}
}

// ---------------------------------------------------------------------
// Close
// ---------------------------------------------------------------------

// Close tears down every transport and DataChannel/Track in reverse order
// of construction (SRTP/SCTP, then DTLS, then ICE). It is idempotent.
func (pc *PeerConnection) Close() error {
	if !pc.isClosed.CompareAndSwap(false, true) {
		return nil
	}

	pc.ops.GracefulClose()

	var errs []error

	pc.mu.RLock()
	dataChannels := append([]*DataChannel{}, pc.openedDataChannels...)
	dataChannels = append(dataChannels, pc.pendingDataChannels...)
	transceivers := append([]*RTPTransceiver{}, pc.transceivers...)
	pc.mu.RUnlock()

	for _, dc := range dataChannels {
		if err := dc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, t := range transceivers {
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := pc.srtpTransport.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := pc.sctpTransport.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := pc.dtlsTransport.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := pc.iceTransport.Stop(); err != nil {
		errs = append(errs, err)
	}

	pc.mu.Lock()
	pc.iceConnectionState = ICEConnectionStateClosed
	pc.connectionState = PeerConnectionStateClosed
	pc.signalingState = SignalingStateClosed
	pc.mu.Unlock()

	return util.FlattenErrs(errs)
}
