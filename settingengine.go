package webrtc

import (
	"errors"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/logging"
)

// CertificateType selects how a PeerConnection generates its DTLS
// certificate when none is supplied in Configuration.
type CertificateType int

const (
	// CertificateTypeDefault lets the engine pick (ECDSA P-256).
	CertificateTypeDefault CertificateType = iota
	CertificateTypeECDSA
	CertificateTypeRSA
)

// SettingEngine allows influencing behavior in ways that are not
// supported by the public API. This allows us to support additional
// use-cases without deviating from the public surface elsewhere.
type SettingEngine struct {
	ephemeralUDP struct {
		PortMin uint16
		PortMax uint16
	}
	detach struct {
		DataChannels bool
	}
	timeout struct {
		ICEConnection                *time.Duration
		ICEKeepalive                 *time.Duration
		ICECandidateSelectionTimeout *time.Duration
		ICEHostAcceptanceMinWait     *time.Duration
		ICESrflxAcceptanceMinWait    *time.Duration
		ICEPrflxAcceptanceMinWait    *time.Duration
		ICERelayAcceptanceMinWait    *time.Duration
	}
	candidates struct {
		ICELite                        bool
		ICETrickle                     bool
		ICENetworkTypes                []NetworkType
		InterfaceFilter                func(string) bool
		NAT1To1IPs                     []string
		NAT1To1IPCandidateType         ICECandidateType
		GenerateMulticastDNSCandidates bool
		MulticastDNSHostName           string
		UsernameFragment               string
		Password                       string
	}

	// sctp groups the process-wide SCTP association tunables.
	sctp struct {
		ReceiveBufferSize      uint32
		SendBufferSize         uint32
		MaxChunksOnQueue       uint32
		InitialCongestionWindow uint32
		MaxBurst               uint32
		CongestionControlModule string
		DelayedSACKTimeout     time.Duration
		RTOMin                 time.Duration
		RTOMax                 time.Duration
		RTOInitial             time.Duration
		MaxRetransmitAttempts  uint32
		HeartbeatInterval      time.Duration
	}

	answeringDTLSRole                         DTLSRole
	disableCertificateFingerprintVerification bool
	certificateType                           CertificateType
	mtu                                       int
	maxMessageSize                            uint64
	disableAutoNegotiation                    bool
	iceUDPMuxEnabled                          bool
	disableTLSVerification                    bool
	LoggerFactory                             logging.LoggerFactory
}

// DetachDataChannels sets the detach flag on the SettingEngine. Nothing in
// this package reads the flag and DataChannel has no Detach method; channels
// deliver their messages through OnMessage either way.
func (e *SettingEngine) DetachDataChannels() {
	e.detach.DataChannels = true
}

// SetConnectionTimeout sets the amount of silence needed on a candidate pair
// before the ICE agent considers the pair timed out.
func (e *SettingEngine) SetConnectionTimeout(connectionTimeout, keepAlive time.Duration) {
	e.timeout.ICEConnection = &connectionTimeout
	e.timeout.ICEKeepalive = &keepAlive
}

func (e *SettingEngine) SetCandidateSelectionTimeout(t time.Duration) {
	e.timeout.ICECandidateSelectionTimeout = &t
}

func (e *SettingEngine) SetHostAcceptanceMinWait(t time.Duration) {
	e.timeout.ICEHostAcceptanceMinWait = &t
}

func (e *SettingEngine) SetSrflxAcceptanceMinWait(t time.Duration) {
	e.timeout.ICESrflxAcceptanceMinWait = &t
}

func (e *SettingEngine) SetPrflxAcceptanceMinWait(t time.Duration) {
	e.timeout.ICEPrflxAcceptanceMinWait = &t
}

func (e *SettingEngine) SetRelayAcceptanceMinWait(t time.Duration) {
	e.timeout.ICERelayAcceptanceMinWait = &t
}

// SetEphemeralUDPPortRange limits the pool of ephemeral ports ICE UDP
// connections can allocate from.
func (e *SettingEngine) SetEphemeralUDPPortRange(portMin, portMax uint16) error {
	if portMax < portMin {
		return ice.ErrPort
	}
	e.ephemeralUDP.PortMin = portMin
	e.ephemeralUDP.PortMax = portMax
	return nil
}

func (e *SettingEngine) SetLite(lite bool) {
	e.candidates.ICELite = lite
}

func (e *SettingEngine) SetTrickle(trickle bool) {
	e.candidates.ICETrickle = trickle
}

func (e *SettingEngine) SetNetworkTypes(candidateTypes []NetworkType) {
	e.candidates.ICENetworkTypes = candidateTypes
}

func (e *SettingEngine) SetInterfaceFilter(filter func(string) bool) {
	e.candidates.InterfaceFilter = filter
}

func (e *SettingEngine) SetNAT1To1IPs(ips []string, candidateType ICECandidateType) {
	e.candidates.NAT1To1IPs = ips
	e.candidates.NAT1To1IPCandidateType = candidateType
}

// SetAnsweringDTLSRole sets the DTLS role selected when answering.
func (e *SettingEngine) SetAnsweringDTLSRole(role DTLSRole) error {
	if role != DTLSRoleClient && role != DTLSRoleServer {
		return errors.New("SetAnsweringDTLSRole must be DTLSRoleClient or DTLSRoleServer")
	}
	e.answeringDTLSRole = role
	return nil
}

func (e *SettingEngine) GenerateMulticastDNSCandidates(v bool) {
	e.candidates.GenerateMulticastDNSCandidates = v
}

func (e *SettingEngine) SetMulticastDNSHostName(hostName string) {
	e.candidates.MulticastDNSHostName = hostName
}

func (e *SettingEngine) SetICECredentials(usernameFragment, password string) {
	e.candidates.UsernameFragment = usernameFragment
	e.candidates.Password = password
}

func (e *SettingEngine) DisableCertificateFingerprintVerification(isDisabled bool) {
	e.disableCertificateFingerprintVerification = isDisabled
}

// SetCertificateType records a key type for an implicit certificate. The
// value is stored only; certificate generation does not read it.
func (e *SettingEngine) SetCertificateType(t CertificateType) {
	e.certificateType = t
}

// SetMTU overrides the path MTU assumed for SCTP/DTLS sizing. Zero keeps
// the receiveMTU default.
func (e *SettingEngine) SetMTU(mtu int) {
	e.mtu = mtu
}

// SetMaxMessageSize records a local SCTP max-message-size. The value is
// stored only; SCTPTransport starts from defaultMaxMessageSize regardless.
func (e *SettingEngine) SetMaxMessageSize(size uint64) {
	e.maxMessageSize = size
}

// DisableAutoNegotiation records the auto-negotiation flag. The value is
// stored only; SetRemoteDescription does not read it.
func (e *SettingEngine) DisableAutoNegotiation(disable bool) {
	e.disableAutoNegotiation = disable
}

// SetICEUDPMux records the UDP mux flag. The value is stored only; each
// ICE transport still uses its own sockets.
func (e *SettingEngine) SetICEUDPMux(enabled bool) {
	e.iceUDPMuxEnabled = enabled
}

// SetDisableTLSVerification records the TLS verification flag. The value is
// stored only: the ws package does not read the SettingEngine (wss:// dials
// use ws.Config.TLSConfig), and DTLS fingerprint checks are unaffected.
func (e *SettingEngine) SetDisableTLSVerification(disabled bool) {
	e.disableTLSVerification = disabled
}

// SCTPSettings groups the SCTP association tunables accepted by
// SetSCTPSettings.
type SCTPSettings struct {
	ReceiveBufferSize       uint32
	SendBufferSize          uint32
	MaxChunksOnQueue        uint32
	InitialCongestionWindow uint32
	MaxBurst                uint32
	CongestionControlModule string
	DelayedSACKTimeout      time.Duration
	RTOMin                  time.Duration
	RTOMax                  time.Duration
	RTOInitial              time.Duration
	MaxRetransmitAttempts   uint32
	HeartbeatInterval       time.Duration
}

// SetSCTPSettings stores the association tunables on the SettingEngine.
// SCTPTransport.Start does not pass them to the SCTP association, which
// runs with the sctp library defaults.
func (e *SettingEngine) SetSCTPSettings(s SCTPSettings) {
	e.sctp.ReceiveBufferSize = s.ReceiveBufferSize
	e.sctp.SendBufferSize = s.SendBufferSize
	e.sctp.MaxChunksOnQueue = s.MaxChunksOnQueue
	e.sctp.InitialCongestionWindow = s.InitialCongestionWindow
	e.sctp.MaxBurst = s.MaxBurst
	e.sctp.CongestionControlModule = s.CongestionControlModule
	e.sctp.DelayedSACKTimeout = s.DelayedSACKTimeout
	e.sctp.RTOMin = s.RTOMin
	e.sctp.RTOMax = s.RTOMax
	e.sctp.RTOInitial = s.RTOInitial
	e.sctp.MaxRetransmitAttempts = s.MaxRetransmitAttempts
	e.sctp.HeartbeatInterval = s.HeartbeatInterval
}
