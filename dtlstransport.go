package webrtc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pion/dtls/v3"
	"github.com/pion/dtls/v3/pkg/crypto/fingerprint"
	"github.com/pion/logging"
	"github.com/pion/srtp/v3"
	"github.com/rtccore/webrtc/internal/mux"
	"github.com/rtccore/webrtc/internal/util"
	"github.com/rtccore/webrtc/pkg/rtcerr"
)

// defaultDTLSRoleAnswer is the role assumed when neither the remote offer
// nor SettingEngine pin a role and we are the ICE-controlled side.
const defaultDTLSRoleAnswer = DTLSRoleServer

// DTLSFingerprint is a hash of a certificate, used to validate the identity
// of the peer presenting it during the DTLS handshake.
type DTLSFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// DTLSParameters describes the properties of a DTLSTransport negotiated
// between two peers via SDP.
type DTLSParameters struct {
	Role         DTLSRole          `json:"role"`
	Fingerprints []DTLSFingerprint `json:"fingerprints"`
}

// DTLSTransport carries RTP/RTCP and SCTP over a single DTLS connection
// running on top of an ICETransport.
type DTLSTransport struct {
	lock sync.RWMutex

	iceTransport      *ICETransport
	certificates      []Certificate
	remoteParameters  DTLSParameters
	remoteCertificate []byte
	state             DTLSTransportState

	onStateChangeHdlr func(DTLSTransportState)

	conn *dtls.Conn

	srtpSession   *srtp.SessionSRTP
	srtcpSession  *srtp.SessionSRTCP
	srtpEndpoint  *mux.Endpoint
	srtcpEndpoint *mux.Endpoint

	dtlsMatcher mux.MatchFunc

	settings *SettingEngine
	log      logging.LeveledLogger
}

func newDTLSTransport(transport *ICETransport, certificates []Certificate, settings *SettingEngine, log logging.LeveledLogger) (*DTLSTransport, error) {
	t := &DTLSTransport{
		iceTransport: transport,
		state:        DTLSTransportStateNew,
		dtlsMatcher:  mux.MatchDTLS,
		settings:     settings,
		log:          log,
	}

	if len(certificates) > 0 {
		now := time.Now()
		for _, cert := range certificates {
			if !cert.Expires().IsZero() && now.After(cert.Expires()) {
				return nil, &rtcerr.ConfigurationError{Err: ErrCertificateExpired}
			}
			t.certificates = append(t.certificates, cert)
		}
	} else {
		sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, &rtcerr.ConfigurationError{Err: err}
		}
		cert, err := GenerateCertificate(sk)
		if err != nil {
			return nil, err
		}
		t.certificates = []Certificate{*cert}
	}

	return t, nil
}

// ICETransport returns the ICETransport carrying this DTLS connection.
func (t *DTLSTransport) ICETransport() *ICETransport {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.iceTransport
}

func (t *DTLSTransport) onStateChange(state DTLSTransportState) {
	t.state = state
	hdlr := t.onStateChangeHdlr
	if hdlr != nil {
		hdlr(state)
	}
}

// OnStateChange sets a handler fired when the DTLS connection state changes.
func (t *DTLSTransport) OnStateChange(f func(DTLSTransportState)) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.onStateChangeHdlr = f
}

// State returns the current DTLS transport state.
func (t *DTLSTransport) State() DTLSTransportState {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.state
}

// GetLocalParameters returns the local certificate fingerprints offered in
// SDP.
func (t *DTLSTransport) GetLocalParameters() (DTLSParameters, error) {
	var fingerprints []DTLSFingerprint
	for _, c := range t.certificates {
		fingerprints = append(fingerprints, c.GetFingerprints()...)
	}
	return DTLSParameters{Role: DTLSRoleAuto, Fingerprints: fingerprints}, nil
}

// GetRemoteCertificate returns the DER-encoded certificate presented by the
// remote peer, or nil before the handshake completes.
func (t *DTLSTransport) GetRemoteCertificate() []byte {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.remoteCertificate
}

func (t *DTLSTransport) startSRTP() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.srtpSession != nil && t.srtcpSession != nil {
		return nil
	}
	if t.conn == nil {
		return &rtcerr.StateError{Err: ErrDTLSNotEstablished}
	}

	srtpConfig := &srtp.Config{
		Profile:       srtp.ProtectionProfileAes128CmHmacSha1_80,
		LoggerFactory: loggerFactoryFor(t.log),
	}

	if err := srtpConfig.ExtractSessionKeysFromDTLS(t.conn, t.role() == DTLSRoleClient); err != nil {
		return &rtcerr.TransportError{Err: fmt.Errorf("extract srtp session keys: %w", err)}
	}

	srtpSession, err := srtp.NewSessionSRTP(t.srtpEndpoint, srtpConfig)
	if err != nil {
		return &rtcerr.TransportError{Err: err}
	}
	srtcpSession, err := srtp.NewSessionSRTCP(t.srtcpEndpoint, srtpConfig)
	if err != nil {
		return &rtcerr.TransportError{Err: err}
	}

	t.srtpSession = srtpSession
	t.srtcpSession = srtcpSession
	return nil
}

func (t *DTLSTransport) getSRTPSession() (*srtp.SessionSRTP, error) {
	t.lock.RLock()
	if t.srtpSession != nil {
		t.lock.RUnlock()
		return t.srtpSession, nil
	}
	t.lock.RUnlock()

	if err := t.startSRTP(); err != nil {
		return nil, err
	}
	return t.srtpSession, nil
}

func (t *DTLSTransport) getSRTCPSession() (*srtp.SessionSRTCP, error) {
	t.lock.RLock()
	if t.srtcpSession != nil {
		t.lock.RUnlock()
		return t.srtcpSession, nil
	}
	t.lock.RUnlock()

	if err := t.startSRTP(); err != nil {
		return nil, err
	}
	return t.srtcpSession, nil
}

// role resolves our DTLS role: the remote's explicit role inverted, else
// SettingEngine's pinned answering role, else derived from the ICE role.
func (t *DTLSTransport) role() DTLSRole {
	switch t.remoteParameters.Role {
	case DTLSRoleClient:
		return DTLSRoleServer
	case DTLSRoleServer:
		return DTLSRoleClient
	}

	if t.settings != nil {
		switch t.settings.answeringDTLSRole {
		case DTLSRoleServer:
			return DTLSRoleServer
		case DTLSRoleClient:
			return DTLSRoleClient
		}
	}

	if t.iceTransport.Role() == ICERoleControlling {
		return DTLSRoleClient
	}
	return defaultDTLSRoleAnswer
}

func (t *DTLSTransport) handshakeMTU() int {
	mtu := receiveMTU
	if t.settings != nil && t.settings.mtu != 0 {
		mtu = t.settings.mtu
	}
	return mtu - dtlsHandshakeMTUAdjustment
}

// Start negotiates the DTLS connection against the remote's parameters.
func (t *DTLSTransport) Start(remoteParameters DTLSParameters) error {
	prepare := func() (DTLSRole, *dtls.Config, error) {
		t.lock.Lock()
		defer t.lock.Unlock()

		if err := t.ensureICEConn(); err != nil {
			return 0, nil, err
		}
		if t.state != DTLSTransportStateNew {
			return 0, nil, &rtcerr.StateError{Err: fmt.Errorf("DTLSTransport already started: %s", t.state)}
		}

		t.srtpEndpoint = t.iceTransport.NewEndpoint(mux.MatchSRTP)
		t.srtcpEndpoint = t.iceTransport.NewEndpoint(mux.MatchSRTP)
		t.remoteParameters = remoteParameters
		t.onStateChange(DTLSTransportStateConnecting)

		cert := t.certificates[0]
		return t.role(), &dtls.Config{
			Certificates: []tls.Certificate{{
				Certificate: [][]byte{cert.x509Cert.Raw},
				PrivateKey:  cert.privateKey,
			}},
			SRTPProtectionProfiles: defaultSrtpProtectionProfiles(),
			ClientAuth:             dtls.RequireAnyClientCert,
			LoggerFactory:          loggerFactoryFor(t.log),
			InsecureSkipVerify:     true,
			MTU:                    t.handshakeMTU(),
		}, nil
	}

	dtlsEndpoint := t.iceTransport.NewEndpoint(mux.MatchDTLS)
	role, dtlsConfig, err := prepare()
	if err != nil {
		return err
	}

	var dtlsConn *dtls.Conn
	if role == DTLSRoleClient {
		dtlsConn, err = dtls.Client(dtlsEndpoint, dtlsConfig)
	} else {
		dtlsConn, err = dtls.Server(dtlsEndpoint, dtlsConfig)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if err != nil {
		t.onStateChange(DTLSTransportStateFailed)
		return &rtcerr.TransportError{Err: err}
	}

	t.conn = dtlsConn
	t.onStateChange(DTLSTransportStateConnected)

	if t.settings != nil && t.settings.disableCertificateFingerprintVerification {
		return nil
	}

	remoteCerts := t.conn.ConnectionState().PeerCertificates
	if len(remoteCerts) == 0 {
		t.onStateChange(DTLSTransportStateFailed)
		return &rtcerr.TransportError{Err: errors.New("peer didn't provide a certificate via DTLS")}
	}
	t.remoteCertificate = remoteCerts[0]

	parsedRemoteCert, err := x509.ParseCertificate(t.remoteCertificate)
	if err != nil {
		t.onStateChange(DTLSTransportStateFailed)
		return &rtcerr.TransportError{Err: err}
	}

	if err := t.validateFingerPrint(parsedRemoteCert); err != nil {
		t.onStateChange(DTLSTransportStateFailed)
		return &rtcerr.TransportError{Err: err}
	}
	return nil
}

// Stop closes the DTLS connection and any SRTP/SRTCP sessions built on it.
func (t *DTLSTransport) Stop() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	var closeErrs []error

	if t.srtpSession != nil {
		if err := t.srtpSession.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}
	if t.srtcpSession != nil {
		if err := t.srtcpSession.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil && !errors.Is(err, dtls.ErrConnClosed) {
			closeErrs = append(closeErrs, err)
		}
	}
	t.onStateChange(DTLSTransportStateClosed)
	return util.FlattenErrs(closeErrs)
}

func (t *DTLSTransport) validateFingerPrint(remoteCert *x509.Certificate) error {
	for _, fp := range t.remoteParameters.Fingerprints {
		hashAlgo, err := fingerprint.HashFromString(fp.Algorithm)
		if err != nil {
			return err
		}
		remoteValue, err := fingerprint.Fingerprint(remoteCert, hashAlgo)
		if err != nil {
			return err
		}
		if strings.EqualFold(remoteValue, fp.Value) {
			return nil
		}
	}
	return errors.New("no matching fingerprint")
}

func (t *DTLSTransport) ensureICEConn() error {
	if t.iceTransport == nil || t.iceTransport.State() == ICETransportStateNew {
		return &rtcerr.StateError{Err: ErrICENotStarted}
	}
	return nil
}
