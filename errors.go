package webrtc

import "errors"

// Sentinel errors wrapped by the rtcerr.* kinds at the call site. Keeping
// them as package-level vars lets callers match with errors.Is even through
// the taxonomy wrapper.
var (
	// ErrUnknownType is returned by enum String()/UnmarshalText() helpers
	// when the input doesn't match any known value.
	ErrUnknownType = errors.New("unknown type")

	ErrConnectionClosed     = errors.New("peerconnection: connection closed")
	ErrCertificateExpired   = errors.New("certificate expired")
	ErrNoRemoteDescription  = errors.New("no remote description set")
	ErrSelfLoop             = errors.New("remote description matches local credentials")
	ErrMissingUfragPwd      = errors.New("missing ice-ufrag/ice-pwd")
	ErrMissingFingerprint   = errors.New("missing DTLS fingerprint")
	ErrNoTurnCred           = errors.New("turn server requires username and credential")
	ErrTurnCred             = errors.New("turn server credential is malformed for its CredentialType")
	ErrNoActiveMediaSection = errors.New("no active media section in description")
	ErrModifyingCertificate = errors.New("certificates cannot be modified")

	ErrDataChannelNotOpen  = errors.New("data channel not open")
	ErrReservedChannelID   = errors.New("data channel id 65535 is reserved")
	ErrMaxDataChannelID    = errors.New("no data channel ids available")
	ErrMessageTooLarge     = errors.New("message larger than remote max-message-size")
	ErrRetransmitsOrPacketLifeTime = errors.New("set either MaxPacketLifeTime or MaxRetransmits, not both")

	ErrSCTPNotEstablished = errors.New("SCTP association not established")
	ErrDTLSNotEstablished = errors.New("DTLS transport not established")
	ErrICENotStarted      = errors.New("ICE transport not started")

	ErrTrackDirectionMismatch = errors.New("message dropped: track direction does not allow it")
	ErrCodecNotFound          = errors.New("codec not found")

	errICECandidateTypeUnknown       = errors.New("unknown ICE candidate type")
	errICEProtocolUnknown            = errors.New("unknown ICE protocol")
	errInvalidICECredentialTypeString = errors.New("invalid ICE credential type")

	ErrSessionDescriptionNoFingerprint            = errors.New("session description has no fingerprint")
	ErrSessionDescriptionInvalidFingerprint        = errors.New("session description has invalid fingerprint")
	ErrSessionDescriptionConflictingFingerprints   = errors.New("session description has conflicting fingerprints")
	ErrSessionDescriptionMissingIceUfrag           = errors.New("session description is missing ice-ufrag")
	ErrSessionDescriptionMissingIcePwd             = errors.New("session description is missing ice-pwd")
	ErrSessionDescriptionConflictingIceUfrag       = errors.New("session description has conflicting ice-ufrag values")
	ErrSessionDescriptionConflictingIcePwd         = errors.New("session description has conflicting ice-pwd values")

	ErrSDPUnmarshalling = errors.New("failed to unmarshal SDP")

	errSDPZeroTransceivers                  = errors.New("session description has zero transceivers")
	errSDPMediaSectionMediaDataChanInvalid  = errors.New("media section is invalid, data channel's m-line has unexpected format")
	errSDPMediaSectionMultipleTrackInvalid  = errors.New("media section is invalid, multiple tracks on a single m-line")
	errSDPParseExtMap                       = errors.New("failed to parse header extension map from SDP")
	errSDPRemoteDescriptionChangedExtMap    = errors.New("remote description changed a previously negotiated header extension map")
)
