// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package webrtc

import "github.com/pion/dtls/v3"

const (
	// Equal to UDP MTU
	receiveMTU = 1460

	// sctpMTUOverhead is subtracted from the configured MTU to get the safe
	// SCTP payload size (IP + UDP + DTLS record + SCTP common header).
	sctpMTUOverhead = 108

	// dtlsHandshakeMTUAdjustment shrinks the usable MTU during the DTLS
	// handshake itself; the full MTU applies again once it completes.
	dtlsHandshakeMTUAdjustment = 68

	defaultSCTPPort        = 5000
	defaultMaxMessageSize  = 256 * 1024
	reservedDataChannelID  = 65535
	maxDataChannelStreamID = 65534

	// DSCP code points (AF11 = 10, EF = 46, AF42 = 36) shifted left by two
	// bits, i.e. as they appear in the IP TOS / traffic-class byte.
	dscpSCTP  = 0x28 // AF11
	dscpAudio = 0xb8 // EF
	dscpVideo = 0x90 // AF42

	// DCEP PPIDs (RFC 8831/8832); the Partial variants are deprecated and
	// accepted on receive only.
	ppidControl       = 50
	ppidString        = 51
	ppidBinary        = 53
	ppidStringEmpty   = 56
	ppidBinaryEmpty   = 57
	ppidBinaryPartial = 52
	ppidStringPartial = 54

	// simulcastProbeCount is the amount of RTP Packets
	// that handleUndeclaredSSRC will read and try to dispatch from
	// mid and rid values
	simulcastProbeCount = 10

	// simulcastMaxProbeRoutines is how many active routines can be used to probe
	// If the total amount of incoming SSRCes exceeds this new requests will be ignored
	simulcastMaxProbeRoutines = 25

	mediaSectionApplication = "application"

	sdpAttributeRid = "rid"

	rtpOutboundMTU = 1200

	rtpPayloadTypeBitmask = 0x7F

	incomingUnhandledRTPSsrc = "Incoming unhandled RTP ssrc(%d), OnTrack will not be fired. %v"

	generatedCertificateOrigin = "WebRTC"

	sdesRepairRTPStreamIDURI = "urn:ietf:params:rtp-hdrext:sdes:repaired-rtp-stream-id"

	// Attributes returned when Read() returns an RTX packet from a separate RTX stream (distinct SSRC)
	attributeRtxPayloadType    = "rtx_payload_type"
	attributeRtxSsrc           = "rtx_ssrc"
	attributeRtxSequenceNumber = "rtx_sequence_number"
)

// Unknown is the zero value shared by every enum in this package that needs
// an explicit "not set" state distinct from its first real value.
const Unknown = iota

const unknownStr = "unknown type"

func defaultSrtpProtectionProfiles() []dtls.SRTPProtectionProfile {
	return []dtls.SRTPProtectionProfile{dtls.SRTP_AEAD_AES_256_GCM, dtls.SRTP_AEAD_AES_128_GCM, dtls.SRTP_AES128_CM_HMAC_SHA1_80}
}
