package webrtc

import (
	"strings"

	"github.com/rtccore/webrtc/internal/fmtp"
)

// RTPCodecType determines the type of a codec
type RTPCodecType int

const (

	// RTPCodecTypeAudio indicates this is an audio codec
	RTPCodecTypeAudio RTPCodecType = iota + 1

	// RTPCodecTypeVideo indicates this is a video codec
	RTPCodecTypeVideo
)

func (t RTPCodecType) String() string {
	switch t {
	case RTPCodecTypeAudio:
		return "audio"
	case RTPCodecTypeVideo:
		return "video" //nolint: goconst
	default:
		return ErrUnknownType.Error()
	}
}

// NewRTPCodecType creates a RTPCodecType from a string
func NewRTPCodecType(r string) RTPCodecType {
	switch {
	case strings.EqualFold(r, RTPCodecTypeAudio.String()):
		return RTPCodecTypeAudio
	case strings.EqualFold(r, RTPCodecTypeVideo.String()):
		return RTPCodecTypeVideo
	default:
		return RTPCodecType(0)
	}
}

// RTPCodecCapability provides information about codec capabilities.
//
// https://w3c.github.io/webrtc-pc/#dictionary-rtcrtpcodeccapability-members
type RTPCodecCapability struct {
	MimeType     string
	ClockRate    uint32
	Channels     uint16
	SDPFmtpLine  string
	RTCPFeedback []RTCPFeedback
}

// RTPHeaderExtensionCapability is used to define a RFC5285 RTP header extension supported by the codec.
//
// https://w3c.github.io/webrtc-pc/#dom-rtcrtpcapabilities-headerextensions
type RTPHeaderExtensionCapability struct {
	URI string
}

// RTPCodecParameters is a sequence containing the media codecs that an RtpSender
// will choose from, as well as entries for RTX, RED and FEC mechanisms. This also
// includes the PayloadType that has been negotiated
//
// https://w3c.github.io/webrtc-pc/#rtcrtpcodecparameters
type RTPCodecParameters struct {
	RTPCodecCapability
	PayloadType PayloadType
}

// RTCPFeedback signals the payload type that requires the additional RTCP
// packet type for a given RTPCodec.
//
// https://draft.ortc.org/#dom-rtcrtcpfeedback
type RTCPFeedback struct {
	Type      string
	Parameter string
}

// PayloadType identifies the format of the RTP payload and determines its
// interpretation by the application, negotiated per RFC 3551 Section 6.
type PayloadType uint8

// SSRC represents a synchronization source identifier, carried in every RTP
// and RTCP packet header per RFC 3550 Section 3.
type SSRC uint32

// codecParametersFuzzySearch looks up needle in haystack, first requiring the
// fmtp parameters to be compatible (per codec-specific rules, e.g. RFC 6184
// profile-level-id for H.264) and falling back to a bare MimeType match.
func codecParametersFuzzySearch(needle RTPCodecParameters, haystack []RTPCodecParameters) (RTPCodecParameters, error) {
	needleFmtp := fmtp.Parse(needle.RTPCodecCapability.MimeType,
		needle.RTPCodecCapability.ClockRate, needle.RTPCodecCapability.Channels, needle.RTPCodecCapability.SDPFmtpLine)

	for _, c := range haystack {
		if !strings.EqualFold(c.RTPCodecCapability.MimeType, needle.RTPCodecCapability.MimeType) {
			continue
		}

		cFmtp := fmtp.Parse(c.RTPCodecCapability.MimeType,
			c.RTPCodecCapability.ClockRate, c.RTPCodecCapability.Channels, c.RTPCodecCapability.SDPFmtpLine)
		if needleFmtp.Match(cFmtp) {
			return c, nil
		}
	}

	// Fall back to just MimeType.
	for _, c := range haystack {
		if strings.EqualFold(c.RTPCodecCapability.MimeType, needle.RTPCodecCapability.MimeType) {
			return c, nil
		}
	}

	return RTPCodecParameters{}, ErrCodecNotFound
}

// findFECPayloadType returns the PayloadType of the first FlexFEC codec in
// haystack, or 0 if none is present.
func findFECPayloadType(haystack []RTPCodecParameters) PayloadType {
	for _, c := range haystack {
		if strings.Contains(strings.ToLower(c.RTPCodecCapability.MimeType), "flexfec") {
			return c.PayloadType
		}
	}

	return 0
}
