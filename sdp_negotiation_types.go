// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package webrtc

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pion/sdp/v3"
)

// SDPSemantics selects which offer/answer dialect a PeerConnection speaks:
// unified-plan (one m= section per transceiver) or the deprecated plan-b
// (one m= section per media kind, multiplexing tracks by SSRC).
type SDPSemantics int

const (
	// SDPSemanticsUnifiedPlan is RFC-aligned and the default everywhere.
	SDPSemanticsUnifiedPlan SDPSemantics = iota

	// SDPSemanticsPlanB is kept for interop with legacy peers only.
	SDPSemanticsPlanB

	// SDPSemanticsUnifiedPlanWithFallback offers unified-plan but answers a
	// plan-b offer in kind.
	SDPSemanticsUnifiedPlanWithFallback
)

const (
	sdpSemanticsUnifiedPlanWithFallback = "unified-plan-with-fallback"
	sdpSemanticsUnifiedPlan             = "unified-plan"
	sdpSemanticsPlanB                   = "plan-b"
)

func (s SDPSemantics) String() string {
	switch s {
	case SDPSemanticsUnifiedPlanWithFallback:
		return sdpSemanticsUnifiedPlanWithFallback
	case SDPSemanticsUnifiedPlan:
		return sdpSemanticsUnifiedPlan
	case SDPSemanticsPlanB:
		return sdpSemanticsPlanB
	default:
		return ErrUnknownType.Error()
	}
}

// ICETrickleCapability records whether the remote side advertised
// "a=ice-options:trickle", i.e. whether it will accept candidates signaled
// after the initial offer/answer.
type ICETrickleCapability int

const (
	// ICETrickleCapabilityUnknown means no remote description has been set.
	ICETrickleCapabilityUnknown ICETrickleCapability = iota
	// ICETrickleCapabilitySupported means the remote peer accepts trickled candidates.
	ICETrickleCapabilitySupported
	// ICETrickleCapabilityUnsupported means the remote peer did not advertise trickle support.
	ICETrickleCapabilityUnsupported
)

func (t ICETrickleCapability) String() string {
	switch t {
	case ICETrickleCapabilitySupported:
		return "supported"
	case ICETrickleCapabilityUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// SessionDescription holds a local or remote SDP offer/answer/pranswer.
type SessionDescription struct {
	Type SDPType `json:"type"`
	SDP  string  `json:"sdp"`

	// parsed is populated lazily by Unmarshal and is never set by callers.
	parsed *sdp.SessionDescription
}

// Unmarshal parses SDP into the pion/sdp object model, caching the result.
func (sd *SessionDescription) Unmarshal() (*sdp.SessionDescription, error) {
	sd.parsed = &sdp.SessionDescription{}
	err := sd.parsed.UnmarshalString(sd.SDP)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSDPUnmarshalling, err)
	}

	return sd.parsed, nil
}

func hasICETrickleOption(desc *sdp.SessionDescription) bool {
	if value, ok := desc.Attribute(sdp.AttrKeyICEOptions); ok && hasTrickleOptionValue(value) {
		return true
	}

	for _, media := range desc.MediaDescriptions {
		if value, ok := media.Attribute(sdp.AttrKeyICEOptions); ok && hasTrickleOptionValue(value) {
			return true
		}
	}

	return false
}

func hasTrickleOptionValue(value string) bool {
	return slices.Contains(strings.Fields(value), "trickle")
}

// OfferAnswerOptions is the shared base for options that steer offer/answer
// creation.
type OfferAnswerOptions struct {
	// VoiceActivityDetection requests the peer enable/disable VAD hinting.
	VoiceActivityDetection bool

	// ICETricklingSupported adds "a=ice-options:trickle" to the generated
	// SDP, per https://datatracker.ietf.org/doc/html/rfc9725#section-4.3.3.
	ICETricklingSupported bool
}

// AnswerOptions controls CreateAnswer.
type AnswerOptions struct {
	OfferAnswerOptions
}

// OfferOptions controls CreateOffer.
type OfferOptions struct {
	OfferAnswerOptions

	// ICERestart forces new local ICE credentials into the generated offer.
	ICERestart bool
}

// NetworkType is the address family and transport a gathered candidate was
// found on.
type NetworkType int

const (
	// NetworkTypeUDP4 is UDP over IPv4.
	NetworkTypeUDP4 NetworkType = iota + 1

	// NetworkTypeUDP6 is UDP over IPv6.
	NetworkTypeUDP6

	// NetworkTypeTCP4 is TCP over IPv4.
	NetworkTypeTCP4

	// NetworkTypeTCP6 is TCP over IPv6.
	NetworkTypeTCP6
)

const (
	networkTypeUDP4Str = "udp4"
	networkTypeUDP6Str = "udp6"
	networkTypeTCP4Str = "tcp4"
	networkTypeTCP6Str = "tcp6"
)

var supportedNetworkTypes = []NetworkType{
	NetworkTypeUDP4,
	NetworkTypeUDP6,
	// TCP candidates are not gathered yet.
}

func (t NetworkType) String() string {
	switch t {
	case NetworkTypeUDP4:
		return networkTypeUDP4Str
	case NetworkTypeUDP6:
		return networkTypeUDP6Str
	case NetworkTypeTCP4:
		return networkTypeTCP4Str
	case NetworkTypeTCP6:
		return networkTypeTCP6Str
	default:
		return ErrUnknownType.Error()
	}
}

func newNetworkType(raw string) (NetworkType, error) {
	switch raw {
	case networkTypeUDP4Str:
		return NetworkTypeUDP4, nil
	case networkTypeUDP6Str:
		return NetworkTypeUDP6, nil
	case networkTypeTCP4Str:
		return NetworkTypeTCP4, nil
	case networkTypeTCP6Str:
		return NetworkTypeTCP6, nil
	default:
		return NetworkType(Unknown), fmt.Errorf("unknown network type: %s", raw)
	}
}

// SCTPCapabilities advertises limits of the SCTPTransport, namely the
// largest message size it is willing to accept.
type SCTPCapabilities struct {
	MaxMessageSize uint32 `json:"maxMessageSize"`
}

// DataChannelParameters mirrors the negotiated configuration of a
// DataChannel back to the application.
type DataChannelParameters struct {
	Label             string  `json:"label"`
	ID                uint16  `json:"id"`
	Ordered           bool    `json:"ordered"`
	MaxPacketLifeTime *uint16 `json:"maxPacketLifeTime"`
	MaxRetransmits    *uint16 `json:"maxRetransmits"`
}

// DataChannelState is the lifecycle stage of a DataChannel's underlying
// SCTP stream.
type DataChannelState int

const (
	// DataChannelStateUnknown is the enum's zero-value.
	DataChannelStateUnknown DataChannelState = iota

	// DataChannelStateConnecting is the initial state, before the stream is
	// open for use.
	DataChannelStateConnecting

	// DataChannelStateOpen means the stream is established and usable.
	DataChannelStateOpen

	// DataChannelStateClosing means teardown has begun.
	DataChannelStateClosing

	// DataChannelStateClosed means the stream is gone or never came up.
	DataChannelStateClosed
)

const (
	dataChannelStateConnectingStr = "connecting"
	dataChannelStateOpenStr       = "open"
	dataChannelStateClosingStr    = "closing"
	dataChannelStateClosedStr     = "closed"
)

func newDataChannelState(raw string) DataChannelState {
	switch raw {
	case dataChannelStateConnectingStr:
		return DataChannelStateConnecting
	case dataChannelStateOpenStr:
		return DataChannelStateOpen
	case dataChannelStateClosingStr:
		return DataChannelStateClosing
	case dataChannelStateClosedStr:
		return DataChannelStateClosed
	default:
		return DataChannelStateUnknown
	}
}

func (t DataChannelState) String() string {
	switch t {
	case DataChannelStateConnecting:
		return dataChannelStateConnectingStr
	case DataChannelStateOpen:
		return dataChannelStateOpenStr
	case DataChannelStateClosing:
		return dataChannelStateClosingStr
	case DataChannelStateClosed:
		return dataChannelStateClosedStr
	default:
		return ErrUnknownType.Error()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t DataChannelState) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataChannelState) UnmarshalText(b []byte) error {
	*t = newDataChannelState(string(b))
	return nil
}
