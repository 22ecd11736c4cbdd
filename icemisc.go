// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package webrtc

// ICEParameters includes the ICE username fragment and password and other
// ICE-related parameters, exchanged via SDP between two peers.
type ICEParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	ICELite          bool   `json:"iceLite"`
}

// ICEComponent describes if the ice transport is used for RTP or RTCP.
type ICEComponent int

const (
	// ICEComponentUnknown is the enum's zero-value.
	ICEComponentUnknown ICEComponent = iota

	// ICEComponentRTP indicates that the ICE Transport is used for RTP (or
	// RTCP multiplexing), as defined in RFC 5245 Section 4.1.1.1.
	ICEComponentRTP

	// ICEComponentRTCP indicates that the ICE Transport is used for RTCP.
	ICEComponentRTCP
)

func newICEComponent(raw string) ICEComponent {
	switch raw {
	case "rtp":
		return ICEComponentRTP
	case "rtcp":
		return ICEComponentRTCP
	default:
		return ICEComponentUnknown
	}
}

func (c ICEComponent) String() string {
	switch c {
	case ICEComponentRTP:
		return "rtp"
	case ICEComponentRTCP:
		return "rtcp"
	default:
		return ErrUnknownType.Error()
	}
}

// ICEGatheringState describes the state of the candidate gathering process.
type ICEGatheringState int

const (
	// ICEGatheringStateUnknown is the enum's zero-value.
	ICEGatheringStateUnknown ICEGatheringState = iota

	// ICEGatheringStateNew indicates that any of the ICETransports are
	// in the "new" gathering state and none of the transports are in the
	// "gathering" state, or there are no transports.
	ICEGatheringStateNew

	// ICEGatheringStateGathering indicates that any of the ICETransports
	// are in the "gathering" state.
	ICEGatheringStateGathering

	// ICEGatheringStateComplete indicates that at least one ICETransport
	// exists, and all ICETransports are in the "completed" gathering state.
	ICEGatheringStateComplete
)

// NewICEGatheringState takes a string and converts it to ICEGatheringState.
func NewICEGatheringState(raw string) ICEGatheringState {
	switch raw {
	case "new":
		return ICEGatheringStateNew
	case "gathering":
		return ICEGatheringStateGathering
	case "complete":
		return ICEGatheringStateComplete
	default:
		return ICEGatheringStateUnknown
	}
}

func (s ICEGatheringState) String() string {
	switch s {
	case ICEGatheringStateNew:
		return "new"
	case ICEGatheringStateGathering:
		return "gathering"
	case ICEGatheringStateComplete:
		return "complete"
	default:
		return ErrUnknownType.Error()
	}
}

// ICEConnectionState indicates signaling state of the ICE Connection.
type ICEConnectionState int

const (
	// ICEConnectionStateUnknown is the enum's zero-value.
	ICEConnectionStateUnknown ICEConnectionState = iota

	// ICEConnectionStateNew indicates that any of the ICETransports are
	// in the "new" state and none of the transports are in the
	// "checking", "disconnected" or "failed" state, or there are no
	// transports.
	ICEConnectionStateNew

	// ICEConnectionStateChecking indicates that any of the ICETransports
	// are in the "checking" state and none of them are in the
	// "disconnected" or "failed" state.
	ICEConnectionStateChecking

	// ICEConnectionStateConnected indicates that all ICETransports are
	// in the "connected", "completed" or "closed" state and at least one
	// of them is in the "connected" state.
	ICEConnectionStateConnected

	// ICEConnectionStateCompleted indicates that all ICETransports are
	// in the "completed" or "closed" state and at least one of them is
	// in the "completed" state.
	ICEConnectionStateCompleted

	// ICEConnectionStateDisconnected indicates that any of the
	// ICETransports are in the "disconnected" state and none of them are
	// in the "failed" state.
	ICEConnectionStateDisconnected

	// ICEConnectionStateFailed indicates that any of the ICETransports
	// are in the "failed" state.
	ICEConnectionStateFailed

	// ICEConnectionStateClosed indicates that the PeerConnection's
	// isClosed is true.
	ICEConnectionStateClosed
)

// NewICEConnectionState takes a string and converts it into an
// ICEConnectionState.
func NewICEConnectionState(raw string) ICEConnectionState {
	switch raw {
	case "new":
		return ICEConnectionStateNew
	case "checking":
		return ICEConnectionStateChecking
	case "connected":
		return ICEConnectionStateConnected
	case "completed":
		return ICEConnectionStateCompleted
	case "disconnected":
		return ICEConnectionStateDisconnected
	case "failed":
		return ICEConnectionStateFailed
	case "closed":
		return ICEConnectionStateClosed
	default:
		return ICEConnectionStateUnknown
	}
}

func (c ICEConnectionState) String() string {
	switch c {
	case ICEConnectionStateNew:
		return "new"
	case ICEConnectionStateChecking:
		return "checking"
	case ICEConnectionStateConnected:
		return "connected"
	case ICEConnectionStateCompleted:
		return "completed"
	case ICEConnectionStateDisconnected:
		return "disconnected"
	case ICEConnectionStateFailed:
		return "failed"
	case ICEConnectionStateClosed:
		return "closed"
	default:
		return ErrUnknownType.Error()
	}
}
