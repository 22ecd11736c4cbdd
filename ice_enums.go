// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package webrtc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
)

// ICECandidateType is the RFC 8445 candidate category: host, server
// reflexive, peer reflexive, or relay.
type ICECandidateType int

const (
	// ICECandidateTypeHost is a candidate bound directly to a local
	// interface address.
	ICECandidateTypeHost ICECandidateType = iota + 1

	// ICECandidateTypeSrflx is a candidate whose address/port were
	// allocated by a NAT in front of us, discovered via a STUN binding
	// request.
	ICECandidateTypeSrflx

	// ICECandidateTypePrflx is a candidate discovered mid-connectivity-check
	// because the peer's request arrived from an address we hadn't seen.
	ICECandidateTypePrflx

	// ICECandidateTypeRelay is a candidate allocated on a TURN server.
	ICECandidateTypeRelay
)

const (
	iceCandidateTypeHostStr  = "host"
	iceCandidateTypeSrflxStr = "srflx"
	iceCandidateTypePrflxStr = "prflx"
	iceCandidateTypeRelayStr = "relay"
)

func newICECandidateType(raw string) (ICECandidateType, error) {
	switch raw {
	case iceCandidateTypeHostStr:
		return ICECandidateTypeHost, nil
	case iceCandidateTypeSrflxStr:
		return ICECandidateTypeSrflx, nil
	case iceCandidateTypePrflxStr:
		return ICECandidateTypePrflx, nil
	case iceCandidateTypeRelayStr:
		return ICECandidateTypeRelay, nil
	default:
		return ICECandidateType(Unknown), fmt.Errorf("unknown ICE candidate type: %s", raw)
	}
}

func (t ICECandidateType) String() string {
	switch t {
	case ICECandidateTypeHost:
		return iceCandidateTypeHostStr
	case ICECandidateTypeSrflx:
		return iceCandidateTypeSrflxStr
	case ICECandidateTypePrflx:
		return iceCandidateTypePrflxStr
	case ICECandidateTypeRelay:
		return iceCandidateTypeRelayStr
	default:
		return ErrUnknownType.Error()
	}
}

// ICECredentialType is the scheme a TURN/STUN ICEServer's Credential
// field uses: a plain password or an OAuth token.
type ICECredentialType int

const (
	// ICECredentialTypePassword is a long-term username/password pair.
	ICECredentialTypePassword ICECredentialType = iota + 1

	// ICECredentialTypeOauth is a token minted by an OAuth authorization
	// server, per RFC 7635.
	ICECredentialTypeOauth
)

const (
	iceCredentialTypePasswordStr = "password"
	iceCredentialTypeOauthStr    = "oauth"
)

func newICECredentialType(raw string) ICECredentialType {
	switch raw {
	case iceCredentialTypePasswordStr:
		return ICECredentialTypePassword
	case iceCredentialTypeOauthStr:
		return ICECredentialTypeOauth
	default:
		return ICECredentialType(Unknown)
	}
}

func (t ICECredentialType) String() string {
	switch t {
	case Unknown:
		return ""
	case ICECredentialTypePassword:
		return iceCredentialTypePasswordStr
	case ICECredentialTypeOauth:
		return iceCredentialTypeOauthStr
	default:
		return ErrUnknownType.Error()
	}
}

// UnmarshalJSON parses the JSON-encoded data and stores the result.
func (t *ICECredentialType) UnmarshalJSON(b []byte) error {
	var val string
	if err := json.Unmarshal(b, &val); err != nil {
		return err
	}

	tmp := newICECredentialType(val)
	if tmp == ICECredentialType(Unknown) && val != "" {
		return fmt.Errorf("%w: (%s)", errInvalidICECredentialTypeString, val)
	}

	*t = tmp
	return nil
}

// MarshalJSON returns the JSON encoding.
func (t ICECredentialType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// ICEProtocol is the transport (UDP or TCP) an ICE server URL uses.
type ICEProtocol int

const (
	// ICEProtocolUnknown is the enum's zero-value.
	ICEProtocolUnknown ICEProtocol = iota

	// ICEProtocolUDP is a UDP transport.
	ICEProtocolUDP

	// ICEProtocolTCP is a TCP transport.
	ICEProtocolTCP
)

const (
	iceProtocolUDPStr = "udp"
	iceProtocolTCPStr = "tcp"
)

// NewICEProtocol parses a URL scheme/transport token into an ICEProtocol.
func NewICEProtocol(raw string) (ICEProtocol, error) {
	switch {
	case strings.EqualFold(iceProtocolUDPStr, raw):
		return ICEProtocolUDP, nil
	case strings.EqualFold(iceProtocolTCPStr, raw):
		return ICEProtocolTCP, nil
	default:
		return ICEProtocolUnknown, fmt.Errorf("%w: %s", errICEProtocolUnknown, raw)
	}
}

func (t ICEProtocol) String() string {
	switch t {
	case ICEProtocolUDP:
		return iceProtocolUDPStr
	case ICEProtocolTCP:
		return iceProtocolTCPStr
	default:
		return ErrUnknownType.Error()
	}
}

// ICERole identifies which side of the pair drives candidate-pair
// nomination: the controlling agent picks the final pair, the controlled
// agent waits for it.
type ICERole int

const (
	// ICERoleUnknown is the enum's zero-value.
	ICERoleUnknown ICERole = iota

	// ICERoleControlling selects and nominates the final candidate pair.
	ICERoleControlling

	// ICERoleControlled waits for the controlling agent's nomination.
	ICERoleControlled
)

const (
	iceRoleControllingStr = "controlling"
	iceRoleControlledStr  = "controlled"
)

func newICERole(raw string) ICERole {
	switch raw {
	case iceRoleControllingStr:
		return ICERoleControlling
	case iceRoleControlledStr:
		return ICERoleControlled
	default:
		return ICERoleUnknown
	}
}

func (t ICERole) String() string {
	switch t {
	case ICERoleControlling:
		return iceRoleControllingStr
	case ICERoleControlled:
		return iceRoleControlledStr
	default:
		return ErrUnknownType.Error()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ICERole) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ICERole) UnmarshalText(b []byte) error {
	*t = newICERole(string(b))
	return nil
}

// ICETransportPolicy restricts which candidate types a PeerConnection may
// use for connectivity checks.
type ICETransportPolicy int

// ICEGatherPolicy is the ORTC name for ICETransportPolicy.
type ICEGatherPolicy = ICETransportPolicy

const (
	// ICETransportPolicyAll permits any candidate type.
	ICETransportPolicyAll ICETransportPolicy = iota

	// ICETransportPolicyRelay restricts connectivity checks to relay
	// candidates, such as those obtained from a TURN server.
	ICETransportPolicyRelay
)

const (
	iceTransportPolicyRelayStr = "relay"
	iceTransportPolicyAllStr   = "all"
)

// NewICETransportPolicy parses a string into an ICETransportPolicy.
func NewICETransportPolicy(raw string) ICETransportPolicy {
	switch raw {
	case iceTransportPolicyRelayStr:
		return ICETransportPolicyRelay
	case iceTransportPolicyAllStr:
		return ICETransportPolicyAll
	default:
		return ICETransportPolicy(Unknown)
	}
}

func (t ICETransportPolicy) String() string {
	switch t {
	case ICETransportPolicyRelay:
		return iceTransportPolicyRelayStr
	case ICETransportPolicyAll:
		return iceTransportPolicyAllStr
	default:
		return ErrUnknownType.Error()
	}
}

// ICETransportState mirrors the pion/ice connection state for the
// PeerConnection-facing ICETransport.
type ICETransportState int

const (
	// ICETransportStateUnknown is the enum's zero-value.
	ICETransportStateUnknown ICETransportState = iota

	// ICETransportStateNew is waiting for remote candidates.
	ICETransportStateNew

	// ICETransportStateChecking has at least one remote candidate and is
	// running connectivity checks.
	ICETransportStateChecking

	// ICETransportStateConnected has a working candidate pair but may still
	// probe others for a better one.
	ICETransportStateConnected

	// ICETransportStateCompleted has settled on a candidate pair and
	// stopped probing.
	ICETransportStateCompleted

	// ICETransportStateFailed exhausted every candidate pair without
	// finding one that passes connectivity checks.
	ICETransportStateFailed

	// ICETransportStateDisconnected lost its working pair and is waiting
	// to see if connectivity returns before declaring Failed.
	ICETransportStateDisconnected

	// ICETransportStateClosed has shut down and stopped responding to
	// STUN requests.
	ICETransportStateClosed
)

const (
	iceTransportStateNewStr          = "new"
	iceTransportStateCheckingStr     = "checking"
	iceTransportStateConnectedStr    = "connected"
	iceTransportStateCompletedStr    = "completed"
	iceTransportStateFailedStr       = "failed"
	iceTransportStateDisconnectedStr = "disconnected"
	iceTransportStateClosedStr       = "closed"
)

func newICETransportState(raw string) ICETransportState {
	switch raw {
	case iceTransportStateNewStr:
		return ICETransportStateNew
	case iceTransportStateCheckingStr:
		return ICETransportStateChecking
	case iceTransportStateConnectedStr:
		return ICETransportStateConnected
	case iceTransportStateCompletedStr:
		return ICETransportStateCompleted
	case iceTransportStateFailedStr:
		return ICETransportStateFailed
	case iceTransportStateDisconnectedStr:
		return ICETransportStateDisconnected
	case iceTransportStateClosedStr:
		return ICETransportStateClosed
	default:
		return ICETransportStateUnknown
	}
}

func (c ICETransportState) String() string {
	switch c {
	case ICETransportStateNew:
		return iceTransportStateNewStr
	case ICETransportStateChecking:
		return iceTransportStateCheckingStr
	case ICETransportStateConnected:
		return iceTransportStateConnectedStr
	case ICETransportStateCompleted:
		return iceTransportStateCompletedStr
	case ICETransportStateFailed:
		return iceTransportStateFailedStr
	case ICETransportStateDisconnected:
		return iceTransportStateDisconnectedStr
	case ICETransportStateClosed:
		return iceTransportStateClosedStr
	default:
		return ErrUnknownType.Error()
	}
}

func newICETransportStateFromICE(i ice.ConnectionState) ICETransportState {
	switch i {
	case ice.ConnectionStateNew:
		return ICETransportStateNew
	case ice.ConnectionStateChecking:
		return ICETransportStateChecking
	case ice.ConnectionStateConnected:
		return ICETransportStateConnected
	case ice.ConnectionStateCompleted:
		return ICETransportStateCompleted
	case ice.ConnectionStateFailed:
		return ICETransportStateFailed
	case ice.ConnectionStateDisconnected:
		return ICETransportStateDisconnected
	case ice.ConnectionStateClosed:
		return ICETransportStateClosed
	default:
		return ICETransportStateUnknown
	}
}

func (c ICETransportState) toICE() ice.ConnectionState {
	switch c {
	case ICETransportStateNew:
		return ice.ConnectionStateNew
	case ICETransportStateChecking:
		return ice.ConnectionStateChecking
	case ICETransportStateConnected:
		return ice.ConnectionStateConnected
	case ICETransportStateCompleted:
		return ice.ConnectionStateCompleted
	case ICETransportStateFailed:
		return ice.ConnectionStateFailed
	case ICETransportStateDisconnected:
		return ice.ConnectionStateDisconnected
	case ICETransportStateClosed:
		return ice.ConnectionStateClosed
	default:
		return ice.ConnectionStateUnknown
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c ICETransportState) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ICETransportState) UnmarshalText(b []byte) error {
	*c = newICETransportState(string(b))
	return nil
}
