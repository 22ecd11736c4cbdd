package webrtc

import (
	"encoding/binary"
	"errors"
)

// DCEP message types (RFC 8832 section 5.1).
const (
	dcepMessageTypeAck  uint8 = 0x02
	dcepMessageTypeOpen uint8 = 0x03
)

// DCEP channel types (RFC 8832 section 5.2).
const (
	dcepChannelTypeReliable                = 0x00
	dcepChannelTypeReliableUnordered       = 0x80
	dcepChannelTypePartialReliableRexmit   = 0x01
	dcepChannelTypePartialReliableRexmitUnordered = 0x81
	dcepChannelTypePartialReliableTimed     = 0x02
	dcepChannelTypePartialReliableTimedUnordered  = 0x82
)

var errDCEPMessageTooShort = errors.New("dcep: message too short")

// dcepOpen is the DATA_CHANNEL_OPEN message body sent by whichever peer
// allocates the stream id (the offerer, by the even/odd parity rule).
type dcepOpen struct {
	ChannelType  uint8
	Priority     uint16
	Reliability  uint32
	Label        string
	Protocol     string
}

// marshal encodes the OPEN message per RFC 8832 section 5.1: a fixed
// 12-byte header (including the 1-byte message type) followed by Label
// then Protocol, each given by its preceding 16-bit length.
func (o *dcepOpen) marshal() []byte {
	buf := make([]byte, 12+len(o.Label)+len(o.Protocol))
	buf[0] = dcepMessageTypeOpen
	buf[1] = o.ChannelType
	binary.BigEndian.PutUint16(buf[2:4], o.Priority)
	binary.BigEndian.PutUint32(buf[4:8], o.Reliability)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(o.Label)))
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(o.Protocol)))
	copy(buf[12:], o.Label)
	copy(buf[12+len(o.Label):], o.Protocol)
	return buf
}

func parseDCEPOpen(b []byte) (*dcepOpen, error) {
	if len(b) < 12 {
		return nil, errDCEPMessageTooShort
	}
	labelLen := int(binary.BigEndian.Uint16(b[8:10]))
	protoLen := int(binary.BigEndian.Uint16(b[10:12]))
	if len(b) < 12+labelLen+protoLen {
		return nil, errDCEPMessageTooShort
	}
	return &dcepOpen{
		ChannelType: b[1],
		Priority:    binary.BigEndian.Uint16(b[2:4]),
		Reliability: binary.BigEndian.Uint32(b[4:8]),
		Label:       string(b[12 : 12+labelLen]),
		Protocol:    string(b[12+labelLen : 12+labelLen+protoLen]),
	}, nil
}

func dcepAck() []byte {
	return []byte{dcepMessageTypeAck}
}

// channelTypeFor maps an Ordered/MaxRetransmits/MaxPacketLifeTime triple
// onto the single DCEP ChannelType byte (RFC 8832 section 5.2).
func channelTypeFor(ordered bool, maxRetransmits, maxPacketLifeTime *uint16) (uint8, uint32) {
	switch {
	case maxRetransmits != nil:
		if ordered {
			return dcepChannelTypePartialReliableRexmit, uint32(*maxRetransmits)
		}
		return dcepChannelTypePartialReliableRexmitUnordered, uint32(*maxRetransmits)
	case maxPacketLifeTime != nil:
		if ordered {
			return dcepChannelTypePartialReliableTimed, uint32(*maxPacketLifeTime)
		}
		return dcepChannelTypePartialReliableTimedUnordered, uint32(*maxPacketLifeTime)
	default:
		if ordered {
			return dcepChannelTypeReliable, 0
		}
		return dcepChannelTypeReliableUnordered, 0
	}
}

// reliabilityFromChannelType is the inverse of channelTypeFor, used when
// accepting an incoming OPEN so the local DataChannel mirrors the
// initiator's requested semantics.
func reliabilityFromChannelType(channelType uint8, reliability uint32) (ordered bool, maxRetransmits, maxPacketLifeTime *uint16) {
	v := uint16(reliability)
	switch channelType {
	case dcepChannelTypeReliable:
		return true, nil, nil
	case dcepChannelTypeReliableUnordered:
		return false, nil, nil
	case dcepChannelTypePartialReliableRexmit:
		return true, &v, nil
	case dcepChannelTypePartialReliableRexmitUnordered:
		return false, &v, nil
	case dcepChannelTypePartialReliableTimed:
		return true, nil, &v
	case dcepChannelTypePartialReliableTimedUnordered:
		return false, nil, &v
	default:
		return true, nil, nil
	}
}
