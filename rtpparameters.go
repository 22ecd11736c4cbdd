package webrtc

// RTPParameters describes the codec and header-extension capabilities a
// PeerConnection advertises or has negotiated for one media kind. It backs
// the m= line generation in sdp.go and MediaEngine.updateFromRemoteDescription's
// payload-type bookkeeping; it carries no packetizer/depacketizer state since
// this module only needs it to describe and demultiplex RTP streams by SSRC,
// not to decode them.
type RTPParameters struct {
	Codecs           []RTPCodecParameters
	HeaderExtensions []RTPHeaderExtensionParameters
	RTCP             RTCPParameters
}

func (p RTPParameters) codecForPayloadType(payloadType PayloadType) (RTPCodecParameters, error) {
	for _, codec := range p.Codecs {
		if codec.PayloadType == payloadType {
			return codec, nil
		}
	}

	return RTPCodecParameters{}, ErrCodecNotFound
}
