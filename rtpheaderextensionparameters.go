package webrtc

// RTPHeaderExtensionParameters dictionary enables a header extension
// to be configured for use within an RTPSender or RTPReceiver.
type RTPHeaderExtensionParameters struct {
	ID        int
	direction string
	URI       string
}
