// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package webrtc

// The well-known codec MIME types used to match an m= section's rtpmap
// against an RTPCodecCapability during SDP negotiation. Matching is case
// insensitive, so callers should compare via strings.EqualFold rather than
// ==.
const (
	MimeTypeH264      = "video/H264"
	MimeTypeH265      = "video/H265"
	MimeTypeOpus      = "audio/opus"
	MimeTypeVP8       = "video/VP8"
	MimeTypeVP9       = "video/VP9"
	MimeTypeAV1       = "video/AV1"
	MimeTypeG722      = "audio/G722"
	MimeTypePCMU      = "audio/PCMU"
	MimeTypePCMA      = "audio/PCMA"
	MimeTypeRTX       = "video/rtx"
	MimeTypeFlexFEC   = "video/flexfec"
	MimeTypeFlexFEC03 = "video/flexfec-03"
	MimeTypeUlpFEC    = "video/ulpfec"
)
