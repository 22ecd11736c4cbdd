// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package fmtp

import "strings"

type h264FMTP struct {
	parameters map[string]string
}

func (h *h264FMTP) MimeType() string {
	return "video/h264"
}

// Match implements the RFC 6184 profile-level-id / packetization-mode
// compatibility check: packetization-mode must match exactly (absent means
// 0), and the profile_idc byte of profile-level-id must match. The
// level_idc byte is deliberately not compared here, matching this module's
// existing H.264 negotiation behavior.
func (h *h264FMTP) Match(b FMTP) bool {
	c, ok := b.(*h264FMTP)
	if !ok {
		return false
	}

	hMode, hOK := h.parameters["packetization-mode"]
	if !hOK {
		hMode = "0"
	}
	cMode, cOK := c.parameters["packetization-mode"]
	if !cOK {
		cMode = "0"
	}
	if hMode != cMode {
		return false
	}

	hProfile, hOK := h.parameters["profile-level-id"]
	cProfile, cOK := c.parameters["profile-level-id"]
	if !hOK || !cOK || len(hProfile) < 2 || len(cProfile) < 2 {
		return false
	}

	return strings.EqualFold(hProfile[:2], cProfile[:2])
}

func (h *h264FMTP) Parameter(key string) (string, bool) {
	v, ok := h.parameters[key]

	return v, ok
}
