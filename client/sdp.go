package client

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// NewOffer produces a real SDP offer. The relay treats it as an opaque
// payload; a real description exercises the same shapes a browser sends.
func NewOffer() (json.RawMessage, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	defer func() { _ = pc.Close() }()

	if _, err := pc.CreateDataChannel("signaling", nil); err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	return json.Marshal(offer)
}

// NewAnswer produces a real SDP answer for the given offer.
func NewAnswer(rawOffer json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(rawOffer, &offer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offer: %w", err)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	defer func() { _ = pc.Close() }()

	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}
	return json.Marshal(answer)
}
