package webrtc

import (
	"context"
	"errors"
	"fmt"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/pkg/utils"

	"github.com/pion/webrtc/v3"
)

// StaticSource provides sample-fed local tracks. A terminal client has no
// capture devices; embedders write encoded frames into the tracks returned
// by Acquire (they are *webrtc.TrackLocalStaticSample).
type StaticSource struct {
	Audio bool
	Video bool
}

var _ ports.MediaSource = StaticSource{}

func (s StaticSource) Acquire(ctx context.Context) (*ports.LocalMedia, error) {
	if !s.Audio && !s.Video {
		return nil, &domain.MediaError{Device: "any", Cause: errors.New("no audio or video requested")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.MediaError{Device: "any", Cause: err}
	}

	streamID := "roomlink-" + utils.NewInstanceID()
	media := &ports.LocalMedia{Stop: func() {}}

	if s.Audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio",
			streamID,
		)
		if err != nil {
			return nil, &domain.MediaError{Device: "microphone", Cause: err}
		}
		media.Audio = track
	}

	if s.Video {
		track, err := NewVideoTrack("camera", streamID)
		if err != nil {
			return nil, &domain.MediaError{Device: "camera", Cause: err}
		}
		media.Video = track
	}

	return media, nil
}

// NewVideoTrack creates a VP8 sample track, e.g. for a shared screen
// passed to Manager.ReplaceVideo.
func NewVideoTrack(id, streamID string) (*webrtc.TrackLocalStaticSample, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		id,
		streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s track: %w", id, err)
	}
	return track, nil
}
