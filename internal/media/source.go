// Package media provides the local capture and remote track consumers used by the peer binary.
package media

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/negotiation"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

const (
	DefaultFrame    = 20 * time.Millisecond
	DefaultStreamID = "duet"
)

// opusSilence is a single Opus frame of digital silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SyntheticSource captures nothing: it produces an Opus track of silence.
// Enough for a headless peer to negotiate and exchange RTP.
type SyntheticSource struct {
	StreamID string
	Frame    time.Duration
}

func (s SyntheticSource) Acquire(ctx context.Context) (negotiation.LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	streamID := s.StreamID
	if streamID == "" {
		streamID = DefaultStreamID
	}
	frame := s.Frame
	if frame <= 0 {
		frame = DefaultFrame
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, err
	}

	c := &Capture{audio: track, stop: make(chan struct{})}
	c.wg.Add(1)
	go c.pump(frame)
	return c, nil
}

// Capture is an acquired synthetic capture.
type Capture struct {
	audio *webrtc.TrackLocalStaticSample
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func (c *Capture) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{c.audio}
}

func (c *Capture) pump(frame time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.audio.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: frame}); err != nil {
				log.Debug().Err(err).Str("module", "media").Msg("write sample")
			}
		}
	}
}

func (c *Capture) Close() error {
	c.once.Do(func() {
		close(c.stop)
		c.wg.Wait()
		log.Debug().Str("module", "media").Msg("capture stopped")
	})
	return nil
}

// Unavailable is a MediaSource that always fails, for peers running without capture devices.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Acquire(context.Context) (negotiation.LocalMedia, error) {
	reason := u.Reason
	if reason == nil {
		reason = negotiation.ErrDeviceNotFound
	}
	return nil, reason
}
