package media

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
)

// PacketReader is the read side of a remote track.
type PacketReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// TrackStats accumulates what arrived on one remote track.
type TrackStats struct {
	Packets uint64
	Bytes   uint64
	Lost    uint64
	LastSeq uint16
}

// Sink consumes remote tracks and keeps per-track stats.
type Sink struct {
	mu     sync.RWMutex
	tracks map[string]*TrackStats
}

func NewSink() *Sink {
	return &Sink{tracks: make(map[string]*TrackStats)}
}

// Consume reads packets until ctx is done or the track ends.
func (s *Sink) Consume(ctx context.Context, id string, src PacketReader) {
	logger := log.With().Str("module", "media").Str("track_id", id).Logger()
	s.mu.Lock()
	if _, ok := s.tracks[id]; !ok {
		s.tracks[id] = &TrackStats{}
	}
	s.mu.Unlock()

	started := false
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("sink ctx done")
			return
		default:
		}
		pkt, _, err := src.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info().Msg("remote track ended")
			} else {
				logger.Error().Err(err).Msg("read RTP error, stopping")
			}
			return
		}
		s.record(id, pkt, started)
		started = true
	}
}

func (s *Sink) record(id string, pkt *rtp.Packet, started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.tracks[id]
	if started {
		// uint16 arithmetic absorbs sequence wraparound
		if gap := pkt.SequenceNumber - st.LastSeq; gap > 1 && gap < 1<<15 {
			st.Lost += uint64(gap - 1)
		}
	}
	st.Packets++
	st.Bytes += uint64(len(pkt.Payload))
	st.LastSeq = pkt.SequenceNumber
}

func (s *Sink) Stats(id string) (TrackStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tracks[id]
	if !ok {
		return TrackStats{}, false
	}
	return *st, true
}

func (s *Sink) Total() (packets uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.tracks {
		packets += st.Packets
	}
	return packets
}
