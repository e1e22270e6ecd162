package main

import (
	"context"
	"errors"
	"os"

	"github.com/dkeye/Duet/internal/adapters/rtc"
	"github.com/dkeye/Duet/internal/client"
	"github.com/dkeye/Duet/internal/config"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/media"
	"github.com/dkeye/Duet/internal/negotiation"
	"github.com/dkeye/Duet/internal/ui"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func runCall(ctx context.Context, cfg *config.PeerConfig, room string) error {
	out := os.Stdout
	sink := media.NewSink()

	factory, err := rtc.NewFactory(rtc.Configuration(cfg.ICEServers),
		func(ctx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			sink.Consume(ctx, track.ID(), track)
		})
	if err != nil {
		return err
	}

	var source negotiation.MediaSource = media.SyntheticSource{}
	if noMedia {
		source = media.Unavailable{}
	}

	c, err := client.Dial(ctx, cfg.ServerURL)
	if err != nil {
		return err
	}
	defer c.Close()

	s := negotiation.NewSession(negotiation.Config{
		Room:     room,
		Timeout:  cfg.Negotiation.Timeout,
		Media:    source,
		Peers:    factory,
		Signaler: c,
	})
	s.OnStateChange(func(st negotiation.State, _ error) { ui.PrintState(out, st) })
	s.Start(ctx)

	call := client.NewCall(c, room, s)
	call.OnJoined = func(room string, role domain.Role) { ui.PrintRoom(out, room, string(role)) }

	err = call.Run(ctx)
	log.Info().Str("module", "peer").Uint64("rtp_packets", sink.Total()).Msg("call finished")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
