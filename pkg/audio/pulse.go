package audio

import (
	"context"
	"fmt"
	"math"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// Sink is the state of one sink.
type Sink struct {
	Volume   float64
	Muted    bool
	Channels int
}

// Server answers requests against the sound server. PulseServer is the real
// one; tests substitute a fake.
type Server interface {
	DefaultSinkName(ctx context.Context) (string, error)
	Sink(ctx context.Context, name string) (Sink, error)
	SetSinkVolume(ctx context.Context, name string, channels int, v float64) error
	SetSinkMute(ctx context.Context, name string, muted bool) error
	Close()
}

// PulseServer speaks the native protocol to PulseAudio or PipeWire-Pulse.
type PulseServer struct {
	c *pulse.Client
}

// DialPulse connects to the server named by $PULSE_SERVER, or the default
// per-user socket.
func DialPulse() (*PulseServer, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("mgs"))
	if err != nil {
		return nil, fmt.Errorf("pulse: connect: %w", err)
	}
	return &PulseServer{c: c}, nil
}

// DefaultSinkName implements Server.
func (s *PulseServer) DefaultSinkName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var info proto.GetServerInfoReply
	if err := s.c.RawRequest(&proto.GetServerInfo{}, &info); err != nil {
		return "", fmt.Errorf("pulse: server info: %w", err)
	}
	if info.DefaultSinkName == "" {
		return "", ErrNoDefaultSink
	}
	return info.DefaultSinkName, nil
}

// Sink implements Server.
func (s *PulseServer) Sink(ctx context.Context, name string) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return Sink{}, err
	}
	var info proto.GetSinkInfoReply
	req := &proto.GetSinkInfo{SinkIndex: proto.Undefined, SinkName: name}
	if err := s.c.RawRequest(req, &info); err != nil {
		return Sink{}, fmt.Errorf("pulse: sink %s: %w", name, err)
	}
	return Sink{
		Volume:   percent(info.ChannelVolumes),
		Muted:    info.Mute,
		Channels: len(info.ChannelVolumes),
	}, nil
}

// SetSinkVolume implements Server.
func (s *PulseServer) SetSinkVolume(ctx context.Context, name string, channels int, v float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := &proto.SetSinkVolume{
		SinkIndex:      proto.Undefined,
		SinkName:       name,
		ChannelVolumes: channelVolumes(channels, v),
	}
	if err := s.c.RawRequest(req, nil); err != nil {
		return fmt.Errorf("pulse: set volume %s: %w", name, err)
	}
	return nil
}

// SetSinkMute implements Server.
func (s *PulseServer) SetSinkMute(ctx context.Context, name string, muted bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := &proto.SetSinkMute{SinkIndex: proto.Undefined, SinkName: name, Mute: muted}
	if err := s.c.RawRequest(req, nil); err != nil {
		return fmt.Errorf("pulse: set mute %s: %w", name, err)
	}
	return nil
}

// Close implements Server.
func (s *PulseServer) Close() {
	s.c.Close()
}

// percent reads the first channel as a whole percentage, the way pactl
// prints it.
func percent(cv proto.ChannelVolumes) float64 {
	if len(cv) == 0 {
		return 0
	}
	return math.Round(100 * float64(cv[0]) / float64(proto.VolumeNorm))
}

// channelVolumes spreads v percent over n channels. A sink always has at
// least one.
func channelVolumes(n int, v float64) proto.ChannelVolumes {
	n = max(n, 1)
	raw := uint32(math.Round(v / 100 * float64(proto.VolumeNorm)))
	cv := make(proto.ChannelVolumes, n)
	for i := range cv {
		cv[i] = raw
	}
	return cv
}

var _ Server = (*PulseServer)(nil)
