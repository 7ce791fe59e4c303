package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// fallbackRate is assumed when Pulse does not report a source sample spec.
const fallbackRate = 48000

// PulseBackend talks to the local PulseAudio (or pipewire-pulse) server.
type PulseBackend struct{}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("murmur"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// Devices returns available Pulse input sources with default/availability
// metadata.
func (b *PulseBackend) Devices() ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultID := ""
	if def, err := client.DefaultSource(); err == nil {
		defaultID = def.ID()
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			Default:     info.SourceName == defaultID,
			Available:   sourceAvailable(info),
		})
	}
	return devices, nil
}

// DefaultDevice resolves the server default source.
func (b *PulseBackend) DefaultDevice() (Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return Device{}, err
	}
	defer client.Close()

	source, err := client.DefaultSource()
	if err != nil {
		return Device{}, fmt.Errorf("read default source: %w", err)
	}
	return Device{
		ID:          source.ID(),
		Description: source.Name(),
		Default:     true,
		Available:   true,
	}, nil
}

// Open creates a mono float32 record stream on the source's native rate.
// Rate conversion is the recorder's job, not the server's.
func (b *PulseBackend) Open(deviceID string, onChunk func([]float32)) (Stream, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	var source *pulse.Source
	if deviceID == "" || deviceID == "default" {
		source, err = client.DefaultSource()
	} else {
		source, err = client.SourceByID(deviceID)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", deviceID, err)
	}

	rate := nativeRate(client, source.ID())

	writer := pulse.Float32Writer(func(p []float32) (int, error) {
		onChunk(p)
		return len(p), nil
	})
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(rate),
		pulse.RecordMediaName("murmur dictation"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	return &pulseStream{client: client, stream: stream, rate: rate}, nil
}

// nativeRate looks up the source's configured sample rate.
func nativeRate(client *pulse.Client, sourceID string) int {
	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return fallbackRate
	}
	for _, info := range infos {
		if info == nil || info.SourceName != sourceID {
			continue
		}
		if info.SampleSpec.Rate > 0 {
			return int(info.SampleSpec.Rate)
		}
	}
	return fallbackRate
}

type pulseStream struct {
	client *pulse.Client
	stream *pulse.RecordStream
	rate   int
	once   sync.Once
}

func (s *pulseStream) Start() {
	s.stream.Start()
}

func (s *pulseStream) Rate() int {
	return s.rate
}

func (s *pulseStream) Close() error {
	s.once.Do(func() {
		s.stream.Stop()
		s.stream.Close()
		s.client.Close()
	})
	return nil
}

// float32WriterFunc adapts a function to pulse's Float32Writer.
type float32WriterFunc func([]float32) (int, error)

func (f float32WriterFunc) WriteFloat32(p []float32) (int, error) {
	return f(p)
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
