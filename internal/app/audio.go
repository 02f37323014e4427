package app

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"gones/internal/bus"
)

// sampleRate is the PCM rate the APU's resampler and the ebiten audio
// context both run at; the two must agree or audio.NewContext panics.
const sampleRate = 44100

// apuStream adapts the APU's float32 sample queue to the io.Reader shape
// ebiten's audio.Context expects: signed 16-bit little-endian stereo PCM.
type apuStream struct {
	mu      sync.Mutex
	bus     *bus.Bus
	backlog []byte
}

func newAPUStream(b *bus.Bus) *apuStream {
	return &apuStream{bus: b}
}

// Read drains the APU's mono sample buffer, duplicates each sample to
// both channels, and satisfies as much of p as is available. ebiten's
// player calls Read repeatedly off its own goroutine; samples produced
// between calls are carried over in backlog rather than dropped.
func (s *apuStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.backlog) == 0 {
		samples := s.bus.GetAudioSamples()
		if len(samples) > 0 {
			s.backlog = make([]byte, 0, len(samples)*4)
			for _, v := range samples {
				if v > 1 {
					v = 1
				} else if v < -1 {
					v = -1
				}
				pcm := int16(v * 32767)
				lo := byte(pcm)
				hi := byte(pcm >> 8)
				s.backlog = append(s.backlog, lo, hi, lo, hi) // L, R
			}
		}
	}

	if len(s.backlog) == 0 {
		// Nothing generated yet; emit silence so the player doesn't
		// starve and stall the audio callback.
		n := len(p)
		for i := 0; i < n; i++ {
			p[i] = 0
		}
		return n, nil
	}

	n := copy(p, s.backlog)
	s.backlog = s.backlog[n:]
	return n, nil
}

// audioPlayer owns the ebiten audio context and player feeding from the
// console's APU; it is the DOMAIN STACK's consumer of internal/apu's
// already-generated samples.
type audioPlayer struct {
	context *audio.Context
	player  *audio.Player
	stream  *apuStream
}

// newAudioPlayer wires an ebiten audio player to the bus's APU. Returns
// nil, err if the platform has no audio device (headless CI, containers);
// callers treat that as non-fatal and run muted.
func newAudioPlayer(b *bus.Bus) (*audioPlayer, error) {
	b.SetAudioSampleRate(sampleRate)
	ctx := audio.NewContext(sampleRate)
	stream := newAPUStream(b)
	player, err := ctx.NewPlayer(stream)
	if err != nil {
		return nil, err
	}
	return &audioPlayer{context: ctx, player: player, stream: stream}, nil
}

func (a *audioPlayer) Start() {
	if a != nil && a.player != nil {
		a.player.Play()
	}
}

func (a *audioPlayer) SetVolume(v float64) {
	if a != nil && a.player != nil {
		a.player.SetVolume(v)
	}
}

func (a *audioPlayer) Close() error {
	if a == nil || a.player == nil {
		return nil
	}
	return a.player.Close()
}
