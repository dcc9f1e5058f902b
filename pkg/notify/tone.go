package notify

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

const (
	SampleRate   = 44100
	Frequency    = 880.0
	ToneDuration = 150 * time.Millisecond

	startGain = 0.3
	endGain   = 0.01
)

// Tone synthesises the notification cue: a sine at Frequency whose gain
// falls exponentially from startGain to endGain over ToneDuration.
func Tone() []int16 {
	n := int(float64(SampleRate) * ToneDuration.Seconds())
	out := make([]int16, n)
	ratio := endGain / startGain
	for i := range out {
		t := float64(i) / SampleRate
		gain := startGain * math.Pow(ratio, float64(i)/float64(n))
		out[i] = int16(math.Round(gain * math.Sin(2*math.Pi*Frequency*t) * math.MaxInt16))
	}
	return out
}

// EncodeWAV wraps 16-bit mono PCM in a RIFF/WAVE container.
func EncodeWAV(samples []int16, rate int) []byte {
	dataLen := uint32(len(samples) * 2)
	var buf bytes.Buffer
	buf.Grow(44 + int(dataLen))

	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	buf.WriteString("RIFF")
	w(36 + dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1)) // PCM
	w(uint16(1)) // mono
	w(uint32(rate))
	w(uint32(rate * 2))
	w(uint16(2))
	w(uint16(16))
	buf.WriteString("data")
	w(dataLen)
	w(samples)
	return buf.Bytes()
}
