// Package pcm transcodes raw 16-bit PCM audio between the base64 payload
// the generation backend returns, an in-memory sample buffer for playback,
// and a canonical RIFF/WAVE container for export.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// ErrDecode reports malformed base64 or unusable PCM input.
var ErrDecode = fmt.Errorf("pcm: decode error")

// Format describes a raw PCM stream.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is what the speech backend emits: 24 kHz mono 16-bit.
func DefaultFormat() Format {
	return Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

// DecodeBase64 decodes a standard base64 payload into raw bytes.
func DecodeBase64(payload string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return b, nil
}

// SampleBuffer holds de-interleaved normalized samples, one slice per
// channel, each FrameCount() long.
type SampleBuffer struct {
	SampleRate int
	Channels   int
	Data       [][]float64
}

// FrameCount returns the number of frames per channel.
func (b *SampleBuffer) FrameCount() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the buffer's play time.
func (b *SampleBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.FrameCount()) / float64(b.SampleRate) * float64(time.Second))
}

// ToSampleBuffer interprets bytes as signed 16-bit little-endian interleaved
// samples and normalizes each to [-1.0, 1.0) by dividing by 32768. A trailing
// partial frame is truncated silently; the frame count is byteCount/2/channels.
func ToSampleBuffer(b []byte, sampleRate, channels int) (*SampleBuffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: invalid format %d Hz / %d channels", ErrDecode, sampleRate, channels)
	}

	frames := len(b) / 2 / channels
	buf := &SampleBuffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Data:       make([][]float64, channels),
	}
	for ch := 0; ch < channels; ch++ {
		buf.Data[ch] = make([]float64, frames)
		for i := 0; i < frames; i++ {
			raw := int16(binary.LittleEndian.Uint16(b[(i*channels+ch)*2:]))
			buf.Data[ch][i] = float64(raw) / 32768.0
		}
	}
	return buf, nil
}

// EncodeWAV wraps raw PCM bytes in a canonical 44-byte RIFF/WAVE header.
// The payload is passed through unmodified; declared sizes are exact so any
// standard media player can read the result.
func EncodeWAV(pcmBytes []byte, f Format) []byte {
	byteRate := f.SampleRate * f.Channels * f.BitsPerSample / 8
	blockAlign := f.Channels * f.BitsPerSample / 8
	dataSize := len(pcmBytes)

	out := make([]byte, 44+dataSize)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM audio format
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))
	copy(out[44:], pcmBytes)
	return out
}

// WAVDataURI base64-encodes a WAVE container with the MIME prefix needed to
// embed it in a document or play it directly.
func WAVDataURI(wav []byte) string {
	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav)
}
