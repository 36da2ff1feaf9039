package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDecodeBase64(t *testing.T) {
	b, err := DecodeBase64(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
	if err != nil {
		t.Fatalf("DecodeBase64() error = %v", err)
	}
	if len(b) != 3 || b[0] != 1 {
		t.Errorf("DecodeBase64() = %v", b)
	}

	if _, err := DecodeBase64("not!!base64"); !errors.Is(err, ErrDecode) {
		t.Errorf("malformed input error = %v, want ErrDecode", err)
	}
}

func TestToSampleBufferNormalization(t *testing.T) {
	// One sample, value -32768, must decode to exactly -1.0.
	buf, err := ToSampleBuffer([]byte{0x00, 0x80}, 24000, 1)
	if err != nil {
		t.Fatalf("ToSampleBuffer() error = %v", err)
	}
	if buf.FrameCount() != 1 {
		t.Fatalf("FrameCount() = %d, want 1", buf.FrameCount())
	}
	if got := buf.Data[0][0]; got != -1.0 {
		t.Errorf("sample = %v, want -1.0", got)
	}
}

func TestToSampleBufferDeinterleaves(t *testing.T) {
	// Two frames of stereo: L=1000 R=-1000, L=2000 R=-2000.
	raw := make([]byte, 8)
	samples := []int16{1000, -1000, 2000, -2000}
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}

	buf, err := ToSampleBuffer(raw, 44100, 2)
	if err != nil {
		t.Fatalf("ToSampleBuffer() error = %v", err)
	}
	if buf.FrameCount() != 2 {
		t.Fatalf("FrameCount() = %d, want 2", buf.FrameCount())
	}
	if buf.Data[0][1] != 2000.0/32768.0 {
		t.Errorf("left[1] = %v", buf.Data[0][1])
	}
	if buf.Data[1][0] != -1000.0/32768.0 {
		t.Errorf("right[0] = %v", buf.Data[1][0])
	}
}

func TestToSampleBufferTruncatesPartialFrame(t *testing.T) {
	// 5 bytes at stereo 16-bit is one full frame plus a dangling byte.
	buf, err := ToSampleBuffer([]byte{0, 0, 0, 0, 9}, 24000, 2)
	if err != nil {
		t.Fatalf("ToSampleBuffer() error = %v", err)
	}
	if buf.FrameCount() != 1 {
		t.Errorf("FrameCount() = %d, want 1", buf.FrameCount())
	}
}

func TestRoundTrip(t *testing.T) {
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	buf, err := ToSampleBuffer(raw, 24000, 1)
	if err != nil {
		t.Fatalf("ToSampleBuffer() error = %v", err)
	}

	for i := 0; i < buf.FrameCount(); i++ {
		want := float64(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
		if math.Abs(buf.Data[0][i]-want) > 1.0/32768.0 {
			t.Fatalf("sample %d = %v, want %v", i, buf.Data[0][i], want)
		}
	}
}

func TestDuration(t *testing.T) {
	raw := make([]byte, 24000*2) // one second of mono 16-bit at 24 kHz
	buf, err := ToSampleBuffer(raw, 24000, 1)
	if err != nil {
		t.Fatalf("ToSampleBuffer() error = %v", err)
	}
	if buf.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", buf.Duration())
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	payload := make([]byte, 480)
	wav := EncodeWAV(payload, DefaultFormat())

	if len(wav) != 44+len(payload) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(payload))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(payload)) {
		t.Errorf("RIFF chunk size = %d, want %d", got, 36+len(payload))
	}
	if string(wav[12:16]) != "fmt " || string(wav[36:40]) != "data" {
		t.Error("missing fmt/data markers")
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Errorf("sample rate = %d, want 24000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 48000 {
		t.Errorf("byte rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(payload)) {
		t.Errorf("data chunk size = %d, want %d", got, len(payload))
	}
}

func TestEncodeWAVPassesPayloadThrough(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	wav := EncodeWAV(payload, DefaultFormat())
	for i, b := range payload {
		if wav[44+i] != b {
			t.Fatalf("payload byte %d = %d, want %d", i, wav[44+i], b)
		}
	}
}

func TestWAVDataURI(t *testing.T) {
	uri := WAVDataURI([]byte{1, 2, 3})
	if !strings.HasPrefix(uri, "data:audio/wav;base64,") {
		t.Fatalf("prefix missing: %q", uri)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:audio/wav;base64,"))
	if err != nil {
		t.Fatalf("payload not base64: %v", err)
	}
	if len(decoded) != 3 || decoded[2] != 3 {
		t.Errorf("decoded payload = %v", decoded)
	}
}
