package engine

import "encoding/binary"

// DecodePCM16 converts canonical s16le bytes to the normalized float32
// samples inference backends consume. A trailing odd byte is dropped.
func DecodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	if n == 0 {
		return nil
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// DurationSeconds returns the play time of a canonical PCM buffer.
func DurationSeconds(pcm []byte) float64 {
	return float64(len(pcm)/2) / 16000.0
}
