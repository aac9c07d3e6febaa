package convert

import "bytes"

// Container signatures that mark input as encoded rather than a bare
// canonical PCM stream.
var containerMagics = [][]byte{
	[]byte("RIFF"),             // WAV
	[]byte("OggS"),             // Ogg/Opus/Vorbis
	[]byte("fLaC"),             // FLAC
	[]byte("ID3"),              // MP3 with ID3 tag
	[]byte("FORM"),             // AIFF
	{0x1A, 0x45, 0xDF, 0xA3},   // Matroska/WebM
}

// IsCanonical reports whether raw looks like a bare canonical PCM
// stream. Browser streaming clients send raw little-endian samples with
// no header, so anything without a known container signature passes
// through untouched.
func IsCanonical(raw []byte) bool {
	if len(raw) == 0 {
		return true
	}
	for _, magic := range containerMagics {
		if bytes.HasPrefix(raw, magic) {
			return false
		}
	}
	// ISO BMFF (m4a/mp4/mov) carries "ftyp" at offset 4.
	if len(raw) >= 8 && bytes.Equal(raw[4:8], []byte("ftyp")) {
		return false
	}
	// MPEG audio frame sync: 11 set bits.
	if len(raw) >= 2 && raw[0] == 0xFF && raw[1]&0xE0 == 0xE0 {
		return false
	}
	return true
}
