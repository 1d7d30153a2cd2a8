// Package util contains byte-level audio helpers. Synthesized speech arrives
// as in-memory buffers, so durations are measured from the container headers
// instead of probing files on disk.
package util

import (
	"encoding/binary"
	"fmt"
)

// AudioDuration sniffs the container format and returns the playable duration
// in seconds. WAV (PCM) and MP3 are supported; WAV is what the synthesis
// endpoint returns, MP3 shows up when cache entries are hydrated from remote
// storage.
func AudioDuration(data []byte) (float64, error) {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return WavDuration(data)
	}
	if isMp3(data) {
		return Mp3Duration(data)
	}
	return 0, fmt.Errorf("unrecognized audio container (%d bytes)", len(data))
}

// WavDuration parses a RIFF/WAVE buffer and returns data-chunk length divided
// by the byte rate from the fmt chunk.
func WavDuration(data []byte) (float64, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE buffer")
	}

	var byteRate uint32
	var dataSize uint32
	haveFmt, haveData := false, false

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return 0, fmt.Errorf("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			haveFmt = true
		case "data":
			dataSize = chunkSize
			if remaining := uint32(len(data) - body); dataSize > remaining {
				// Streamed writers sometimes leave a stale size; trust the bytes.
				dataSize = remaining
			}
			haveData = true
		}

		if haveFmt && haveData {
			break
		}
		// Chunks are word-aligned.
		pos = body + int(chunkSize)
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !haveFmt || !haveData {
		return 0, fmt.Errorf("missing fmt or data chunk")
	}
	if byteRate == 0 {
		return 0, fmt.Errorf("fmt chunk has zero byte rate")
	}
	return float64(dataSize) / float64(byteRate), nil
}

// mpeg1Layer3Bitrates maps the 4-bit bitrate index to kbit/s for MPEG1 Layer III.
var mpeg1Layer3Bitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

// mpeg2Layer3Bitrates is the MPEG2/2.5 Layer III table.
var mpeg2Layer3Bitrates = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}

var mpegSampleRates = map[byte][3]int{
	3: {44100, 48000, 32000}, // MPEG1
	2: {22050, 24000, 16000}, // MPEG2
	0: {11025, 12000, 8000},  // MPEG2.5
}

// Mp3Duration walks MP3 frame headers and sums per-frame durations. ID3v2
// tags are skipped; VBR streams are handled because every frame is measured.
func Mp3Duration(data []byte) (float64, error) {
	pos := skipID3(data)
	var total float64
	frames := 0

	for pos+4 <= len(data) {
		if data[pos] != 0xFF || data[pos+1]&0xE0 != 0xE0 {
			pos++
			continue
		}

		versionBits := (data[pos+1] >> 3) & 0x03
		layerBits := (data[pos+1] >> 1) & 0x03
		if versionBits == 1 || layerBits != 1 { // reserved version or not Layer III
			pos++
			continue
		}

		bitrateIdx := (data[pos+2] >> 4) & 0x0F
		sampleIdx := (data[pos+2] >> 2) & 0x03
		padding := int((data[pos+2] >> 1) & 0x01)
		if sampleIdx == 3 || bitrateIdx == 0 || bitrateIdx == 15 {
			pos++
			continue
		}

		rates, ok := mpegSampleRates[versionBits]
		if !ok {
			pos++
			continue
		}
		sampleRate := rates[sampleIdx]

		var bitrate, samplesPerFrame int
		if versionBits == 3 {
			bitrate = mpeg1Layer3Bitrates[bitrateIdx] * 1000
			samplesPerFrame = 1152
		} else {
			bitrate = mpeg2Layer3Bitrates[bitrateIdx] * 1000
			samplesPerFrame = 576
		}
		if bitrate == 0 {
			pos++
			continue
		}

		frameLen := samplesPerFrame/8*bitrate/sampleRate + padding
		if frameLen <= 0 {
			pos++
			continue
		}

		total += float64(samplesPerFrame) / float64(sampleRate)
		frames++
		pos += frameLen
	}

	if frames == 0 {
		return 0, fmt.Errorf("no MP3 frames found")
	}
	return total, nil
}

func isMp3(data []byte) bool {
	pos := skipID3(data)
	return pos+2 <= len(data) && data[pos] == 0xFF && data[pos+1]&0xE0 == 0xE0 || hasID3(data)
}

func hasID3(data []byte) bool {
	return len(data) >= 3 && string(data[0:3]) == "ID3"
}

func skipID3(data []byte) int {
	if !hasID3(data) || len(data) < 10 {
		return 0
	}
	// Syncsafe 28-bit size.
	size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
	pos := 10 + size
	if pos > len(data) {
		return 0
	}
	return pos
}
