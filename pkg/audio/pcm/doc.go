// Package pcm describes raw audio as it flows between playback elements:
// signed 16-bit little-endian samples, channels interleaved.
//
// Key types:
//   - Format: sample rate and channel count, with byte/duration arithmetic
//   - Tone: a seekable sine-wave generator used by test sources
//   - StreamReader: reads PCM bytes out of a beep.Streamer
//   - Streamer: feeds a PCM byte stream into beep (for speaker output)
//
// Example usage:
//
//	f := pcm.Format{SampleRate: 16000, Channels: 1}
//
//	// Bytes needed for 20ms of audio
//	n := f.BytesInDuration(20 * time.Millisecond)
//
//	// Playback time represented by n bytes
//	d := f.Duration(int64(n))
package pcm
