// Package audio groups the raw-audio helpers used by the playback elements.
//
// Sub-packages:
//
//   - pcm: S16LE interleaved format descriptor, tone generation and
//     adapters between PCM byte streams and beep streamers
//   - resampler: sample-rate and channel-count conversion of PCM streams
//
// Example usage:
//
//	format := pcm.Format{SampleRate: 44100, Channels: 2}
//	tone := pcm.NewTone(format, 440, 30*time.Second)
//
//	out, err := resampler.New(tone, format, pcm.Format{SampleRate: 48000, Channels: 2})
package audio
