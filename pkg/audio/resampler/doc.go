// Package resampler converts S16LE PCM streams between sample rates and
// channel layouts.
//
// A Resampler wraps an io.Reader producing audio in one pcm.Format and reads
// out the same audio in another:
//
//	src := pcm.Format{SampleRate: 44100, Channels: 2}
//	dst := pcm.Format{SampleRate: 48000, Channels: 1}
//	r, err := resampler.New(reader, src, dst)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	io.Copy(out, r)
//
// Channel conversion happens before rate conversion. Mono is duplicated when
// upmixing and stereo is averaged when downmixing. When the rates match the
// samples pass through untouched apart from channel conversion.
package resampler
