//go:build !((linux && cgo) || windows || darwin)

package elements

// AudioAvailable reports whether autoaudiosink drives a real device in this
// build.
const AudioAvailable = false

// AutoAudioSink behaves like a synchronised fakesink in builds without
// audio support.
type AutoAudioSink struct {
	audioSink
}

func NewAutoAudioSink(name string) *AutoAudioSink {
	s := &AutoAudioSink{}
	s.init(s, KindAutoAudioSink, name, discard{}, true)
	return s
}
