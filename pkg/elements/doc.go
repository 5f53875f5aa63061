// Package elements provides the concrete element kinds of gizplay:
//
//	uridecodebin   opens a URI and exposes one src port per decoded stream
//	audioconvert   converts the channel count of raw audio
//	audioresample  converts the sample rate of raw audio
//	fakesink       consumes audio without output, optionally in real time
//	filesink       writes raw audio to a local path or an s3:// object
//	autoaudiosink  plays audio on the default output device
//
// Register adds them to a pipeline.Factory. NewPlaybin wires the usual
// decode, convert, resample and sink chain.
package elements
