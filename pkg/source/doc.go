// Package source opens media URIs and decodes them to raw PCM.
//
// Supported URIs:
//
//	file:///path/song.wav, /path/song.mp3     local files
//	http://host/song.mp3, https://...         ranged HTTP GET
//	s3://bucket/key.wav                       ranged S3 GetObject
//	ws://host/stream?rate=16000&channels=1    binary frames of raw S16LE
//	test://tone?freq=440&duration=30s&video=1 generated sine tone
//
// Containers are recognised by their magic bytes (RIFF/WAVE, ID3 or an MPEG
// frame sync). Files ending in .pcm or .raw are read as raw S16LE, with the
// format taken from the rate and channels query parameters.
//
// The result is a Media: a list of streams with their caps, and a reader of
// the interleaved S16LE audio stream.
package source
