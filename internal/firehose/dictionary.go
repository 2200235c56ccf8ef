package firehose

import (
	"os"

	"github.com/klauspost/compress/zstd"
)

// LoadDictionary reads a zstd dictionary from disk. Jetstream publishes
// its current dictionary alongside the service; operators fetch it once
// and point the consumer at the local copy via Config.ZstdDictionary.
func LoadDictionary(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// newDecoder builds a zstd.Decoder, optionally primed with a shared
// dictionary. A single decoder is reused across the consumer's
// lifetime; DecodeAll on it is safe to call from one goroutine at a
// time, which matches the consumer's single-reader loop.
func newDecoder(dictionary []byte) (*zstd.Decoder, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if len(dictionary) > 0 {
		opts = append(opts, zstd.WithDecoderDicts(dictionary))
	}
	return zstd.NewReader(nil, opts...)
}

// looksCompressed checks for the zstd magic number so plain-JSON frames
// (compression disabled, or a frame that slipped through uncompressed)
// aren't sent through the decoder.
func looksCompressed(data []byte) bool {
	return len(data) >= 4 &&
		data[0] == 0x28 && data[1] == 0xB5 && data[2] == 0x2F && data[3] == 0xFD
}
