package export

import (
	"bytes"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4"
)

// CompressAlgorithm selects how Dump compresses each row payload.
type CompressAlgorithm uint8

const (
	CompNone CompressAlgorithm = iota
	CompSnappy
	CompLz4
)

type Compressor func([]byte) []byte
type DeCompressor func([]byte) ([]byte, error)

func SnappyCompress(in []byte) []byte { return snappy.Encode(nil, in) }

func SnappyDeCompress(in []byte) ([]byte, error) { return snappy.Decode(nil, in) }

func Lz4Compress(in []byte) []byte {
	buf := &bytes.Buffer{}
	w := lz4.NewWriter(buf)
	w.NoChecksum = true
	if _, err := w.Write(in); err != nil {
		panic(err)
	}
	_ = w.Close()
	return buf.Bytes()
}

func Lz4DeCompress(in []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	r := lz4.NewReader(bytes.NewReader(in))
	_, err := buf.ReadFrom(r)
	return buf.Bytes(), err
}

func compressorFor(algo CompressAlgorithm) Compressor {
	switch algo {
	case CompSnappy:
		return SnappyCompress
	case CompLz4:
		return Lz4Compress
	default:
		return nil
	}
}

func decompressorFor(algo CompressAlgorithm) DeCompressor {
	switch algo {
	case CompSnappy:
		return SnappyDeCompress
	case CompLz4:
		return Lz4DeCompress
	default:
		return nil
	}
}
