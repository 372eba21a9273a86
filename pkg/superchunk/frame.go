package superchunk

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/compression"
	"github.com/ajitpratap0/chunkbench/pkg/tuner"
)

// Frame layout:
//
//	magic "CBSF" | version u8 | index length u32 (little endian) |
//	CBOR index | chunk payloads in index order
//
// The index is encoded with Core Deterministic Encoding (RFC 8949 §4.2), so
// the same container always produces the same bytes.
const (
	frameMagic      = "CBSF"
	frameVersion    = 1
	framePrefixSize = 4 + 1 + 4
)

// FrameExtension is the file extension used for written frames.
const FrameExtension = ".cbsf"

type frameIndex struct {
	TypeSize int          `cbor:"1,keyasint"`
	NBytes   int64        `cbor:"2,keyasint"`
	CBytes   int64        `cbor:"3,keyasint"`
	Chunks   []frameChunk `cbor:"4,keyasint"`
	Root     []byte       `cbor:"5,keyasint,omitempty"`
}

type frameChunk struct {
	Algorithm string `cbor:"1,keyasint"`
	Level     int    `cbor:"2,keyasint"`
	Filter    uint8  `cbor:"3,keyasint"`
	Threads   int    `cbor:"4,keyasint"`
	NBytes    int    `cbor:"5,keyasint"`
	CBytes    int    `cbor:"6,keyasint"`
	Digest    []byte `cbor:"7,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("superchunk: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("superchunk: CBOR decoder initialization failed: " + err.Error())
	}
}

// Root returns the BLAKE3 digest over the chunk digests in order, or false
// when the container was built without checksums.
func (s *Schunk) Root() (Digest, bool) {
	if !s.cfg.Checksums || len(s.records) == 0 {
		return Digest{}, false
	}
	h := blake3.New()
	for i := range s.records {
		_, _ = h.Write(s.records[i].Digest[:])
	}
	var root Digest
	copy(root[:], h.Sum(nil))
	return root, true
}

// WriteTo serialises a sealed container as a frame.
func (s *Schunk) WriteTo(w io.Writer) (int64, error) {
	if !s.sealed {
		return 0, bencherrors.New(bencherrors.ErrorTypeInvalidState, "frame of unsealed container")
	}

	index := frameIndex{
		TypeSize: s.cfg.TypeSize,
		NBytes:   s.nbytes,
		CBytes:   s.cbytes,
		Chunks:   make([]frameChunk, len(s.records)),
	}
	for i, rec := range s.records {
		fc := frameChunk{
			Algorithm: string(rec.Params.Algorithm),
			Level:     int(rec.Params.Level),
			Filter:    uint8(rec.Params.Filter),
			Threads:   rec.Params.Threads,
			NBytes:    rec.NBytes,
			CBytes:    len(rec.Payload),
		}
		if rec.HasDigest {
			fc.Digest = append([]byte(nil), rec.Digest[:]...)
		}
		index.Chunks[i] = fc
	}
	if root, ok := s.Root(); ok {
		index.Root = root[:]
	}

	encoded, err := encMode.Marshal(index)
	if err != nil {
		return 0, bencherrors.Wrap(err, bencherrors.ErrorTypeInternal, "encode frame index")
	}

	prefix := make([]byte, 0, framePrefixSize)
	prefix = append(prefix, frameMagic...)
	prefix = append(prefix, frameVersion)
	prefix = binary.LittleEndian.AppendUint32(prefix, uint32(len(encoded)))

	var written int64
	for _, part := range [][]byte{prefix, encoded} {
		n, err := w.Write(part)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	for i := range s.records {
		n, err := w.Write(s.records[i].Payload)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Frame returns the serialised form of a sealed container.
func (s *Schunk) Frame() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(framePrefixSize + int(s.cbytes) + 64*len(s.records))
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFrame reopens a frame as a sealed container whose chunks can be
// decompressed. Payloads alias data. Decompression uses cfg's thread count
// and checksum setting; the remaining fields come from the frame.
func (e *Engine) ReadFrame(data []byte, cfg Config) (*Schunk, error) {
	if len(data) < framePrefixSize || string(data[:4]) != frameMagic {
		return nil, bencherrors.New(bencherrors.ErrorTypeCodec, "not a superchunk frame")
	}
	if data[4] != frameVersion {
		return nil, bencherrors.Newf(bencherrors.ErrorTypeCodec, "unsupported frame version %d", data[4])
	}
	indexLen := int(binary.LittleEndian.Uint32(data[5:9]))
	if framePrefixSize+indexLen > len(data) {
		return nil, bencherrors.New(bencherrors.ErrorTypeCodec, "truncated frame index")
	}

	var index frameIndex
	if err := decMode.Unmarshal(data[framePrefixSize:framePrefixSize+indexLen], &index); err != nil {
		return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeCodec, "decode frame index")
	}

	cfg.TypeSize = index.TypeSize
	cfg.ThreadsDecompress = max(1, cfg.ThreadsDecompress)
	cfg.Checksums = cfg.Checksums && len(index.Root) > 0

	s := &Schunk{
		cfg:        cfg.clone(),
		tuner:      tuner.NewFixed(tuner.Params{}),
		compressor: e.compressor,
		logger:     e.logger,
		records:    make([]Record, len(index.Chunks)),
		sealed:     true,
	}

	offset := framePrefixSize + indexLen
	for i, fc := range index.Chunks {
		if fc.CBytes < 0 || offset+fc.CBytes > len(data) {
			return nil, bencherrors.Newf(bencherrors.ErrorTypeCodec, "truncated frame payload for chunk %d", i)
		}
		alg, err := compression.ParseAlgorithm(fc.Algorithm)
		if err != nil {
			return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeCodec, "frame chunk algorithm")
		}
		rec := Record{
			Params: tuner.Params{
				Algorithm: alg,
				Level:     compression.Level(fc.Level),
				Filter:    compression.Filter(fc.Filter),
				Threads:   fc.Threads,
			},
			Payload: data[offset : offset+fc.CBytes],
			NBytes:  fc.NBytes,
		}
		if cfg.Checksums && len(fc.Digest) == len(rec.Digest) {
			copy(rec.Digest[:], fc.Digest)
			rec.HasDigest = true
		}
		s.records[i] = rec
		s.nbytes += int64(fc.NBytes)
		s.cbytes += int64(fc.CBytes)
		offset += fc.CBytes
	}

	if s.nbytes != index.NBytes || s.cbytes != index.CBytes {
		return nil, bencherrors.New(bencherrors.ErrorTypeCodec, "frame totals do not match its chunks").
			WithDetail("nbytes", index.NBytes).
			WithDetail("cbytes", index.CBytes)
	}
	if root, ok := s.Root(); ok && !bytes.Equal(root[:], index.Root) {
		return nil, bencherrors.New(bencherrors.ErrorTypeCodec, "frame root digest mismatch")
	}
	return s, nil
}
