// Package encoding implements the histogram wire format (§4.10): a plain
// binary framing, a deflate-compressed wrapper around it, and the
// interval-log line grammar built on top of both.
package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	hdr "github.com/grafana/hdrhistogram"
)

const (
	cookiePlainV2      = 0x1c849301
	cookieCompressedV2 = 0x1c849303
	wordSizeMask        = 0xf0
	// defaultWordSize is recorded in every cookie this encoder produces.
	// The wire word_size describes the encoder's original in-memory
	// counter width; the payload itself is always a stream of varints
	// regardless, so a decoder never needs to special-case it.
	defaultWordSize = 8
)

type frameHeader struct {
	Cookie                         int32
	PayloadLength                  int32
	NormalizingIndexOffset         int32
	SignificantValueDigits         int32
	LowestDiscernibleValue         int64
	HighestTrackableValue          int64
	IntegerToDoubleConversionRatio float64
}

// Encode serializes h into the plain V2 binary framing.
func Encode(h *hdr.Histogram) ([]byte, error) {
	payload := encodePayload(h)

	hdrBuf := &bytes.Buffer{}
	header := frameHeader{
		Cookie:                         cookiePlainV2 + defaultWordSize<<4,
		PayloadLength:                  int32(len(payload)),
		NormalizingIndexOffset:         h.NormalizingIndexOffset(),
		SignificantValueDigits:         int32(h.SignificantFigures()),
		LowestDiscernibleValue:         h.LowestDiscernibleValue(),
		HighestTrackableValue:          h.HighestTrackableValue(),
		IntegerToDoubleConversionRatio: h.IntegerToDoubleConversionRatio(),
	}
	if err := binary.Write(hdrBuf, binary.BigEndian, header); err != nil {
		return nil, hdr.WrapError(hdr.Malformed, "writing plain frame header", err)
	}
	hdrBuf.Write(payload)
	return hdrBuf.Bytes(), nil
}

// EncodeCompressed serializes h into the deflate-compressed framing: a
// small header wrapping a deflated copy of the plain encoding.
func EncodeCompressed(h *hdr.Histogram) ([]byte, error) {
	plain, err := Encode(h)
	if err != nil {
		return nil, err
	}

	var deflated bytes.Buffer
	w, err := flate.NewWriter(&deflated, flate.DefaultCompression)
	if err != nil {
		return nil, hdr.WrapError(hdr.DeflateFailure, "creating deflate writer", err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, hdr.WrapError(hdr.DeflateFailure, "deflating plain frame", err)
	}
	if err := w.Close(); err != nil {
		return nil, hdr.WrapError(hdr.DeflateFailure, "closing deflate writer", err)
	}

	out := &bytes.Buffer{}
	var hdrBuf [8]byte
	binary.BigEndian.PutUint32(hdrBuf[0:4], uint32(cookieCompressedV2+defaultWordSize<<4))
	binary.BigEndian.PutUint32(hdrBuf[4:8], uint32(deflated.Len()))
	out.Write(hdrBuf[:])
	out.Write(deflated.Bytes())
	return out.Bytes(), nil
}

// encodePayload writes the counts array as a run of (index_delta,
// count_delta) ZigZag-LEB128 varint pairs. A negative index_delta is a
// standalone run-length marker for a stretch of zero counters with no
// accompanying count_delta; trailing zero counters need no marker at all,
// since the decoder's freshly allocated array already reads zero there.
func encodePayload(h *hdr.Histogram) []byte {
	counts := h.CountsSnapshot()
	n := int32(len(counts))

	var buf bytes.Buffer
	var varintScratch [binary.MaxVarintLen64]byte
	writeVarint := func(v int64) {
		m := binary.PutVarint(varintScratch[:], v)
		buf.Write(varintScratch[:m])
	}

	lastIndex := int32(0)
	i := int32(0)
	for i < n {
		if counts[i] == 0 {
			runStart := i
			for i < n && counts[i] == 0 {
				i++
			}
			if i >= n {
				break
			}
			writeVarint(int64(-(i - runStart)))
			lastIndex += i - runStart
			continue
		}
		writeVarint(int64(i - lastIndex))
		writeVarint(counts[i])
		lastIndex = i
		i++
	}
	return buf.Bytes()
}

// Decode parses a plain or compressed frame and returns the resulting
// histogram. If target is non-nil, its counts are overwritten in place and
// it is returned instead of a freshly allocated histogram; target must
// already share the encoded histogram's construction parameters.
func Decode(data []byte, target *hdr.Histogram) (*hdr.Histogram, error) {
	if len(data) < 4 {
		return nil, hdr.NewError(hdr.Malformed, "frame shorter than a cookie")
	}
	cookie := int32(binary.BigEndian.Uint32(data[0:4]))

	switch {
	case isPlainCookie(cookie):
		return decodePlainFrame(data, target)
	case isCompressedCookie(cookie):
		if len(data) < 8 {
			return nil, hdr.NewError(hdr.Malformed, "compressed frame shorter than its header")
		}
		deflatedLen := binary.BigEndian.Uint32(data[4:8])
		if uint32(len(data)-8) < deflatedLen {
			return nil, hdr.NewError(hdr.Malformed, "compressed payload shorter than declared length")
		}
		r := flate.NewReader(bytes.NewReader(data[8 : 8+int(deflatedLen)]))
		defer r.Close()
		plain, err := io.ReadAll(r)
		if err != nil {
			return nil, hdr.WrapError(hdr.InflateFailure, "inflating compressed frame", err)
		}
		return decodePlainFrame(plain, target)
	default:
		return nil, hdr.NewError(hdr.CookieMismatch, fmt.Sprintf("unrecognized cookie 0x%08x", uint32(cookie)))
	}
}

func isPlainCookie(cookie int32) bool {
	return cookie&^wordSizeMask == cookiePlainV2
}

func isCompressedCookie(cookie int32) bool {
	return cookie&^wordSizeMask == cookieCompressedV2
}

func decodePlainFrame(data []byte, target *hdr.Histogram) (*hdr.Histogram, error) {
	r := bytes.NewReader(data)
	var header frameHeader
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, hdr.WrapError(hdr.Malformed, "reading plain frame header", err)
	}
	if !isPlainCookie(header.Cookie) {
		return nil, hdr.NewError(hdr.CookieMismatch, fmt.Sprintf("unrecognized plain cookie 0x%08x", uint32(header.Cookie)))
	}

	payload := data[len(data)-r.Len():]
	if int32(len(payload)) < header.PayloadLength {
		return nil, hdr.NewError(hdr.Malformed, "payload shorter than declared length")
	}
	payload = payload[:header.PayloadLength]

	h := target
	if h == nil {
		var err error
		h, err = hdr.New(header.LowestDiscernibleValue, header.HighestTrackableValue, int(header.SignificantValueDigits),
			hdr.WithNormalizingIndexOffset(header.NormalizingIndexOffset),
			hdr.WithIntegerToDoubleConversionRatio(header.IntegerToDoubleConversionRatio))
		if err != nil {
			return nil, hdr.WrapError(hdr.Malformed, "constructing histogram from decoded parameters", err)
		}
	} else {
		if h.LowestDiscernibleValue() != header.LowestDiscernibleValue ||
			h.HighestTrackableValue() != header.HighestTrackableValue ||
			h.SignificantFigures() != int64(header.SignificantValueDigits) ||
			h.NormalizingIndexOffset() != header.NormalizingIndexOffset {
			return nil, hdr.NewError(hdr.IncompatibleHistograms, "target histogram does not match the encoded parameters")
		}
		h.Reset()
	}

	if err := decodeCountsInto(h, payload); err != nil {
		return nil, err
	}
	h.ReestablishTotalCount()
	h.ReestablishMinMax()
	return h, nil
}

func decodeCountsInto(h *hdr.Histogram, payload []byte) error {
	r := bytes.NewReader(payload)
	lastIndex := int32(0)
	countsLen := h.CountsLen()
	for r.Len() > 0 {
		indexDelta, err := binary.ReadVarint(r)
		if err != nil {
			return hdr.WrapError(hdr.Malformed, "reading index_delta", err)
		}
		if indexDelta < 0 {
			lastIndex += int32(-indexDelta)
			continue
		}
		lastIndex += int32(indexDelta)
		count, err := binary.ReadVarint(r)
		if err != nil {
			return hdr.WrapError(hdr.Malformed, "reading count_delta", err)
		}
		if lastIndex < 0 || lastIndex >= countsLen {
			return hdr.NewError(hdr.Malformed, "decoded index out of range")
		}
		if err := h.SetCountAtIndex(lastIndex, count); err != nil {
			return err
		}
	}
	return nil
}
