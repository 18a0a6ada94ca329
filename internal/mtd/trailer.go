package mtd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
)

const (
	// TrailerBlockSize is the granularity of the reserved trailer area.
	TrailerBlockSize = 512
	// MaxTrailerSize bounds the trailer of any working file.
	MaxTrailerSize = 8 << 20

	footerPrefix = "\n#mtd"
	footerDigits = 10
	footerLen    = len(footerPrefix) + footerDigits + 1
)

// TrailerSize returns the number of bytes reserved after the content for the
// meta of a download. It accounts for every offset reaching its largest
// value, so the reservation never has to grow while the download runs.
func TrailerSize(m Meta) (int64, error) {
	worst := m
	worst.Offsets = slices.Clone(m.Offsets)
	for i := range worst.Offsets {
		worst.Offsets[i] = m.TotalBytes
	}
	payload, err := json.Marshal(worst)
	if err != nil {
		return 0, fmt.Errorf("encode meta: %w", err)
	}
	need := int64(len(payload) + footerLen)
	size := (need + TrailerBlockSize - 1) / TrailerBlockSize * TrailerBlockSize
	if size > MaxTrailerSize {
		return 0, fmt.Errorf("%w: %d threads need %d bytes", ErrTrailerOverflow, len(m.Threads), size)
	}
	return size, nil
}

// EncodeTrailer serializes m into a block of exactly size bytes: the JSON
// meta, space padding and a footer recording size.
func EncodeTrailer(m Meta, size int64) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	if int64(len(payload)+footerLen) > size {
		return nil, fmt.Errorf("%w: %d bytes into %d", ErrTrailerOverflow, len(payload)+footerLen, size)
	}
	block := make([]byte, size)
	n := copy(block, payload)
	for i := n; i < len(block)-footerLen; i++ {
		block[i] = ' '
	}
	copy(block[len(block)-footerLen:], fmt.Sprintf("%s%0*d\n", footerPrefix, footerDigits, size))
	return block, nil
}

// DecodeTrailer parses a block produced by EncodeTrailer.
func DecodeTrailer(block []byte) (Meta, error) {
	var m Meta
	if len(block) < footerLen {
		return m, fmt.Errorf("%w: block of %d bytes", ErrMalformedTrailer, len(block))
	}
	size, err := parseFooter(block[len(block)-footerLen:])
	if err != nil {
		return m, err
	}
	if size != int64(len(block)) {
		return m, fmt.Errorf("%w: footer records %d bytes, block has %d", ErrMalformedTrailer, size, len(block))
	}
	payload := bytes.TrimRight(block[:len(block)-footerLen], " ")
	if err := json.Unmarshal(payload, &m); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrMalformedTrailer, err)
	}
	if err := m.Validate(); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrMalformedTrailer, err)
	}
	return m, nil
}

func parseFooter(footer []byte) (int64, error) {
	if !bytes.HasPrefix(footer, []byte(footerPrefix)) || footer[len(footer)-1] != '\n' {
		return 0, fmt.Errorf("%w: missing footer", ErrMalformedTrailer)
	}
	digits := footer[len(footerPrefix) : len(footer)-1]
	size, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil || size < int64(footerLen) || size > MaxTrailerSize {
		return 0, fmt.Errorf("%w: bad footer %q", ErrMalformedTrailer, digits)
	}
	return size, nil
}

// ReadTrailer reads the meta stored at the tail of a working file of
// localSize bytes and returns it with the trailer size.
func ReadTrailer(r io.ReaderAt, localSize int64) (Meta, int64, error) {
	if localSize < int64(footerLen) {
		return Meta{}, 0, fmt.Errorf("%w: file of %d bytes", ErrMalformedTrailer, localSize)
	}
	footer := make([]byte, footerLen)
	if err := readFullAt(r, footer, localSize-int64(footerLen)); err != nil {
		return Meta{}, 0, fmt.Errorf("read trailer footer: %w", err)
	}
	size, err := parseFooter(footer)
	if err != nil {
		return Meta{}, 0, err
	}
	if size > localSize {
		return Meta{}, 0, fmt.Errorf("%w: trailer of %d bytes in a %d byte file", ErrMalformedTrailer, size, localSize)
	}
	block := make([]byte, size)
	if err := readFullAt(r, block, localSize-size); err != nil {
		return Meta{}, 0, fmt.Errorf("read trailer: %w", err)
	}
	m, err := DecodeTrailer(block)
	if err != nil {
		return Meta{}, 0, err
	}
	if m.TotalBytes+size != localSize {
		return Meta{}, 0, fmt.Errorf("%w: %d content bytes and %d trailer bytes in a %d byte file", ErrMalformedTrailer, m.TotalBytes, size, localSize)
	}
	return m, size, nil
}

func readFullAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
