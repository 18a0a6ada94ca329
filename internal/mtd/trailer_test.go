package mtd

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func sampleMeta() Meta {
	m := NewMeta(MergeDefaultOptions(Options{Path: "/tmp/out/file.bin", URL: "http://example.invalid/file.bin", Threads: 3}), 1000)
	m.ETag = `"abc123"`
	return m.Advance(0, 120).Advance(2, 7)
}

func TestTrailerRoundTrip(t *testing.T) {
	m := sampleMeta()
	size, err := TrailerSize(m)
	if err != nil {
		t.Fatal(err)
	}
	if size%TrailerBlockSize != 0 {
		t.Fatalf("TrailerSize = %d, not a multiple of %d", size, TrailerBlockSize)
	}
	block, err := EncodeTrailer(m, size)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(block)) != size {
		t.Fatalf("block is %d bytes, want %d", len(block), size)
	}
	got, err := DecodeTrailer(block)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Fatalf("DecodeTrailer = %+v, want %+v", got, m)
	}
}

func TestTrailerSizeFitsFinalMeta(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "f", Threads: 16}), 9_999_999_999)
	size, err := TrailerSize(m)
	if err != nil {
		t.Fatal(err)
	}
	final := m
	for i, r := range m.Threads {
		final = final.Advance(i, r.Len())
	}
	if _, err := EncodeTrailer(final, size); err != nil {
		t.Fatalf("final meta does not fit reserved trailer: %v", err)
	}
}

func TestEncodeTrailerOverflow(t *testing.T) {
	_, err := EncodeTrailer(sampleMeta(), 64)
	if !errors.Is(err, ErrTrailerOverflow) {
		t.Fatalf("err = %v, want ErrTrailerOverflow", err)
	}
}

func TestReadTrailer(t *testing.T) {
	m := sampleMeta()
	size, _ := TrailerSize(m)
	block, _ := EncodeTrailer(m, size)
	file := append(testData(int(m.TotalBytes)), block...)

	got, gotSize, err := ReadTrailer(bytes.NewReader(file), int64(len(file)))
	if err != nil {
		t.Fatal(err)
	}
	if gotSize != size || !reflect.DeepEqual(got, m) {
		t.Fatalf("ReadTrailer = %+v (%d), want %+v (%d)", got, gotSize, m, size)
	}
}

func TestReadTrailerMalformed(t *testing.T) {
	m := sampleMeta()
	size, _ := TrailerSize(m)
	block, _ := EncodeTrailer(m, size)
	content := testData(int(m.TotalBytes))

	tests := []struct {
		name string
		file []byte
	}{
		{"empty", nil},
		{"no trailer", content},
		{"truncated trailer", append(append([]byte(nil), content...), block[100:]...)},
		{"missing content", block},
		{"extra bytes", append(append(append([]byte(nil), content...), block...), 'x')},
		{"corrupt json", append(append([]byte(nil), content...), corrupt(block, 0, '}')...)},
		{"bad footer digits", append(append([]byte(nil), content...), corrupt(block, len(block)-3, 'z')...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadTrailer(bytes.NewReader(tt.file), int64(len(tt.file)))
			if err == nil {
				t.Fatal("ReadTrailer accepted a malformed file")
			}
		})
	}
}

// sparseFile is a large working file of zeros ending in footer.
type sparseFile struct {
	size   int64
	footer []byte
}

func (f sparseFile) ReadAt(p []byte, off int64) (int, error) {
	clear(p)
	start := f.size - int64(len(f.footer))
	for i := range p {
		if pos := off + int64(i); pos >= start && pos < f.size {
			p[i] = f.footer[pos-start]
		}
	}
	return len(p), nil
}

func TestReadTrailerRejectsOversizedFooter(t *testing.T) {
	file := sparseFile{size: 8 << 30, footer: []byte(fmt.Sprintf("\n#mtd%010d\n", 4<<30))}
	_, _, err := ReadTrailer(file, file.size)
	if !errors.Is(err, ErrMalformedTrailer) {
		t.Fatalf("err = %v, want ErrMalformedTrailer", err)
	}
}

func TestTrailerSizeRejectsHugeThreadCount(t *testing.T) {
	m := NewMeta(MergeDefaultOptions(Options{Path: "f", Threads: 500000}), 1<<40)
	if _, err := TrailerSize(m); !errors.Is(err, ErrTrailerOverflow) {
		t.Fatalf("err = %v, want ErrTrailerOverflow", err)
	}
}

func TestDecodeTrailerRejectsInvalidMeta(t *testing.T) {
	m := sampleMeta()
	m.Offsets[1] = 5
	size, _ := TrailerSize(m)
	block, _ := EncodeTrailer(m, size)
	_, err := DecodeTrailer(block)
	if !errors.Is(err, ErrMalformedTrailer) {
		t.Fatalf("err = %v, want ErrMalformedTrailer", err)
	}
	if !strings.Contains(err.Error(), "thread 1") {
		t.Fatalf("error does not name the thread: %v", err)
	}
}

func corrupt(block []byte, at int, b byte) []byte {
	out := append([]byte(nil), block...)
	out[at] = b
	return out
}
