package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// TestHeaderSize verifies the header struct maps exactly onto 348 bytes
func TestHeaderSize(t *testing.T) {
	if got := binary.Size(Header{}); got != HeaderSize {
		t.Fatalf("Expected header size %d, got %d", HeaderSize, got)
	}
}

// TestWriteReadRoundTrip writes a small volume and reads it back, both plain
// and gzip-compressed
func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dims := []int{4, 3, 2}
	h := NewHeader(dims, [3]float64{2, 2, 2.5})

	data := make([]float64, 4*3*2)
	for i := range data {
		data[i] = float64(i) * 0.5
	}

	for _, name := range []string{"vol.nii", "vol.nii.gz"} {
		path := filepath.Join(dir, name)
		if err := Write(path, &Image{Header: h, Data: data}); err != nil {
			t.Fatalf("Write %s failed: %v", name, err)
		}

		img, err := Read(path)
		if err != nil {
			t.Fatalf("Read %s failed: %v", name, err)
		}

		gotDims := img.Header.Dims()
		if len(gotDims) != 3 || gotDims[0] != 4 || gotDims[1] != 3 || gotDims[2] != 2 {
			t.Errorf("%s: expected dims %v, got %v", name, dims, gotDims)
		}
		for i := range data {
			if img.Data[i] != data[i] {
				t.Fatalf("%s: voxel %d expected %g, got %g", name, i, data[i], img.Data[i])
			}
		}
		if a := img.Header.Affine(); a[2][2] != 2.5 {
			t.Errorf("%s: expected z scaling 2.5, got %g", name, a[2][2])
		}
	}
}

// TestDecodeScaledInt16 verifies integer storage with scl_slope/scl_inter
func TestDecodeScaledInt16(t *testing.T) {
	h := NewHeader([]int{2, 1, 1}, [3]float64{1, 1, 1})
	h.Datatype = DTInt16
	h.Bitpix = 16
	h.SclSlope = 2
	h.SclInter = 1

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		t.Fatal(err)
	}
	buf.Write([]byte{0, 0, 0, 0})
	binary.Write(&buf, binary.LittleEndian, []int16{3, -4})

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Data[0] != 7 || img.Data[1] != -7 {
		t.Errorf("Expected [7 -7], got %v", img.Data)
	}
}

// TestDecodeBigEndian verifies byte-order detection from sizeof_hdr
func TestDecodeBigEndian(t *testing.T) {
	h := NewHeader([]int{1, 1, 1}, [3]float64{1, 1, 1})
	h.Datatype = DTFloat64
	h.Bitpix = 64

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, &h)
	buf.Write([]byte{0, 0, 0, 0})
	binary.Write(&buf, binary.BigEndian, []float64{42.25})

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Data[0] != 42.25 {
		t.Errorf("Expected 42.25, got %g", img.Data[0])
	}
}

// TestDecodeRejectsGarbage verifies non-NIfTI input is refused
func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(make([]byte, 400)); err == nil {
		t.Error("Expected error for zeroed buffer")
	}
	if _, err := Decode([]byte("short")); err == nil {
		t.Error("Expected error for short buffer")
	}
}

// TestQformAffine verifies the identity quaternion reproduces pixdim and offsets
func TestQformAffine(t *testing.T) {
	var h Header
	h.QformCode = 1
	h.Pixdim = [8]float32{1, 2, 3, 4}
	h.QoffsetX, h.QoffsetY, h.QoffsetZ = -10, -20, -30

	a := h.Affine()
	want := [3][4]float64{{2, 0, 0, -10}, {0, 3, 0, -20}, {0, 0, 4, -30}}
	if a != want {
		t.Errorf("Expected %v, got %v", want, a)
	}
}

// TestWriteRejectsShortData verifies the voxel count must match the header
func TestWriteRejectsShortData(t *testing.T) {
	h := NewHeader([]int{2, 2, 2}, [3]float64{1, 1, 1})
	path := filepath.Join(t.TempDir(), "bad.nii")
	if err := Write(path, &Image{Header: h, Data: []float64{1}}); err == nil {
		t.Fatal("Expected error for mismatched data length")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected no file to be written")
	}
}

// TestDecodeRejectsOversizedDims verifies crafted dimensions are refused
// before any voxel buffer is allocated
func TestDecodeRejectsOversizedDims(t *testing.T) {
	tests := []struct {
		name string
		dim  [8]int16
	}{
		{"overflowing product", [8]int16{7, 32767, 32767, 32767, 32767, 32767, 32767, 32767}},
		{"larger than file", [8]int16{3, 100, 100, 100, 1, 1, 1, 1}},
		{"zero dimension", [8]int16{3, 2, 0, 2, 1, 1, 1, 1}},
		{"negative dimension", [8]int16{3, 2, -2, 2, 1, 1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHeader([]int{1, 1, 1}, [3]float64{1, 1, 1})
			h.Dim = tt.dim

			var buf bytes.Buffer
			binary.Write(&buf, binary.LittleEndian, &h)
			buf.Write(make([]byte, 4+64))

			if _, err := Decode(buf.Bytes()); err == nil {
				t.Errorf("Expected error for dims %v", tt.dim)
			}
		})
	}
}

// TestGzipStreamIsStandard verifies compressed output is readable by any
// gzip reader
func TestGzipStreamIsStandard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.nii.gz")
	h := NewHeader([]int{2, 2, 2}, [3]float64{1, 1, 1})
	if err := Write(path, &Image{Header: h, Data: make([]float64, 8)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("Not a gzip stream: %v", err)
	}
	raw, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}
	if len(raw) != voxOffset+8*4 {
		t.Errorf("Expected %d bytes, got %d", voxOffset+8*4, len(raw))
	}
}
