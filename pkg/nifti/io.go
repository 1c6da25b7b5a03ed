package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	gzip "github.com/klauspost/pgzip"
)

// Image is a decoded NIfTI image. Data holds every voxel of every volume,
// x varying fastest, already scaled by scl_slope/scl_inter.
type Image struct {
	Header Header
	Data   []float64
}

// Read loads a .nii or .nii.gz file.
func Read(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if isGzip(path) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	img, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode parses an uncompressed single-file NIfTI-1 image.
func Decode(raw []byte) (*Image, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("file too short for a NIfTI-1 header (%d bytes)", len(raw))
	}

	var order binary.ByteOrder = binary.LittleEndian
	if int32(binary.LittleEndian.Uint32(raw[:4])) != HeaderSize {
		if int32(binary.BigEndian.Uint32(raw[:4])) != HeaderSize {
			return nil, fmt.Errorf("not a NIfTI-1 file")
		}
		order = binary.BigEndian
	}

	var h Header
	if err := binary.Read(bytes.NewReader(raw[:HeaderSize]), order, &h); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}

	size := bytesPerVoxel(h.Datatype)
	if size == 0 {
		return nil, fmt.Errorf("unsupported datatype %d", h.Datatype)
	}
	offset := int(h.VoxOffset)
	if offset < HeaderSize {
		offset = voxOffset
	}
	if len(raw) < offset {
		return nil, fmt.Errorf("truncated file: voxel offset %d beyond %d bytes", offset, len(raw))
	}
	n, err := h.voxelsWithin((len(raw) - offset) / size)
	if err != nil {
		return nil, err
	}
	if len(raw) < offset+n*size {
		return nil, fmt.Errorf("truncated voxel data: need %d bytes, have %d", offset+n*size, len(raw))
	}

	data := make([]float64, n)
	buf := raw[offset:]
	for i := 0; i < n; i++ {
		data[i] = decodeVoxel(buf[i*size:], h.Datatype, order)
	}

	if h.SclSlope != 0 && !(h.SclSlope == 1 && h.SclInter == 0) {
		slope, inter := float64(h.SclSlope), float64(h.SclInter)
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	return &Image{Header: h, Data: data}, nil
}

func decodeVoxel(b []byte, datatype int16, order binary.ByteOrder) float64 {
	switch datatype {
	case DTUint8:
		return float64(b[0])
	case DTInt8:
		return float64(int8(b[0]))
	case DTInt16:
		return float64(int16(order.Uint16(b)))
	case DTUint16:
		return float64(order.Uint16(b))
	case DTInt32:
		return float64(int32(order.Uint32(b)))
	case DTUint32:
		return float64(order.Uint32(b))
	case DTFloat32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case DTFloat64:
		return math.Float64frombits(order.Uint64(b))
	}
	return 0
}

// Write stores img as float32, gzip-compressed when path ends in ".gz". The
// header geometry is kept; datatype, scaling and offset are rewritten.
func Write(path string, img *Image) error {
	h := img.Header
	if h.Voxels() != len(img.Data) {
		return fmt.Errorf("header describes %d voxels, data has %d", h.Voxels(), len(img.Data))
	}
	h.SizeofHdr = HeaderSize
	h.Datatype = DTFloat32
	h.Bitpix = 32
	h.VoxOffset = voxOffset
	h.SclSlope = 1
	h.SclInter = 0
	h.CalMax, h.CalMin = 0, 0
	h.Glmax, h.Glmin = 0, 0
	copy(h.Magic[:], "n+1\x00")

	var buf bytes.Buffer
	buf.Grow(voxOffset + 4*len(img.Data))
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	buf.Write([]byte{0, 0, 0, 0})
	vox := make([]byte, 4)
	for _, v := range img.Data {
		binary.LittleEndian.PutUint32(vox, math.Float32bits(float32(v)))
		buf.Write(vox)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if isGzip(path) {
		gz := gzip.NewWriter(f)
		if _, err := gz.Write(buf.Bytes()); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	} else if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}
