// Package nifti implements a minimal NIfTI-1 codec for label volumes: the
// fixed 348-byte header, the common integer and float voxel datatypes, and
// transparent gzip handling keyed on the filename suffix. It covers exactly
// what the validation engine needs (dimensions, affine, voxel data) and is
// not a general NIfTI library.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"segqc/pkg/volume"
)

const (
	headerSize = 348

	// Voxel data in files we write starts right after the header plus the
	// 4-byte extension flag, the standard single-file layout.
	defaultVoxOffset = 352
)

// NIfTI-1 datatype codes.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtUint16  = 512
)

// header mirrors the on-disk nifti_1_header struct field for field.
type header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// Load reads a label volume from a .nii or .nii.gz file. Float datatypes
// are truncated to integer labels, matching how segmentation outputs are
// consumed downstream.
func Load(path string) (*volume.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return Decode(r)
}

// Decode reads a volume from an uncompressed NIfTI-1 stream. Callers with
// gzipped bytes wrap the reader themselves; Load does this by filename.
func Decode(r io.Reader) (*volume.Volume, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("failed to read NIfTI header: %w", err)
	}

	// sizeof_hdr doubles as the endianness probe.
	var order binary.ByteOrder = binary.LittleEndian
	if binary.LittleEndian.Uint32(raw[:4]) != headerSize {
		if binary.BigEndian.Uint32(raw[:4]) != headerSize {
			return nil, fmt.Errorf("not a NIfTI-1 file: sizeof_hdr != %d", headerSize)
		}
		order = binary.BigEndian
	}

	var hdr header
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, fmt.Errorf("failed to decode NIfTI header: %w", err)
	}

	ndim := int(hdr.Dim[0])
	if ndim < 3 {
		return nil, fmt.Errorf("volume has %d dimension(s), need 3", ndim)
	}
	for i := 4; i <= ndim && i < 8; i++ {
		if hdr.Dim[i] > 1 {
			return nil, fmt.Errorf("%dD volumes are not supported", ndim)
		}
	}
	dims := [3]int{int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])}

	vol, err := volume.New(dims, affineFromHeader(&hdr))
	if err != nil {
		return nil, err
	}

	// Skip any header extensions up to the voxel data offset.
	if skip := int64(hdr.VoxOffset) - headerSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, fmt.Errorf("failed to seek to voxel data: %w", err)
		}
	}

	if err := readVoxels(r, order, hdr.Datatype, vol.Data); err != nil {
		return nil, err
	}
	return vol, nil
}

func readVoxels(r io.Reader, order binary.ByteOrder, datatype int16, out []int32) error {
	var width int
	switch datatype {
	case dtUint8:
		width = 1
	case dtInt16, dtUint16:
		width = 2
	case dtInt32, dtFloat32:
		width = 4
	case dtFloat64:
		width = 8
	default:
		return fmt.Errorf("unsupported NIfTI datatype %d", datatype)
	}

	buf := make([]byte, len(out)*width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("failed to read voxel data: %w", err)
	}

	for i := range out {
		b := buf[i*width:]
		switch datatype {
		case dtUint8:
			out[i] = int32(b[0])
		case dtInt16:
			out[i] = int32(int16(order.Uint16(b)))
		case dtUint16:
			out[i] = int32(order.Uint16(b))
		case dtInt32:
			out[i] = int32(order.Uint32(b))
		case dtFloat32:
			out[i] = int32(math.Float32frombits(order.Uint32(b)))
		case dtFloat64:
			out[i] = int32(math.Float64frombits(order.Uint64(b)))
		}
	}
	return nil
}

func affineFromHeader(hdr *header) *mat.Dense {
	a := mat.NewDense(4, 4, nil)
	a.Set(3, 3, 1)
	if hdr.SformCode > 0 {
		for j := 0; j < 4; j++ {
			a.Set(0, j, float64(hdr.SrowX[j]))
			a.Set(1, j, float64(hdr.SrowY[j]))
			a.Set(2, j, float64(hdr.SrowZ[j]))
		}
		return a
	}
	// No sform: fall back to voxel spacing on the diagonal.
	for i := 0; i < 3; i++ {
		spacing := float64(hdr.Pixdim[i+1])
		if spacing == 0 {
			spacing = 1
		}
		a.Set(i, i, spacing)
	}
	return a
}

// Save writes a label volume as a single-file NIfTI-1 image, gzipped when
// the path ends in .gz. Labels are stored as int16 when they all fit, the
// original segmentation dtype, and int32 otherwise.
func Save(path string, vol *volume.Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create volume file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	if err := encode(w, vol); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to flush gzip stream: %w", err)
		}
	}
	return f.Close()
}

func encode(w io.Writer, vol *volume.Volume) error {
	datatype := int16(dtInt16)
	width := 2
	for _, v := range vol.Data {
		if v > math.MaxInt16 || v < math.MinInt16 {
			datatype = dtInt32
			width = 4
			break
		}
	}

	hdr := header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Datatype:  datatype,
		Bitpix:    int16(width * 8),
		VoxOffset: defaultVoxOffset,
		SclSlope:  1,
		SformCode: 1,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	for i := 0; i < 3; i++ {
		hdr.Dim[i+1] = int16(vol.Dims[i])
	}
	for i := 4; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	hdr.Pixdim[0] = 1
	for i := 0; i < 3; i++ {
		hdr.Pixdim[i+1] = float32(columnNorm(vol.Affine, i))
	}
	for j := 0; j < 4; j++ {
		hdr.SrowX[j] = float32(vol.Affine.At(0, j))
		hdr.SrowY[j] = float32(vol.Affine.At(1, j))
		hdr.SrowZ[j] = float32(vol.Affine.At(2, j))
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("failed to write NIfTI header: %w", err)
	}
	// Extension flag: no extensions present.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return fmt.Errorf("failed to write extension flag: %w", err)
	}

	buf := make([]byte, len(vol.Data)*width)
	for i, v := range vol.Data {
		if width == 2 {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
		} else {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
		}
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write voxel data: %w", err)
	}
	return nil
}

func columnNorm(a *mat.Dense, col int) float64 {
	n := math.Hypot(a.At(0, col), a.At(1, col))
	n = math.Hypot(n, a.At(2, col))
	if n == 0 {
		return 1
	}
	return n
}
