package utils

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// Flat binary scene format. This is the opaque on-disk contract for source
// images: a fixed header, the geo-referencing transform, then one or more
// bands of raw samples.
const (
	gridMagic   = "AVG1"
	gridVersion = uint16(1)

	bandKindFloat32 = uint8(0)
	bandKindByte    = uint8(1)
)

func WriteScene(w io.Writer, s *Scene) error {
	if _, err := w.Write([]byte(gridMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, gridVersion); err != nil {
		return err
	}
	if err := writeString(w, s.Identifier); err != nil {
		return err
	}
	for _, t := range s.Transform {
		if err := binary.Write(w, binary.LittleEndian, t); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, s.AcqStart.UnixNano()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int64(s.LineDuration)); err != nil {
		return err
	}

	nBands := uint16(len(s.Bands))
	if s.Indexed != nil {
		nBands++
	}
	if err := binary.Write(w, binary.LittleEndian, nBands); err != nil {
		return err
	}
	for name, band := range s.Bands {
		if err := writeBandHeader(w, bandKindFloat32, name, band.Bounds(), band.NoData); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, band.Data); err != nil {
			return err
		}
	}
	if s.Indexed != nil {
		if err := writeBandHeader(w, bandKindByte, s.Indexed.NameSpace, s.Indexed.Bounds(), s.Indexed.NoData); err != nil {
			return err
		}
		if _, err := w.Write(s.Indexed.Data); err != nil {
			return err
		}
	}
	return nil
}

func ReadScene(r io.Reader) (*Scene, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != gridMagic {
		return nil, fmt.Errorf("grid: bad magic %q", magic)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != gridVersion {
		return nil, fmt.Errorf("grid: unsupported format version %d", version)
	}

	s := &Scene{Bands: map[string]*Float32Raster{}}
	var err error
	if s.Identifier, err = readString(r); err != nil {
		return nil, err
	}
	for i := range s.Transform {
		if err := binary.Read(r, binary.LittleEndian, &s.Transform[i]); err != nil {
			return nil, err
		}
	}
	var acq, dur int64
	if err := binary.Read(r, binary.LittleEndian, &acq); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &dur); err != nil {
		return nil, err
	}
	s.AcqStart = time.Unix(0, acq).UTC()
	s.LineDuration = time.Duration(dur)

	var nBands uint16
	if err := binary.Read(r, binary.LittleEndian, &nBands); err != nil {
		return nil, err
	}
	for i := 0; i < int(nBands); i++ {
		kind, name, bounds, noData, err := readBandHeader(r)
		if err != nil {
			return nil, err
		}
		switch kind {
		case bandKindFloat32:
			band := NewFloat32Raster(bounds, noData, name)
			if err := binary.Read(r, binary.LittleEndian, band.Data); err != nil {
				return nil, err
			}
			s.Bands[name] = band
		case bandKindByte:
			band := NewByteRaster(bounds, noData, name)
			if _, err := io.ReadFull(r, band.Data); err != nil {
				return nil, err
			}
			s.Indexed = band
		default:
			return nil, fmt.Errorf("grid: unknown band kind %d", kind)
		}
	}
	return s, nil
}

func WriteSceneFile(path string, s *Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteScene(f, s)
}

func ReadSceneFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadScene(f)
}

func writeBandHeader(w io.Writer, kind uint8, name string, bounds Rect, noData float64) error {
	if err := binary.Write(w, binary.LittleEndian, kind); err != nil {
		return err
	}
	if err := writeString(w, name); err != nil {
		return err
	}
	dims := []int32{int32(bounds.MinX), int32(bounds.MinY), int32(bounds.Width), int32(bounds.Height)}
	for _, d := range dims {
		if err := binary.Write(w, binary.LittleEndian, d); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, noData)
}

func readBandHeader(r io.Reader) (kind uint8, name string, bounds Rect, noData float64, err error) {
	if err = binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return
	}
	if name, err = readString(r); err != nil {
		return
	}
	var dims [4]int32
	for i := range dims {
		if err = binary.Read(r, binary.LittleEndian, &dims[i]); err != nil {
			return
		}
	}
	bounds = Rect{MinX: int(dims[0]), MinY: int(dims[1]), Width: int(dims[2]), Height: int(dims[3])}
	err = binary.Read(r, binary.LittleEndian, &noData)
	return
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
