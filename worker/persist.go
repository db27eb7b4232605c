package worker

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Persisted Result layout: a fixed uncompressed header carrying the format
// version and the parameter fingerprint, followed by a gzip stream of the
// accumulator state. Compatibility is decided on the header alone.
const (
	resultMagic   = "AVRS"
	resultVersion = uint16(1)
)

var ErrResultNotFound = errors.New("result not found")

type ResultStore interface {
	Save(key string, r *Result) error
	Load(key string) (*Result, error)
}

func SaveResult(w io.Writer, r *Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := w.Write([]byte(resultMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, resultVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, r.Params.Fingerprint()); err != nil {
		return err
	}

	zw := gzip.NewWriter(w)

	if err := putString(zw, r.Params.Operation); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, r.Params.Interval); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, r.Params.Radius); err != nil {
		return err
	}
	if err := putString(zw, r.Params.CoefficientID); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, int64(r.TotalUnits)); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, int64(r.UnitCount)); err != nil {
		return err
	}
	if err := putString(zw, r.Descriptor); err != nil {
		return err
	}

	images := make([]string, 0, len(r.Images))
	for id := range r.Images {
		images = append(images, id)
	}
	sort.Strings(images)
	if err := binary.Write(zw, binary.LittleEndian, uint32(len(images))); err != nil {
		return err
	}
	for _, id := range images {
		if err := putString(zw, id); err != nil {
			return err
		}
	}

	scalarNames := sortedKeysF(r.Scalars)
	if err := binary.Write(zw, binary.LittleEndian, uint32(len(scalarNames))); err != nil {
		return err
	}
	for _, name := range scalarNames {
		if err := putString(zw, name); err != nil {
			return err
		}
		if err := binary.Write(zw, binary.LittleEndian, r.Scalars[name]); err != nil {
			return err
		}
	}

	vecNames := make([]string, 0, len(r.Vectors))
	for name := range r.Vectors {
		vecNames = append(vecNames, name)
	}
	sort.Strings(vecNames)
	if err := binary.Write(zw, binary.LittleEndian, uint32(len(vecNames))); err != nil {
		return err
	}
	for _, name := range vecNames {
		if err := putString(zw, name); err != nil {
			return err
		}
		vec := r.Vectors[name]
		if err := binary.Write(zw, binary.LittleEndian, uint32(len(vec))); err != nil {
			return err
		}
		if err := binary.Write(zw, binary.LittleEndian, vec); err != nil {
			return err
		}
	}

	cntNames := make([]string, 0, len(r.Counts))
	for name := range r.Counts {
		cntNames = append(cntNames, name)
	}
	sort.Strings(cntNames)
	if err := binary.Write(zw, binary.LittleEndian, uint32(len(cntNames))); err != nil {
		return err
	}
	for _, name := range cntNames {
		if err := putString(zw, name); err != nil {
			return err
		}
		vec := r.Counts[name]
		if err := binary.Write(zw, binary.LittleEndian, uint32(len(vec))); err != nil {
			return err
		}
		if err := binary.Write(zw, binary.LittleEndian, vec); err != nil {
			return err
		}
	}

	return zw.Close()
}

func LoadResult(rd io.Reader) (*Result, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(rd, magic); err != nil {
		return nil, err
	}
	if string(magic) != resultMagic {
		return nil, fmt.Errorf("result: bad magic %q", magic)
	}
	var version uint16
	if err := binary.Read(rd, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != resultVersion {
		return nil, fmt.Errorf("result: unsupported format version %d", version)
	}
	var fingerprint uint64
	if err := binary.Read(rd, binary.LittleEndian, &fingerprint); err != nil {
		return nil, err
	}

	zr, err := gzip.NewReader(rd)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	r := NewResult(Params{}, 0)
	if r.Params.Operation, err = getString(zr); err != nil {
		return nil, err
	}
	if err := binary.Read(zr, binary.LittleEndian, &r.Params.Interval); err != nil {
		return nil, err
	}
	if err := binary.Read(zr, binary.LittleEndian, &r.Params.Radius); err != nil {
		return nil, err
	}
	if r.Params.CoefficientID, err = getString(zr); err != nil {
		return nil, err
	}
	var total, units int64
	if err := binary.Read(zr, binary.LittleEndian, &total); err != nil {
		return nil, err
	}
	if err := binary.Read(zr, binary.LittleEndian, &units); err != nil {
		return nil, err
	}
	r.TotalUnits, r.UnitCount = int(total), int(units)
	if r.Descriptor, err = getString(zr); err != nil {
		return nil, err
	}

	if fingerprint != r.Params.Fingerprint() {
		return nil, fmt.Errorf("result: header fingerprint %x does not match parameters %+v", fingerprint, r.Params)
	}

	var nImages uint32
	if err := binary.Read(zr, binary.LittleEndian, &nImages); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nImages; i++ {
		id, err := getString(zr)
		if err != nil {
			return nil, err
		}
		r.Images[id] = true
	}

	var nScalars uint32
	if err := binary.Read(zr, binary.LittleEndian, &nScalars); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nScalars; i++ {
		name, err := getString(zr)
		if err != nil {
			return nil, err
		}
		var v float64
		if err := binary.Read(zr, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		r.Scalars[name] = v
	}

	var nVecs uint32
	if err := binary.Read(zr, binary.LittleEndian, &nVecs); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nVecs; i++ {
		name, err := getString(zr)
		if err != nil {
			return nil, err
		}
		var n uint32
		if err := binary.Read(zr, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		vec := make([]float64, n)
		if err := binary.Read(zr, binary.LittleEndian, vec); err != nil {
			return nil, err
		}
		r.Vectors[name] = vec
	}

	var nCnts uint32
	if err := binary.Read(zr, binary.LittleEndian, &nCnts); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nCnts; i++ {
		name, err := getString(zr)
		if err != nil {
			return nil, err
		}
		var n uint32
		if err := binary.Read(zr, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		vec := make([]int64, n)
		if err := binary.Read(zr, binary.LittleEndian, vec); err != nil {
			return nil, err
		}
		r.Counts[name] = vec
	}

	return r, nil
}

// FileResultStore persists one .data file per source image under Dir.
type FileResultStore struct {
	Dir string
}

func (s *FileResultStore) path(key string) string {
	return filepath.Join(s.Dir, key+".data")
}

func (s *FileResultStore) Save(key string, r *Result) error {
	tmp := s.path(key) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := SaveResult(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path(key))
}

func (s *FileResultStore) Load(key string) (*Result, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	defer f.Close()
	return LoadResult(f)
}

func sortedKeysF(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func putString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func getString(r io.Reader) (string, error) {
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
