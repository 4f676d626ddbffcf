package dump

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/nspcc-dev/neoexec/native"
	"github.com/nspcc-dev/neoexec/state"
	"github.com/nspcc-dev/neoexec/storage"
	"go.uber.org/multierr"
)

// ErrUnknownContract is returned by Reader.Seed for storage items of
// contracts missing in the dump.
var ErrUnknownContract = errors.New("storage of unknown contract")

// IterateDumps iterates over all contracts collected by the Creator model in
// the specified directory, and passes ID and Reader of each dump into f.
func IterateDumps(dir string, f func(ID, *Reader)) error {
	var id ID

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, e error) error {
		if errors.Is(e, fs.ErrNotExist) {
			return nil
		}
		if e != nil {
			return e
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()

		if !strings.HasSuffix(name, statesFileSuffix) {
			return nil
		}

		err := id.decodeString(name)
		if err != nil {
			return fmt.Errorf("decode dump ID from file name '%s': %w", d.Name(), err)
		}

		r, err := Open(filepath.Dir(path), id)
		if err != nil {
			return fmt.Errorf("open dump '%s': %w", name, err)
		}

		f(id, r)

		return nil
	})
}

// Open reads the dump with provided ID from the directory.
func Open(dir string, id ID) (*Reader, error) {
	var streams dumpStreams

	err := initDumpStreams(&streams, dir, id, true)
	if err != nil {
		return nil, fmt.Errorf("init dump streams: %w", err)
	}

	var r Reader

	err = r.fromDumpStreams(streams.contracts, streams.storageItems)
	err = multierr.Append(err, streams.close())
	if err != nil {
		return nil, fmt.Errorf("init dump reader: %w", err)
	}

	return &r, nil
}

type kv struct{ k, v []byte }

// Reader reads contracts collected in the superior dump.
type Reader struct {
	states   []dumpContractState
	mStorage map[string][]kv
}

func (x *Reader) fromDumpStreams(rContracts, rStorageItems io.Reader) error {
	err := json.NewDecoder(rContracts).Decode(&x.states)
	if err != nil {
		return fmt.Errorf("decode contract states from JSON: %w", err)
	}

	var rec []string
	var _kv kv

	_csv := csv.NewReader(rStorageItems)
	_csv.FieldsPerRecord = 3
	_csv.ReuseRecord = true

	if x.mStorage != nil {
		clear(x.mStorage)
	} else {
		x.mStorage = make(map[string][]kv)
	}

	for {
		rec, err = _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		// out-of-range safety guaranteed by csv settings
		_kv.k, err = _encoding.DecodeString(rec[1])
		if err != nil {
			return fmt.Errorf("decode storage item key: %w", err)
		}

		_kv.v, err = _encoding.DecodeString(rec[2])
		if err != nil {
			return fmt.Errorf("decode storage item value: %w", err)
		}

		x.mStorage[rec[0]] = append(x.mStorage[rec[0]], _kv)
	}
}

// IterateContractStates iterates over all contracts from the superior dump and
// passes their states into f.
func (x *Reader) IterateContractStates(f func(name string, c *state.Contract)) error {
	for i := range x.states {
		c, err := x.states[i].contract()
		if err != nil {
			return err
		}
		f(x.states[i].Name, c)
	}
	return nil
}

// IterateContractStorages iterates over all contracts from the superior dump
// and passes their storage items into f.
func (x *Reader) IterateContractStorages(f func(name string, key, value []byte)) error {
	for name, kvs := range x.mStorage {
		for i := range kvs {
			f(name, kvs[i].k, kvs[i].v)
		}
	}
	return nil
}

// Seed writes all contracts and their storages from the dump into the
// snapshot.
func (x *Reader) Seed(s *storage.Snapshot, m *native.Management) error {
	ids := make(map[string]int32, len(x.states))

	var err error
	iterErr := x.IterateContractStates(func(name string, c *state.Contract) {
		if err != nil {
			return
		}
		ids[name] = c.ID
		if e := m.PutContract(s, c); e != nil {
			err = fmt.Errorf("put contract '%s': %w", name, e)
		}
	})
	if err = multierr.Append(iterErr, err); err != nil {
		return err
	}

	for name, kvs := range x.mStorage {
		id, ok := ids[name]
		if !ok {
			return fmt.Errorf("%w: '%s'", ErrUnknownContract, name)
		}
		for i := range kvs {
			err = s.Put(storage.Key{ID: id, Key: kvs[i].k}, storage.NewItem(kvs[i].v))
			if err != nil {
				return fmt.Errorf("put storage item of '%s': %w", name, err)
			}
		}
	}

	return nil
}
