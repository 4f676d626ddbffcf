package dump

import (
	"encoding/csv"
	"fmt"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/nspcc-dev/neoexec/native"
	"github.com/nspcc-dev/neoexec/state"
	"github.com/nspcc-dev/neoexec/storage"
)

// Creator dumps states of the deployed contracts. Output file format:
//
//	'<label>-<block>-contracts.json': JSON array of contracts' states
//	'<label>-<block>-storage.csv': CSV of contracts' storages
//
// Storage CSV are 'name,key,value' where name stands for contract name and
// binary key-value are base64-encoded. Keys don't include contract ID.
//
// Use IterateDumps or Open to access existing dumps.
type Creator struct {
	dumpStreams

	contracts []dumpContractState

	storageItemsCSV *csv.Writer
}

// NewCreator returns Creator which dumps contracts into given directory. The
// dump is identified by specified ID. Resulting Creator should be closed when
// finished working with it.
//
// NewCreator fails if dump with provided ID already exists.
func NewCreator(dir string, id ID) (*Creator, error) {
	var res Creator

	err := initDumpStreams(&res.dumpStreams, dir, id, false)
	if err != nil {
		return nil, err
	}

	res.storageItemsCSV = csv.NewWriter(res.dumpStreams.storageItems)

	return &res, nil
}

// AddContract adds given state of the named contract to the resulting dump
// and returns StorageWriter for the contract storage. After all needed
// contracts are added, they should be flushed via Flush method.
func (x *Creator) AddContract(name string, c *state.Contract) (*StorageWriter, error) {
	st, err := fromContract(name, c)
	if err != nil {
		return nil, err
	}

	x.contracts = append(x.contracts, st)

	return &StorageWriter{
		name: name,
		csv:  x.storageItemsCSV,
	}, nil
}

// AddSnapshot adds all contracts deployed in the snapshot along with their
// storages. Contracts are named by their manifests.
func (x *Creator) AddSnapshot(s *storage.Snapshot, m *native.Management) error {
	cs, err := m.ListContracts(s)
	if err != nil {
		return fmt.Errorf("list contracts: %w", err)
	}

	for _, c := range cs {
		w, err := x.AddContract(c.Manifest.Name, c)
		if err != nil {
			return err
		}

		kvs, err := s.Find(c.ID, nil, false)
		if err != nil {
			return fmt.Errorf("find storage items of '%s': %w", c.Manifest.Name, err)
		}

		for i := range kvs {
			v, err := kvs[i].Item.Bytes()
			if err != nil {
				return fmt.Errorf("encode storage item %s: %w", kvs[i].Key, err)
			}

			err = w.Write(kvs[i].Key.Key, v)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// Flush flushes accumulated dump to the file system.
func (x *Creator) Flush() error {
	jEnc := json.NewEncoder(x.dumpStreams.contracts)
	jEnc.SetIndent("", " ")

	err := jEnc.Encode(x.contracts)
	if err != nil {
		return fmt.Errorf("encode contract states to JSON: %w", err)
	}

	x.storageItemsCSV.Flush()

	err = x.storageItemsCSV.Error()
	if err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Close releases underlying resources of the Creator and makes it unusable.
func (x *Creator) Close() error {
	return x.close()
}

// StorageWriter writes data into the superior contract's storage dump.
type StorageWriter struct {
	name string
	csv  *csv.Writer
}

// Write saves given binary key-value into the contract dump as storage item.
func (x *StorageWriter) Write(key, value []byte) error {
	err := x.csv.Write([]string{
		x.name,
		_encoding.EncodeToString(key),
		_encoding.EncodeToString(value),
	})
	if err != nil {
		return fmt.Errorf("write storage item as CSV data: %w", err)
	}

	return nil
}
