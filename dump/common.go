package dump

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neoexec/nef"
	"github.com/nspcc-dev/neoexec/state"
	"go.uber.org/multierr"
)

// ID is a unique identifier of the dump.
type ID struct {
	// Label of the dump source (e.g. testnet, mainnet).
	Label string
	// Blockchain height at which the state was pulled.
	Block uint32
}

// String returns hyphen-separated ID fields.
func (x ID) String() string {
	return x.Label + sep + strconv.FormatUint(uint64(x.Block), 10)
}

// decodes ID fields from the hyphen-separated string.
func (x *ID) decodeString(s string) error {
	ss := strings.Split(s, sep)
	if len(ss) < 2 {
		return fmt.Errorf("expected '%s'-separated string with at least 2 items", sep)
	}

	n, err := strconv.ParseUint(ss[1], 10, 32)
	if err != nil {
		return fmt.Errorf("decode block number from '%s': %w", ss[1], err)
	}

	x.Label = ss[0]
	x.Block = uint32(n)

	return nil
}

// global encoding of binary values.
var _encoding = base64.StdEncoding

// dumpContractState is a JSON-encoded information about the dumped contract.
// NEF is kept in its binary form, so checksum is verified on reading.
type dumpContractState struct {
	Name          string            `json:"name"`
	ID            int32             `json:"id"`
	UpdateCounter uint16            `json:"updatecounter"`
	Hash          util.Uint160      `json:"hash"`
	NEF           []byte            `json:"nef"`
	Manifest      manifest.Manifest `json:"manifest"`
}

func fromContract(name string, c *state.Contract) (dumpContractState, error) {
	raw, err := c.NEF.Bytes()
	if err != nil {
		return dumpContractState{}, fmt.Errorf("encode NEF of '%s': %w", name, err)
	}
	return dumpContractState{
		Name:          name,
		ID:            c.ID,
		UpdateCounter: c.UpdateCounter,
		Hash:          c.Hash,
		NEF:           raw,
		Manifest:      c.Manifest,
	}, nil
}

func (x dumpContractState) contract() (*state.Contract, error) {
	f, err := nef.FileFromBytes(x.NEF)
	if err != nil {
		return nil, fmt.Errorf("decode NEF of '%s': %w", x.Name, err)
	}
	return &state.Contract{
		ID:            x.ID,
		UpdateCounter: x.UpdateCounter,
		Hash:          x.Hash,
		NEF:           f,
		Manifest:      x.Manifest,
	}, nil
}

// dumpStreams groups data streams for contracts' states and storages.
type dumpStreams struct {
	contracts, storageItems io.ReadWriteCloser
}

// close closes all opened streams.
func (x *dumpStreams) close() error {
	var err error
	if x.storageItems != nil {
		err = multierr.Append(err, x.storageItems.Close())
	}
	if x.contracts != nil {
		err = multierr.Append(err, x.contracts.Close())
	}
	return err
}

const (
	// word separator used in dump file naming
	sep = "-"
	// suffix of file with contracts' states
	statesFileSuffix = "contracts.json"
	// suffix of file with storage items
	storageFileSuffix = "storage.csv"
)

// initDumpStreams opens data streams for the dump files located in the
// specified directory. If read flag is set, streams are read-only. Otherwise,
// files must not exist, and streams are write only.
func initDumpStreams(d *dumpStreams, dir string, id ID, read bool) error {
	var err error

	pathStorage := filepath.Join(dir, strings.Join([]string{id.String(), storageFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathStorage); err != nil {
			return err
		}
	}

	pathContracts := filepath.Join(dir, strings.Join([]string{id.String(), statesFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathContracts); err != nil {
			return err
		}
	}

	var flag int
	var perm os.FileMode

	if read {
		flag = os.O_RDONLY
	} else {
		flag = os.O_CREATE | os.O_WRONLY
		perm = 0600
	}

	fStorage, err := os.OpenFile(pathStorage, flag, perm)
	if err != nil {
		return fmt.Errorf("open file with storage items: %w", err)
	}

	fContracts, err := os.OpenFile(pathContracts, flag, perm)
	if err != nil {
		return multierr.Append(fmt.Errorf("open file with contract states: %w", err), fStorage.Close())
	}

	d.storageItems, d.contracts = fStorage, fContracts

	return nil
}

// checkFileNotExists checks that there is no file at the specified path.
func checkFileNotExists(p string) error {
	_, err := os.Stat(p)
	if !os.IsNotExist(err) {
		if err == nil {
			err = os.ErrExist
		}
		return fmt.Errorf("file '%s' absence check failed: %w", p, err)
	}
	return nil
}
