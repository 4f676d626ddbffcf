package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/block"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/dump"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/fee"
	"github.com/nspcc-dev/neoexec/interop"
	"github.com/nspcc-dev/neoexec/metrics"
	"github.com/nspcc-dev/neoexec/native"
	"github.com/nspcc-dev/neoexec/nef"
	"github.com/nspcc-dev/neoexec/scripts"
	"github.com/nspcc-dev/neoexec/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	scriptFlag       = "script"
	gasFlag          = "gas"
	triggerFlag      = "trigger"
	heightFlag       = "height"
	signerFlag       = "signer"
	dumpDirFlag      = "dump-dir"
	dumpLabelFlag    = "dump-label"
	dumpBlockFlag    = "dump-block"
	saveDumpFlag     = "save-dump"
	dbFlag           = "db"
	dbPathFlag       = "db-path"
	commitFlag       = "commit"
	treeFlag         = "tree"
	metricsFileFlag  = "metrics-file"
	otlpEndpointFlag = "otlp-endpoint"
)

// natives cache size in contracts.
const contractCacheSize = 128

var errNoScript = errors.New("script is required")

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a script",
		Long: `Execute a script given as a hex string or a path to a raw script or NEF file.

Signers make the script a transaction container, otherwise it's executed
without any container. Contract states can be loaded from a dump. Changes
are written into the database only with --commit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd)
		},
	}
	f := cmd.Flags()
	f.String(scriptFlag, "", "Hex-encoded script or path to the script/NEF file")
	f.Int64(gasFlag, 20*fee.GASFactor, "GAS limit in datoshi, negative for unlimited")
	f.String(triggerFlag, trigger.Application.String(), "Execution trigger")
	f.Int64(heightFlag, -1, "Index of the persisting block, no block if negative")
	f.StringSlice(signerFlag, nil, "Signer addresses of the transaction container (CalledByEntry scope)")
	f.String(dumpDirFlag, "", "Directory with the dump to load contracts from")
	f.String(dumpLabelFlag, "", "Label of the dump to load")
	f.Uint32(dumpBlockFlag, 0, "Block of the dump to load")
	f.String(saveDumpFlag, "", "Directory to dump resulting contracts state into")
	f.String(dbFlag, dbMemory, "Database type: memory, leveldb or bolt")
	f.String(dbPathFlag, "", "Database path")
	f.Bool(commitFlag, false, "Persist changes of the successful execution into the database")
	f.Bool(treeFlag, false, "Print invocation tree")
	f.String(metricsFileFlag, "", "File to write execution metrics into in the text exposition format")
	f.String(otlpEndpointFlag, "", "OTLP HTTP endpoint (host:port) to export execution spans to")
	return cmd
}

func (a *app) run(cmd *cobra.Command) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.New()
	log := a.log.With(zap.Stringer("execution", id))

	settings, err := a.settings()
	if err != nil {
		return err
	}
	script, err := readScript(a.v.GetString(scriptFlag))
	if err != nil {
		return err
	}
	trig, err := trigger.FromString(a.v.GetString(triggerFlag))
	if err != nil {
		return fmt.Errorf("parse trigger: %w", err)
	}

	shutdown, err := setupTracing(ctx, a.v.GetString(otlpEndpointFlag))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, shutdown(context.Background())) }()

	store, err := openStore(a.v.GetString(dbFlag), a.v.GetString(dbPathFlag))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	natives, err := native.New(contractCacheSize)
	if err != nil {
		return err
	}
	snap := storage.NewSnapshot(store)
	if dir := a.v.GetString(dumpDirFlag); dir != "" {
		if err := seedDump(snap, natives, dir, dump.ID{
			Label: a.v.GetString(dumpLabelFlag),
			Block: a.v.GetUint32(dumpBlockFlag),
		}); err != nil {
			return err
		}
	}

	prm := engine.Prm{
		Trigger:  trig,
		Snapshot: snap,
		Settings: settings,
		GasLimit: a.v.GetInt64(gasFlag),
		Natives:  natives.Natives(),
		Registry: interop.Default(),
		Logger:   log,
	}
	if h := a.v.GetInt64(heightFlag); h >= 0 {
		prm.PersistingBlock = &block.Header{Index: uint32(h), Timestamp: uint64(time.Now().UnixMilli())}
	}
	if signers := a.v.GetStringSlice(signerFlag); len(signers) != 0 {
		tx, err := newTransaction(script, prm.GasLimit, settings, signers)
		if err != nil {
			return err
		}
		prm.Container = tx
	}

	var diags engine.MultiDiagnostics
	tree := new(engine.InvocationTree)
	if a.v.GetBool(treeFlag) {
		diags = append(diags, tree)
	}
	var (
		reg      *prometheus.Registry
		observer *metrics.Observer
	)
	if a.v.GetString(metricsFileFlag) != "" {
		reg = prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return err
		}
		observer = m.NewObserver()
		diags = append(diags, observer)
	}
	if len(diags) != 0 {
		prm.Diagnostics = diags
	}

	e, err := engine.New(prm)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	if _, err := e.LoadScript(script, -1, 0, nil); err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	_, span := otel.Tracer(tracerName).Start(ctx, "execute")
	st := e.Execute()
	span.SetAttributes(
		attribute.String("execution", id.String()),
		attribute.String("state", st.String()),
		attribute.Int64("gas", e.FeeConsumed()),
	)
	span.End()
	log.Info("script executed",
		zap.Stringer("state", st),
		zap.Int64("gas", e.FeeConsumed()),
		zap.Int("notifications", len(e.Notifications())))

	out := cmd.OutOrStdout()
	printResult(out, e, settings.AddressVersion)
	if a.v.GetBool(treeFlag) {
		fmt.Fprint(out, renderTree(tree))
	}
	if observer != nil {
		observer.Finish(e)
		if err := metrics.WriteToTextfile(a.v.GetString(metricsFileFlag), reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if st != vmstate.Halt {
		return nil
	}

	if dir := a.v.GetString(saveDumpFlag); dir != "" {
		if err := saveDump(snap, natives, dir, dump.ID{
			Label: a.v.GetString(dumpLabelFlag),
			Block: blockOf(prm.PersistingBlock),
		}); err != nil {
			return err
		}
	}
	if a.v.GetBool(commitFlag) {
		if err := snap.Commit(); err != nil {
			return fmt.Errorf("commit changes: %w", err)
		}
		log.Debug("changes persisted")
	}
	return nil
}

// readScript decodes the script from the hex string or reads it from the
// file. NEF files are recognized and their scripts are used.
func readScript(s string) ([]byte, error) {
	if s == "" {
		return nil, errNoScript
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	data, err := os.ReadFile(s)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	if f, err := nef.FileFromBytes(data); err == nil {
		return f.Script, nil
	}
	return data, nil
}

func newTransaction(script []byte, gas int64, s config.ProtocolSettings, addrs []string) (*transaction.Transaction, error) {
	tx := transaction.New(script, max(gas, 0))
	for _, addr := range addrs {
		h, err := scripts.HashFromAddress(s.AddressVersion, addr)
		if err != nil {
			return nil, fmt.Errorf("signer %s: %w", addr, err)
		}
		tx.Signers = append(tx.Signers, transaction.Signer{Account: h, Scopes: transaction.CalledByEntry})
		tx.Scripts = append(tx.Scripts, transaction.Witness{})
	}
	return tx, nil
}

func seedDump(snap *storage.Snapshot, n *native.Contracts, dir string, id dump.ID) error {
	r, err := dump.Open(dir, id)
	if err != nil {
		return fmt.Errorf("open dump %s: %w", id, err)
	}
	if err := r.Seed(snap, n.Management); err != nil {
		return fmt.Errorf("seed dump %s: %w", id, err)
	}
	return nil
}

func saveDump(snap *storage.Snapshot, n *native.Contracts, dir string, id dump.ID) (err error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	c, err := dump.NewCreator(dir, id)
	if err != nil {
		return fmt.Errorf("init dump %s: %w", id, err)
	}
	defer func() { err = multierr.Append(err, c.Close()) }()

	if err := c.AddSnapshot(snap, n.Management); err != nil {
		return fmt.Errorf("dump contracts: %w", err)
	}
	return c.Flush()
}

func blockOf(h *block.Header) uint32 {
	if h == nil {
		return 0
	}
	return h.Index
}
