package main

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/config/netmode"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "NEOEXEC"

const (
	debugFlag  = "debug"
	configFlag = "config"
)

// app is a state shared by commands. Flag values are read through viper, so
// every flag can be set via NEOEXEC_<FLAG> environment variable with dashes
// replaced by underscores.
type app struct {
	v   *viper.Viper
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "neoexec",
		Short:         "Standalone gas-metered contract execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("bind flags: %w", err)
			}
			if err := a.v.BindPFlags(cmd.InheritedFlags()); err != nil {
				return fmt.Errorf("bind flags: %w", err)
			}
			log, err := newLogger(a.v.GetBool(debugFlag))
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().Bool(debugFlag, false, "Enable debug logging")
	root.PersistentFlags().String(configFlag, "", "Path to YAML protocol configuration")

	root.AddCommand(newRunCommand(a), newNEFCommand(a), newServicesCommand(a))
	return root
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

// settings returns the protocol configuration from the file set by --config
// or defaults of the unit test network.
func (a *app) settings() (config.ProtocolSettings, error) {
	p := a.v.GetString(configFlag)
	if p == "" {
		return config.Default(netmode.UnitTestNet), nil
	}
	s, err := config.Load(p)
	if err != nil {
		return s, fmt.Errorf("load configuration: %w", err)
	}
	return s, nil
}
