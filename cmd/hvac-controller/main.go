// Command hvac-controller runs the HVAC supervisory controller, or
// inspects/validates its configuration without running the daemon.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/hvac-controller/internal/herrors"
)

// Exit codes per the operator CLI contract: 0 success, 2 configuration
// error, 3 connection error, 1 other.
const (
	exitSuccess = 0
	exitOther   = 1
	exitConfig  = 2
	exitConn    = 3
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "hvac-controller",
		Short:         "Supervisory HVAC controller for a Home Assistant instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newOverrideCmd())
	root.AddCommand(newValidateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var cfgErr *herrors.ConfigurationError
	var connErr *herrors.ConnectionError
	switch {
	case errors.As(err, &cfgErr):
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	case errors.As(err, &connErr):
		fmt.Fprintln(os.Stderr, err)
		return exitConn
	default:
		fmt.Fprintln(os.Stderr, err)
		return exitOther
	}
}
