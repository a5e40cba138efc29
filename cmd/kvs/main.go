// Command kvs is the command-line front end for the store: subcommand
// parsing, exit codes, and stdout/stderr formatting live here, entirely
// outside the engine's scope (spec section 1 names this an external
// collaborator). Everything durability- and correctness-related happens
// in pkg/kvs and the packages it wraps.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/embedkv/kvs/pkg/kvs"
	kvserrors "github.com/embedkv/kvs/pkg/errors"
)

var dataDir string

// errKeyNotFound signals an already-reported "Key not found" condition
// (rm on a missing key): it carries no message of its own so main's
// os.Exit(1) path never prints anything a second time.
var errKeyNotFound = errors.New("")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kvs",
		Short:         "kvs is an embeddable, log-structured key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "dir", ".", "store directory")

	root.AddCommand(newSetCmd(), newGetCmd(), newRmCmd())
	return root
}

func openStore() (*kvs.Store, error) {
	return kvs.Open(dataDir)
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key to a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return reportError(err)
			}
			defer store.Close()

			if err := store.Set(args[0], args[1]); err != nil {
				return reportError(err)
			}
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return reportError(err)
			}
			defer store.Close()

			value, ok, err := store.Get(args[0])
			if err != nil {
				return reportError(err)
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Key not found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return reportError(err)
			}

			removeErr := store.Remove(args[0])
			if err := store.Close(); err != nil && removeErr == nil {
				return reportError(err)
			}
			if removeErr != nil {
				if kvserrors.IsNonExistentKey(removeErr) {
					fmt.Fprintln(cmd.OutOrStdout(), "Key not found")
					return errKeyNotFound
				}
				return reportError(removeErr)
			}
			return nil
		},
	}
}

// reportError prints err's display text to stderr, prefixed per spec
// section 6.4, and returns a non-nil error so cobra's Execute surfaces a
// non-zero exit code. errors.Unwrap is not needed here: the store's
// error types already carry a human-readable Error() string.
func reportError(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	return errors.New("command failed")
}
