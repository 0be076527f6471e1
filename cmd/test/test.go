package test

import (
	"fmt"
	"time"

	"firesync/cmd/cmdutil"

	"github.com/spf13/cobra"
)

var verbose bool

var TestCmd = &cobra.Command{
	Use:   "test",
	Short: "Check the Firestore connection and write a test document",
	Long: `Verify that Firestore is reachable with the configured credentials, then write a
document under test-connection/ to prove write access.`,
	Example: `firesync test --verbose`,
	Args:    cobra.NoArgs,
	RunE:    run,
}

func init() {
	TestCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print connection settings and the written document")
}

func run(cmd *cobra.Command, _ []string) error {
	wiring, err := cmdutil.Bootstrap()
	if err != nil {
		return err
	}
	defer wiring.Close()

	out := cmd.OutOrStdout()
	cfg := wiring.GetConfig()
	ctx := cmd.Context()

	if verbose {
		fmt.Fprintf(out, "Project:   %s\n", cfg.Firestore.ProjectID)
		fmt.Fprintf(out, "Database:  %s\n", cfg.Firestore.DatabaseID)
		if cfg.Firestore.Emulator.Enabled {
			fmt.Fprintf(out, "Emulator:  %s:%d\n", cfg.Firestore.Emulator.Host, cfg.Firestore.Emulator.Port)
		}
	}

	store, err := wiring.InitFirestore(ctx)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(out, "Transport: %s\n", store.Name())
	}

	connection, err := wiring.InitProbe(ctx)
	if err != nil {
		return err
	}
	if err := connection.CheckWithError(ctx); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	fmt.Fprintln(out, "Connection OK")

	written, err := connection.WriteTest(ctx)
	if err != nil {
		return fmt.Errorf("write test failed: %w", err)
	}
	fmt.Fprintf(out, "Test document written to %s\n", written.Path)
	if verbose {
		fmt.Fprintf(out, "  id: %s\n", written.ID)
		fmt.Fprintf(out, "  timestamp: %s\n", written.Timestamp.UTC().Format(time.RFC3339))
	}
	return nil
}
