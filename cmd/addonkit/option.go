package main

import (
	"fmt"

	"github.com/cuemby/addonkit/pkg/serial"
	"github.com/spf13/cobra"
)

var optionCmd = &cobra.Command{
	Use:   "option",
	Short: "Read and write stored options",
}

var optionGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print an option value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Shutdown()

		value, ok := m.Options().Get(args[0])
		if !ok {
			return fmt.Errorf("option not found: %s", args[0])
		}
		encoded, err := serial.Serialize(value)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), encoded)
		return nil
	},
}

var optionSetCmd = &cobra.Command{
	Use:   "set NAME VALUE",
	Short: "Store an option (VALUE parsed as JSON when valid)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		if !m.Options().Set(args[0], serial.Unserialize(args[1])) {
			m.Shutdown()
			return fmt.Errorf("option rejected: %s", args[0])
		}
		// Shutdown performs the flush and reports values it could not write
		if err := m.Shutdown(); err != nil {
			return fmt.Errorf("option %s not written: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Option set: %s\n", args[0])
		return nil
	},
}

var optionDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete an option",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Shutdown()

		if !m.Options().Delete(args[0]) {
			return fmt.Errorf("failed to delete option: %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Option deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	optionCmd.AddCommand(optionGetCmd)
	optionCmd.AddCommand(optionSetCmd)
	optionCmd.AddCommand(optionDeleteCmd)
}
