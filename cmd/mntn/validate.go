package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attenuate/mntn/config"
	"github.com/attenuate/mntn/runtime/wazeroengine"
	"github.com/attenuate/mntn/sandbox"
)

var validateCmd = &cobra.Command{
	Use:   "validate <module.wasm>",
	Short: "Check a module's exports and imports without executing it",
	Args:  cobra.ExactArgs(1),
	Run:   runValidate,
}

func init() {
	validateCmd.Flags().StringSlice("require-export", nil, "Export that must be present (repeatable)")
	validateCmd.Flags().StringSlice("allow-import", nil, "Import allowed under namespace#name (repeatable); omit to allow any import")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	wasmBytes, err := os.ReadFile(args[0])
	if err != nil {
		fail("reading module: %v", err)
	}

	requiredExports, _ := cmd.Flags().GetStringSlice("require-export")
	allowedImports, _ := cmd.Flags().GetStringSlice("allow-import")

	var allowed []string
	if cmd.Flags().Changed("allow-import") {
		allowed = allowedImports
	}

	ctx := context.Background()
	eng := wazeroengine.New(ctx)
	defer eng.Close(ctx)

	cfg := config.Default()
	mgr := sandbox.New(eng, cfg.Policy(), nil)

	if err := mgr.Validate(ctx, wasmBytes, sandbox.ValidateOptions{
		RequiredExports: requiredExports,
		AllowedImports:  allowed,
	}); err != nil {
		fail("%v", err)
	}

	fmt.Println("ok")
}
