package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schemakit/schemakit/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [model...]",
	Short: "Validate table documents in the schema store",
	Long:  "Load, validate, and normalize table documents, reporting every problem found. With no arguments, all documents in the store are checked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		loader := schema.NewLoader(cfg.SchemaRoot, zap.NewNop())
		validator := schema.NewValidator()
		normalizer := schema.NewNormalizer()

		models := args
		if len(models) == 0 {
			models, err = loader.List()
			if err != nil {
				return fmt.Errorf("failed to list schema store %s: %w", cfg.SchemaRoot, err)
			}
		}
		if len(models) == 0 {
			fmt.Printf("no documents found under %s\n", cfg.SchemaRoot)
			return nil
		}

		green := color.New(color.FgGreen)
		red := color.New(color.FgRed, color.Bold)

		failures := 0
		for _, model := range models {
			if err := checkDocument(loader, validator, normalizer, model); err != nil {
				red.Printf("✗ %s\n", model)
				fmt.Printf("  %v\n", err)
				failures++
				continue
			}
			green.Printf("✓ %s\n", model)
		}

		if failures > 0 {
			fmt.Printf("\n%d of %d documents failed validation\n", failures, len(models))
			os.Exit(1)
		}
		fmt.Printf("\n%d documents valid\n", len(models))
		return nil
	},
}

// checkDocument runs one reference through the full load pipeline. The
// argument may be connection-qualified, e.g. users@analytics.
func checkDocument(loader *schema.Loader, validator *schema.Validator, normalizer *schema.Normalizer, ref string) error {
	parsed, err := schema.ParseReference(ref)
	if err != nil {
		return err
	}
	doc, err := loader.Load(parsed.Model, parsed.Connection)
	if err != nil {
		return err
	}
	if err := validator.Validate(doc, parsed.Model); err != nil {
		return err
	}
	return normalizer.Normalize(doc)
}
