package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemakit/schemakit/internal/schema"
)

var modelNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var fieldTypeChoices = []string{
	"string", "text", "integer", "decimal", "boolean",
	"date", "datetime", "json", "email", "url", "password",
}

var newCmd = &cobra.Command{
	Use:   "new [model]",
	Short: "Scaffold a new table document",
	Long:  "Interactively create a table document in the configured schema store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var model string
		if len(args) == 1 {
			model = args[0]
		} else {
			prompt := &survey.Input{Message: "Model name:"}
			if err := survey.AskOne(prompt, &model, survey.WithValidator(survey.Required)); err != nil {
				return err
			}
		}
		if !modelNameRe.MatchString(model) {
			return fmt.Errorf("model name must contain only letters, digits, and underscores")
		}

		table := model
		if err := survey.AskOne(&survey.Input{Message: "Table name:", Default: model}, &table); err != nil {
			return err
		}

		var title string
		if err := survey.AskOne(&survey.Input{Message: "Title:", Default: titleize(model)}, &title); err != nil {
			return err
		}

		var softDelete bool
		if err := survey.AskOne(&survey.Confirm{Message: "Enable soft delete?"}, &softDelete); err != nil {
			return err
		}

		doc := map[string]interface{}{
			"model":      model,
			"table":      table,
			"title":      title,
			"primaryKey": "id",
			"timestamps": true,
			"fields": map[string]interface{}{
				"id": map[string]interface{}{
					"type":          "integer",
					"autoIncrement": true,
					"editable":      false,
				},
			},
		}
		if softDelete {
			doc["softDelete"] = true
		}

		fields := doc["fields"].(map[string]interface{})
		for {
			var name string
			if err := survey.AskOne(&survey.Input{Message: "Add field (blank to finish):"}, &name); err != nil {
				return err
			}
			name = strings.TrimSpace(name)
			if name == "" {
				break
			}

			var fieldType string
			prompt := &survey.Select{Message: "Field type:", Options: fieldTypeChoices, Default: "string"}
			if err := survey.AskOne(prompt, &fieldType); err != nil {
				return err
			}

			var required bool
			if err := survey.AskOne(&survey.Confirm{Message: "Required?"}, &required); err != nil {
				return err
			}

			field := map[string]interface{}{"type": fieldType}
			if required {
				field["validation"] = map[string]interface{}{"required": true}
			}
			fields[name] = field
		}

		path := filepath.Join(cfg.SchemaRoot, model+".json")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("document %s already exists", path)
		}
		if err := os.MkdirAll(cfg.SchemaRoot, 0o755); err != nil {
			return err
		}

		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return err
		}

		// Sanity-check what we just wrote before declaring success.
		if err := checkDocument(schema.NewLoader(cfg.SchemaRoot, nil), schema.NewValidator(), schema.NewNormalizer(), model); err != nil {
			return fmt.Errorf("generated document failed validation: %w", err)
		}

		color.New(color.FgGreen, color.Bold).Printf("✓ created %s\n", path)
		return nil
	},
}

// titleize turns snake_case into a spaced, capitalized title.
func titleize(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
