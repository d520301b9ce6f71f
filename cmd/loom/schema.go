package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/model"
)

var schemaExportOut string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Work with artifact schemas",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one JSON schema file per registered artifact type",
	Run: func(_ *cobra.Command, _ []string) {
		written, err := model.ExportSchemas(schemaExportOut)
		if err != nil {
			exitMalformed("%v", err)
		}
		for _, name := range written {
			fmt.Println(name)
		}
	},
}

// decodeJSON parses one JSON document with number fidelity preserved.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func init() {
	schemaExportCmd.Flags().StringVar(&schemaExportOut, "out", "sdlc/schemas", "output directory")
	schemaCmd.AddCommand(schemaExportCmd)
	rootCmd.AddCommand(schemaCmd)
}
