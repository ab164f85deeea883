// Command schema-generator writes the JSON Schema of mwstate.yml.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/mwstate/config"
)

func main() {
	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	outputDir := "schema/definitions"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	outputPath := filepath.Join(outputDir, "mwstate.schema.json")
	if err := os.WriteFile(outputPath, append(schemaBytes, '\n'), 0o644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}
	log.Printf("Generated schema at %s", outputPath)
}
