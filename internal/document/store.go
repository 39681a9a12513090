package document

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a document from a YAML file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document and checks that every block holds exactly
// one of paragraph or table.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	for i, b := range doc.Blocks {
		if (b.Paragraph == nil) == (b.Table == nil) {
			return nil, fmt.Errorf("block %d must hold exactly one of paragraph or table", i+1)
		}
	}
	return &doc, nil
}

// Save writes the document to path as YAML.
func Save(doc *Document, path string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}
