package tables

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/gridconsole/internal/grid"
)

// schemaFile is the on-disk layout of GRID_SCHEMA_FILE:
//
//	tables:
//	  - name: invoices
//	    display: [id, number, total]
//	    writable: [total]
//	    protected: [id, tenant_id]
type schemaFile struct {
	Tables []grid.TableSecuritySchema `yaml:"tables"`
}

// LoadFile reads additional table schemas from a YAML file.
func LoadFile(path string) ([]grid.TableSecuritySchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	schemas, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return schemas, nil
}

// Parse decodes schemas from r. Unknown keys are an error so a typo such as
// "protect:" cannot silently leave a column unprotected.
func Parse(r io.Reader) ([]grid.TableSecuritySchema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f schemaFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	for i, s := range f.Tables {
		if s.Name == "" {
			return nil, fmt.Errorf("tables[%d]: name is required", i)
		}
	}
	return f.Tables, nil
}
