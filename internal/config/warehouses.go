package config

import (
	"fmt"
	"os"

	"github.com/yegors/whse-session/internal/whse"
	"gopkg.in/yaml.v3"
)

// warehousesFile is the layout of a warehouse bin definition file
type warehousesFile struct {
	Warehouses []whse.Warehouse `yaml:"warehouses"`
}

// LoadWarehouses reads warehouse bin definitions from a YAML file
func LoadWarehouses(path string) ([]whse.Warehouse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read warehouses file: %w", err)
	}

	var file warehousesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode warehouses file: %w", err)
	}

	for i, w := range file.Warehouses {
		if w.ID == "" {
			return nil, fmt.Errorf("warehouse #%d: id is required", i+1)
		}
		switch w.Arrangement {
		case whse.BinsRanged:
			for j, r := range w.Ranges {
				if r.From == "" || r.Through == "" {
					return nil, fmt.Errorf("warehouse %s: range #%d needs from and through", w.ID, j+1)
				}
			}
		case whse.BinsListed:
			for j, b := range w.Bins {
				if b.Code == "" {
					return nil, fmt.Errorf("warehouse %s: bin #%d: code is required", w.ID, j+1)
				}
			}
		default:
			return nil, fmt.Errorf("warehouse %s: invalid arranged value %q (must be 'range' or 'list')", w.ID, w.Arrangement)
		}
	}

	return file.Warehouses, nil
}
