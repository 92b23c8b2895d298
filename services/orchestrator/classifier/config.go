// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// KeywordsFile is the YAML shape of an external keyword inventory.
//
// Example:
//
//	categories:
//	  - name: login
//	    patterns:
//	      - '\blogin\b'
//	      - '\bpassword\b'
//	  - name: vpn
//	    patterns:
//	      - '\bvpn\b'
//
// Category order in the file is match order. Patterns are compiled
// case-insensitively.
type KeywordsFile struct {
	Categories []struct {
		Name     string   `yaml:"name"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"categories"`
}

// LoadKeywordsFile parses a keyword inventory from disk and compiles it
// into a pattern table suitable for NewKeywordClassifierFromTable.
func LoadKeywordsFile(path string) ([]CategoryPatterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file %s: %w", path, err)
	}
	return ParseKeywords(data)
}

// ParseKeywords compiles a YAML keyword inventory into a pattern table.
func ParseKeywords(data []byte) ([]CategoryPatterns, error) {
	var file KeywordsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse keywords YAML: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("keywords file defines no categories")
	}
	table := make([]CategoryPatterns, 0, len(file.Categories))
	for _, cat := range file.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("keywords file has a category with no name")
		}
		if len(cat.Patterns) == 0 {
			return nil, fmt.Errorf("category %q defines no patterns", cat.Name)
		}
		cp := CategoryPatterns{Category: cat.Name}
		for _, raw := range cat.Patterns {
			compiled, err := regexp.Compile(`(?i)` + raw)
			if err != nil {
				return nil, fmt.Errorf("category %q pattern %q: %w", cat.Name, raw, err)
			}
			cp.Patterns = append(cp.Patterns, compiled)
		}
		table = append(table, cp)
	}
	return table, nil
}
