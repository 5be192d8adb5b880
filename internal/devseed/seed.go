// Package devseed loads fixture files used to pre-populate the mock ledger.
// Files may be YAML or JSON (JSON is valid YAML) and contain a list of
// student records.
package devseed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StudentSeedEntry is one record in a seed file.
type StudentSeedEntry struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Age    int    `yaml:"age" json:"age"`
	Grade  string `yaml:"grade" json:"grade"`
	Status string `yaml:"status" json:"status"`
}

// studentSeedFile accepts either a bare list or a {students: [...]} document.
type studentSeedFile struct {
	Students []StudentSeedEntry `yaml:"students"`
}

// LoadStudentSeed reads and parses the seed file at path.
func LoadStudentSeed(path string) ([]StudentSeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	return ParseStudentSeed(data)
}

// ParseStudentSeed decodes seed entries and checks that ids are present and
// unique.
func ParseStudentSeed(data []byte) ([]StudentSeedEntry, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var entries []StudentSeedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		var doc studentSeedFile
		if errDoc := yaml.Unmarshal(data, &doc); errDoc != nil {
			return nil, fmt.Errorf("devseed: decode student seed: %w", err)
		}
		entries = doc.Students
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("devseed: entry %d missing id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("devseed: duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	return entries, nil
}
