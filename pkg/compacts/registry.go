// pkg/compacts/registry.go
package compacts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadRegistry reads and validates the compact registry document.
// Abbreviations, license types, and jurisdictions are matched
// case-insensitively everywhere.
func LoadRegistry(path string) (*CompactRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg CompactRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse compact registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid compact registry %s: %w", path, err)
	}
	return &reg, nil
}

func (r *CompactRegistry) Validate() error {
	if len(r.Compacts) == 0 {
		return fmt.Errorf("registry lists no compacts")
	}
	seen := make(map[string]bool, len(r.Compacts))
	for _, c := range r.Compacts {
		abbr := strings.ToLower(c.Abbreviation)
		if abbr == "" {
			return fmt.Errorf("compact %q has no abbreviation", c.DisplayName)
		}
		if seen[abbr] {
			return fmt.Errorf("compact %q listed twice", abbr)
		}
		seen[abbr] = true
		if len(c.LicenseTypes) == 0 {
			return fmt.Errorf("compact %q lists no license types", abbr)
		}
		if len(c.MemberJurisdictions) == 0 {
			return fmt.Errorf("compact %q lists no member jurisdictions", abbr)
		}
	}
	return nil
}

// Get looks up a compact by abbreviation.
func (r *CompactRegistry) Get(abbreviation string) (*Compact, bool) {
	for i := range r.Compacts {
		if strings.EqualFold(r.Compacts[i].Abbreviation, abbreviation) {
			return &r.Compacts[i], true
		}
	}
	return nil, false
}

func (c *Compact) IsMemberJurisdiction(jurisdiction string) bool {
	for _, member := range c.MemberJurisdictions {
		if strings.EqualFold(member, jurisdiction) {
			return true
		}
	}
	return false
}

func (c *Compact) HasLicenseType(licenseType string) bool {
	for _, lt := range c.LicenseTypes {
		if strings.EqualFold(lt, licenseType) {
			return true
		}
	}
	return false
}
