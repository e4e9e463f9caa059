// internal/providerdata/selection.go
package providerdata

import (
	"fmt"
	"time"

	"licensure-workers/internal/models"
)

// LicenseActive derives a license's effective status: the jurisdiction
// reported it active AND the reference date, evaluated in loc, falls on or
// before the expiration date. An unparseable expiration counts as expired.
func LicenseActive(l models.License, ref time.Time, loc *time.Location) bool {
	if l.JurisdictionStatus != models.JurisdictionStatusActive {
		return false
	}
	expiration, err := models.ParseDate(l.DateOfExpiration)
	if err != nil {
		return false
	}
	y, m, d := ref.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !today.After(expiration)
}

// SelectCanonical picks the license that represents the provider across
// jurisdictions. Among active candidates the latest issuance wins; when no
// candidate is active, the latest issuance overall wins. Ties break by
// jurisdiction then license type so replays always pick the same record.
// The result depends only on the candidate set, not its order.
func SelectCanonical(candidates []models.License, ref time.Time, loc *time.Location) (models.License, error) {
	if len(candidates) == 0 {
		return models.License{}, fmt.Errorf("no license candidates to select from")
	}
	if loc == nil {
		loc = time.UTC
	}

	best := -1
	bestActive := false
	for i := range candidates {
		active := LicenseActive(candidates[i], ref, loc)
		switch {
		case best < 0:
			best, bestActive = i, active
		case active && !bestActive:
			best, bestActive = i, active
		case active == bestActive && outranks(candidates[i], candidates[best]):
			best = i
		}
	}
	return candidates[best], nil
}

// outranks orders two candidates of equal activity: later issuance first,
// then jurisdiction and license type ascending. Issuance dates are ISO
// strings, so byte comparison is date comparison.
func outranks(a, b models.License) bool {
	if a.DateOfIssuance != b.DateOfIssuance {
		return a.DateOfIssuance > b.DateOfIssuance
	}
	if a.Jurisdiction != b.Jurisdiction {
		return a.Jurisdiction < b.Jurisdiction
	}
	return a.LicenseType < b.LicenseType
}

// MergeSubmission replaces any prior record for the incoming license's
// (jurisdiction, licenseType) pair and appends the incoming record. The
// input slices are left untouched.
func MergeSubmission(existing []models.License, incoming models.License) []models.License {
	merged := make([]models.License, 0, len(existing)+1)
	for _, l := range existing {
		if l.Jurisdiction == incoming.Jurisdiction && l.LicenseType == incoming.LicenseType {
			continue
		}
		merged = append(merged, l)
	}
	return append(merged, incoming)
}
