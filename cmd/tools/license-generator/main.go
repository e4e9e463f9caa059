// cmd/tools/license-generator/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"licensure-workers/internal/models"
	licenseingest "licensure-workers/internal/workers/ingest/license-ingest"
	"licensure-workers/pkg/compacts"
)

var givenNames = []string{
	"Ada", "Björn", "Carmen", "Dmitri", "Elena", "Farid", "Grace", "Hiro",
	"Imani", "Jonas", "Keiko", "Liam", "María", "Noor", "Oscar", "Priya",
}

var familyNames = []string{
	"Andersson", "Baptiste", "Castillo", "Dunn", "Eriksen", "Fontaine",
	"García", "Holloway", "Ivanov", "Jensen", "Khatri", "Lindqvist",
	"Moreau", "Nakamura", "O'Brien", "Petrov",
}

var streets = []string{
	"Maple Street", "Oak Avenue", "Cedar Lane", "Birch Road", "Elm Drive",
	"Willow Court", "Chestnut Boulevard", "Spruce Way",
}

var cities = []string{
	"Columbus", "Lincoln", "Frankfort", "Topeka", "Nashville", "Denver",
	"Montgomery", "Cheyenne",
}

func main() {
	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Generate command flags
	registryPath := generateCmd.String("registry", "configs/compacts.json", "Path to the compact registry file")
	compactFlag := generateCmd.String("compact", "", "Compact abbreviation (e.g., aslp)")
	count := generateCmd.Int("count", 25, "Number of license submissions to generate")
	providerCount := generateCmd.Int("providers", 0, "Distinct providers in the batch (0 = about one per two submissions)")
	seed := generateCmd.Int64("seed", 0, "Random seed (0 = time-based; set for reproducible batches)")
	inactiveRate := generateCmd.Float64("inactive-rate", 0.2, "Fraction of submissions with an inactive jurisdiction status")
	invalidRate := generateCmd.Float64("invalid-rate", 0, "Fraction of submissions salted with a rejectable defect")
	out := generateCmd.String("out", "-", "Output file (- = stdout)")

	// Validate command flags
	validatePath := validateCmd.String("path", "configs/compacts.json", "Path to the compact registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		generateCmd.Parse(os.Args[2:])
		if *compactFlag == "" {
			fmt.Println("Error: compact is required for generate.")
			generateCmd.Usage()
			os.Exit(1)
		}
		if err := generate(*registryPath, *compactFlag, *count, *providerCount, *seed, *inactiveRate, *invalidRate, *out); err != nil {
			fmt.Printf("Error generating batch: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validate(*validatePath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

// generate emits one license-ingest input batch as JSON, shaped exactly
// like the worker's job variables so it can seed a process instance
// without translation.
func generate(registryPath, compact string, count, providerCount int, seed int64, inactiveRate, invalidRate float64, out string) error {
	reg, err := compacts.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	c, ok := reg.Get(compact)
	if !ok {
		return fmt.Errorf("compact %s is not in the registry", compact)
	}
	if count < 1 {
		return fmt.Errorf("count must be at least 1")
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// A provider pool smaller than the batch makes multi-license providers
	// common, which is what exercises the canonical selection.
	if providerCount < 1 {
		providerCount = (count + 1) / 2
	}
	pool := make([]syntheticProvider, providerCount)
	for i := range pool {
		pool[i] = newSyntheticProvider(rng)
	}

	batch := licenseingest.Input{
		Compact:     strings.ToLower(c.Abbreviation),
		Submissions: make([]models.LicenseSubmission, 0, count),
	}
	for i := 0; i < count; i++ {
		sub := newSubmission(rng, c, pool[rng.Intn(len(pool))], inactiveRate)
		if rng.Float64() < invalidRate {
			salt(rng, &sub)
		}
		batch.Submissions = append(batch.Submissions, sub)
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	if out == "-" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("failed to write batch file: %w", err)
	}
	fmt.Printf("Wrote %d submissions for compact %s to %s (seed %d)\n", count, batch.Compact, out, seed)
	return nil
}

func validate(path string) error {
	reg, err := compacts.LoadRegistry(path)
	if err != nil {
		return err
	}
	fmt.Printf("Registry validation passed. Found %d compacts.\n", len(reg.Compacts))
	for _, c := range reg.Compacts {
		fmt.Printf("  %s: %d license types, %d member jurisdictions\n",
			strings.ToLower(c.Abbreviation), len(c.LicenseTypes), len(c.MemberJurisdictions))
	}
	return nil
}

type syntheticProvider struct {
	id         string
	givenName  string
	middleName string
	familyName string
	birthDate  string
	email      string
	phone      string
	street     string
	city       string
	postal     string
}

func newSyntheticProvider(rng *rand.Rand) syntheticProvider {
	given := givenNames[rng.Intn(len(givenNames))]
	family := familyNames[rng.Intn(len(familyNames))]

	p := syntheticProvider{
		id:         uuid.NewString(),
		givenName:  given,
		familyName: family,
		birthDate:  randomDate(rng, -23000, -9500),
		email:      fmt.Sprintf("%s.%s.%04d@example.org", sanitize(given), sanitize(family), rng.Intn(10000)),
		street:     fmt.Sprintf("%d %s", 1+rng.Intn(9899), streets[rng.Intn(len(streets))]),
		city:       cities[rng.Intn(len(cities))],
		postal:     fmt.Sprintf("%05d", 10000+rng.Intn(89999)),
	}
	if rng.Float64() < 0.3 {
		p.middleName = givenNames[rng.Intn(len(givenNames))]
	}
	if rng.Float64() < 0.7 {
		p.phone = fmt.Sprintf("+1555%07d", rng.Intn(10000000))
	}
	return p
}

func newSubmission(rng *rand.Rand, c *compacts.Compact, p syntheticProvider, inactiveRate float64) models.LicenseSubmission {
	jurisdiction := c.MemberJurisdictions[rng.Intn(len(c.MemberJurisdictions))]
	licenseType := c.LicenseTypes[rng.Intn(len(c.LicenseTypes))]

	issuedDaysAgo := 30 + rng.Intn(3650)
	sub := models.LicenseSubmission{
		ProviderID:         p.id,
		Compact:            strings.ToLower(c.Abbreviation),
		Jurisdiction:       strings.ToLower(jurisdiction),
		LicenseType:        strings.ToLower(licenseType),
		LicenseNumber:      fmt.Sprintf("%c%06d", 'A'+rune(rng.Intn(26)), rng.Intn(1000000)),
		GivenName:          p.givenName,
		MiddleName:         p.middleName,
		FamilyName:         p.familyName,
		DateOfBirth:        p.birthDate,
		HomeAddressStreet1: p.street,
		HomeAddressCity:    p.city,
		HomeAddressState:   strings.ToLower(jurisdiction),
		HomeAddressPostal:  p.postal,
		EmailAddress:       p.email,
		PhoneNumber:        p.phone,
		DateOfIssuance:     randomDate(rng, -issuedDaysAgo, -issuedDaysAgo),
		JurisdictionStatus: models.JurisdictionStatusActive,
	}

	// Renewals land between issuance and today.
	if issuedDaysAgo > 400 && rng.Float64() < 0.5 {
		sub.DateOfRenewal = randomDate(rng, -(issuedDaysAgo-370), -1)
	}

	// Mostly current licenses, with enough expired ones to exercise the
	// derived-status logic downstream.
	if rng.Float64() < 0.7 {
		sub.DateOfExpiration = randomDate(rng, 30, 730)
	} else {
		sub.DateOfExpiration = randomDate(rng, -365, -1)
	}

	if rng.Float64() < inactiveRate {
		sub.JurisdictionStatus = models.JurisdictionStatusInactive
	}
	return sub
}

// salt injects one defect the ingest worker rejects, so generated batches
// can cover the partial-failure path too.
func salt(rng *rand.Rand, sub *models.LicenseSubmission) {
	switch rng.Intn(4) {
	case 0:
		sub.ProviderID = ""
	case 1:
		sub.Jurisdiction = "zz"
	case 2:
		sub.LicenseType = "xx"
	case 3:
		sub.Compact = "xx"
	}
}

// randomDate returns an ISO date between now+minDays and now+maxDays.
func randomDate(rng *rand.Rand, minDays, maxDays int) string {
	days := minDays
	if maxDays > minDays {
		days += rng.Intn(maxDays - minDays + 1)
	}
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "provider"
	}
	return b.String()
}

func help() {
	fmt.Print(`
Usage: license-generator <command> [flags]

Commands:
  generate  Emit a synthetic license submission batch as JSON
  validate  Validate the compact registry file
  help      Show this help message

Examples:
  license-generator generate -compact aslp -count 50 -out batch.json
  license-generator generate -compact octp -count 200 -seed 42 -invalid-rate 0.1
  license-generator validate -path configs/compacts.json

Use 'license-generator <command> -h' for more information about a command.
`)
}
