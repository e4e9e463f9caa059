// internal/providerdata/keys.go
package providerdata

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Every record of one provider shares a partition. Sort keys carry the
// record type so a single partition query returns the provider summary,
// all licenses, and all privileges together.

func providerPK(compact, providerID string) string {
	return compact + "#PROVIDER#" + providerID
}

func providerSK(compact string) string {
	return compact + "#PROVIDER"
}

func licenseSK(compact, jurisdiction, licenseType string) string {
	return compact + "#LICENSE#" + jurisdiction + "#" + licenseType
}

func privilegeSK(compact, jurisdiction string) string {
	return compact + "#PRIVILEGE#" + jurisdiction
}

// Name index keys. Sort components are case folded so listing order does
// not depend on how a jurisdiction capitalized a name.
func nameIndexPK(compact string) string {
	return compact + "#NAME"
}

func nameIndexSK(familyName, givenName, providerID string) string {
	return strings.ToLower(familyName) + "#" + strings.ToLower(givenName) + "#" + providerID
}

// itemType reads the record discriminator off a raw item.
func itemType(item map[string]types.AttributeValue) string {
	attr, ok := item["type"].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return attr.Value
}
