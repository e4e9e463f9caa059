// internal/common/pagination/cursor_test.go
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func strAttr(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func numAttr(v string) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: v}
}

func binAttr(v []byte) types.AttributeValue {
	return &types.AttributeValueMemberB{Value: v}
}

func createTestKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": strAttr("aslp#PROVIDER#prov-001"),
		"sk": strAttr("aslp#LICENSE#oh#slp"),
	}
}

// rawToken base64url-encodes an arbitrary payload so malformed-document
// cases can be fed straight into DecodeCursor.
func rawToken(payload string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestEncodeCursor_EmptyKey(t *testing.T) {
	token, err := EncodeCursor(nil)
	assert.NoError(t, err)
	assert.Empty(t, token)

	token, err = EncodeCursor(map[string]types.AttributeValue{})
	assert.NoError(t, err)
	assert.Empty(t, token)
}

func TestEncodeCursor_TokenIsOpaqueAndURLSafe(t *testing.T) {
	token, err := EncodeCursor(createTestKey())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
}

func TestEncodeCursor_Deterministic(t *testing.T) {
	first, err := EncodeCursor(createTestKey())
	require.NoError(t, err)

	second, err := EncodeCursor(createTestKey())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncodeCursor_UnsupportedAttributeType(t *testing.T) {
	key := map[string]types.AttributeValue{
		"pk":   strAttr("aslp#PROVIDER#prov-001"),
		"flag": &types.AttributeValueMemberBOOL{Value: true},
	}

	token, err := EncodeCursor(key)
	assert.Error(t, err)
	assert.Empty(t, token)
	assert.Contains(t, err.Error(), "flag")
}

func TestCursor_RoundTrip_StringKeys(t *testing.T) {
	original := createTestKey()

	token, err := EncodeCursor(original)
	require.NoError(t, err)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestCursor_RoundTrip_MixedAttributeTypes(t *testing.T) {
	original := map[string]types.AttributeValue{
		"pk":      strAttr("aslp#PROVIDER#prov-001"),
		"sk":      strAttr("aslp#LICENSE#ne#aud"),
		"version": numAttr("42"),
		"shard":   binAttr([]byte{0x01, 0x02, 0x03}),
	}

	token, err := EncodeCursor(original)
	require.NoError(t, err)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestCursor_RoundTrip_NonUTF8Binary(t *testing.T) {
	// Raw key bytes are not guaranteed to be valid UTF-8.
	original := map[string]types.AttributeValue{
		"pk": binAttr([]byte{0xff, 0xfe, 0x00, 0x80, 0xc3, 0x28}),
	}

	token, err := EncodeCursor(original)
	require.NoError(t, err)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeCursor_TrimsSurroundingWhitespace(t *testing.T) {
	token, err := EncodeCursor(createTestKey())
	require.NoError(t, err)

	decoded, err := DecodeCursor("  " + token + "\n")
	require.NoError(t, err)
	assert.Equal(t, createTestKey(), decoded)
}

// ==========================
// Malformed Token Tests
// ==========================

func TestDecodeCursor_EmptyToken(t *testing.T) {
	for _, token := range []string{"", "   ", "\t\n"} {
		decoded, err := DecodeCursor(token)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidCursor))
		assert.Nil(t, decoded)
	}
}

func TestDecodeCursor_MalformedTokens(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"not base64", "!!!definitely not base64!!!"},
		{"padded base64", "eyJwayI6eyJzIjoiYSJ9fQ=="},
		{"base64 of plain text", rawToken("hello world")},
		{"base64 of a JSON array", rawToken(`["pk","sk"]`)},
		{"base64 of JSON null", rawToken(`null`)},
		{"empty key document", rawToken(`{}`)},
		{"attribute with no value", rawToken(`{"pk":{}}`)},
		{"attribute with two values", rawToken(`{"pk":{"s":"a","n":"1"}}`)},
		{"attribute with unknown tag", rawToken(`{"pk":{"bool":true}}`)},
		{"truncated JSON document", rawToken(`{"pk":{"s":"aslp#PROV`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeCursor(tc.token)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCursor))
			assert.Nil(t, decoded)
		})
	}
}

func TestDecodeCursor_TamperedToken(t *testing.T) {
	token, err := EncodeCursor(createTestKey())
	require.NoError(t, err)
	require.Greater(t, len(token), 8)

	truncated := token[:len(token)-8]
	decoded, err := DecodeCursor(truncated)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCursor))
	assert.Nil(t, decoded)
}

func TestDecodeCursor_NeverPanics(t *testing.T) {
	// Hostile inputs crafted from every failure path plus filler noise.
	inputs := []string{
		"",
		" ",
		"=",
		"====",
		strings.Repeat("A", 10000),
		string([]byte{0x00, 0x01, 0x02}),
		rawToken(`{"pk"`),
		rawToken(`{"pk":null}`),
		rawToken(`{"pk":{"b":"not!!base64"}}`),
		rawToken(`{"":{"s":""}}`),
	}

	for _, input := range inputs {
		assert.NotPanics(t, func() {
			_, _ = DecodeCursor(input)
		})
	}
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkEncodeCursor(b *testing.B) {
	key := createTestKey()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EncodeCursor(key)
	}
}

func BenchmarkDecodeCursor(b *testing.B) {
	token, err := EncodeCursor(createTestKey())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DecodeCursor(token)
	}
}
