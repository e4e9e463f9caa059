// internal/common/pagination/cursor.go
package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrInvalidCursor = errors.New("INVALID_CURSOR")
)

// cursorValue is the tagged wire form of one key attribute. Exactly one
// field is set. Binary values round-trip through JSON's base64 encoding, so
// keys containing non-UTF-8 bytes survive intact.
type cursorValue struct {
	S *string `json:"s,omitempty"`
	N *string `json:"n,omitempty"`
	B []byte  `json:"b,omitempty"`
}

// EncodeCursor renders a store key as an opaque resume token: canonical
// JSON (map keys sort deterministically) wrapped in unpadded base64url.
// An empty key encodes to the empty token.
func EncodeCursor(lastKey map[string]types.AttributeValue) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}

	doc := make(map[string]cursorValue, len(lastKey))
	for name, av := range lastKey {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			s := v.Value
			doc[name] = cursorValue{S: &s}
		case *types.AttributeValueMemberN:
			n := v.Value
			doc[name] = cursorValue{N: &n}
		case *types.AttributeValueMemberB:
			doc[name] = cursorValue{B: v.Value}
		default:
			return "", fmt.Errorf("unsupported key attribute type %T for %q", av, name)
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor is the exact inverse of EncodeCursor. Any malformed token
// (bad base64, bad JSON, unknown tags, empty or blank input) returns an
// error wrapping ErrInvalidCursor; it never panics.
func DecodeCursor(token string) (map[string]types.AttributeValue, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidCursor)
	}

	data, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var doc map[string]cursorValue
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidCursor)
	}

	key := make(map[string]types.AttributeValue, len(doc))
	for name, cv := range doc {
		set := 0
		if cv.S != nil {
			key[name] = &types.AttributeValueMemberS{Value: *cv.S}
			set++
		}
		if cv.N != nil {
			key[name] = &types.AttributeValueMemberN{Value: *cv.N}
			set++
		}
		if cv.B != nil {
			key[name] = &types.AttributeValueMemberB{Value: cv.B}
			set++
		}
		if set != 1 {
			return nil, fmt.Errorf("%w: attribute %q must carry exactly one value", ErrInvalidCursor, name)
		}
	}
	return key, nil
}
