package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// SecretMode selects where the shared secret enters the signed string.
type SecretMode int

const (
	// SecretAsField adds the secret as a "Password" field before sorting.
	// This is the form the SBP gateway itself uses.
	SecretAsField SecretMode = iota
	// SecretAppended appends the secret after the sorted values.
	SecretAppended
)

const (
	tokenField    = "Token"
	passwordField = "Password"
)

// unsignedFields never take part in the token even when scalar.
var unsignedFields = map[string]bool{
	tokenField: true,
	"Receipt":  true,
	"DATA":     true,
	"Data":     true,
}

// Signer computes request and notification tokens.
type Signer struct {
	Secret string
	Mode   SecretMode
}

// Token returns the hex SHA-256 of the canonical field string. Only
// top-level scalar fields are used, sorted by name.
func (s Signer) Token(fields map[string]any) string {
	values := make(map[string]string, len(fields)+1)
	for key, value := range fields {
		if unsignedFields[key] {
			continue
		}
		if str, ok := scalarString(value); ok {
			values[key] = str
		}
	}
	if s.Mode == SecretAsField {
		values[passwordField] = s.Secret
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(values[key])
	}
	if s.Mode == SecretAppended {
		b.WriteString(s.Secret)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether token equals the recomputed token exactly.
func (s Signer) Verify(fields map[string]any, token string) bool {
	expected := s.Token(fields)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

// scalarString renders a JSON scalar. Objects, arrays and nulls are skipped.
func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}
