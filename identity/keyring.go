package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// CurrentKeyID names the key configured as auth.session_secret.
const CurrentKeyID = "current"

// MinSecretLength is the shortest accepted HMAC secret.
const MinSecretLength = 32

// ErrKeyNotFound is returned when a token names a key the ring doesn't hold.
var ErrKeyNotFound = errors.New("signing key not found")

// SigningKey is a retired HMAC secret that still verifies sessions.
type SigningKey struct {
	ID     string `json:"id" mapstructure:"id"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// KeysConfig lists retired keys, inline and from a JSON file.
type KeysConfig struct {
	Inline []SigningKey `mapstructure:"inline"`
	File   string       `mapstructure:"file"`
}

// Keyring signs with the current secret and verifies with any known one,
// so a secret can be rotated without signing everyone out.
type Keyring struct {
	current []byte
	keys    map[string][]byte
}

// NewKeyring builds a ring from the current secret and any retired keys.
// File keys take precedence over inline keys with the same ID.
func NewKeyring(currentSecret string, cfg KeysConfig) (*Keyring, error) {
	if len(currentSecret) < MinSecretLength {
		return nil, fmt.Errorf("new keyring: session secret must be at least %d characters", MinSecretLength)
	}

	keys := map[string][]byte{}
	for _, k := range cfg.Inline {
		if k.ID != "" && k.Secret != "" {
			keys[k.ID] = []byte(k.Secret)
		}
	}

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("new keyring: %w", err)
		}
		for _, k := range fileKeys {
			keys[k.ID] = []byte(k.Secret)
		}
	}

	keys[CurrentKeyID] = []byte(currentSecret)

	return &Keyring{current: []byte(currentSecret), keys: keys}, nil
}

// LoadKeysFromFile reads retired keys from a JSON array:
//
//	[
//	  {"id": "2026-01", "secret": "..."},
//	  {"id": "2025-07", "secret": "..."}
//	]
//
// Entries missing an id or secret are skipped.
func LoadKeysFromFile(path string) ([]SigningKey, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var all []SigningKey
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}

	keys := make([]SigningKey, 0, len(all))
	for _, k := range all {
		if k.ID != "" && k.Secret != "" {
			keys = append(keys, k)
		}
	}

	return keys, nil
}

// Sign creates an HS256 token with the current key.
func (k *Keyring) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = CurrentKeyID
	return token.SignedString(k.current)
}

// KeyFunc resolves the verification key from the token's kid header.
func (k *Keyring) KeyFunc() jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("missing kid in header")
		}

		key, found := k.keys[kid]
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
		}
		return key, nil
	}
}
