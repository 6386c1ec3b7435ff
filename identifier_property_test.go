package sitehost_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sagarc03/sitehost"
)

func TestNormalizeIdentifier_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalization is idempotent", prop.ForAll(
		func(s string) bool {
			once := sitehost.NormalizeIdentifier(s)
			return sitehost.NormalizeIdentifier(once) == once
		},
		gen.AnyString(),
	))

	properties.Property("normalized output only holds [a-z0-9-]", prop.ForAll(
		func(s string) bool {
			for _, r := range sitehost.NormalizeIdentifier(s) {
				if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("non-empty short normalized output is a valid identifier", prop.ForAll(
		func(s string) bool {
			n := sitehost.NormalizeIdentifier(s)
			if n == "" || len(n) > sitehost.MaxIdentifierLength {
				return !sitehost.IsValidIdentifier(n)
			}
			return sitehost.IsValidIdentifier(n)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestStorageKey_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("different owners never share a key for the same identifier", prop.ForAll(
		func(s string) bool {
			id := sitehost.NormalizeIdentifier(s)
			if id == "" {
				return true
			}
			a := sitehost.StorageKey(uuid.New(), id, sitehost.KindHTML)
			b := sitehost.StorageKey(uuid.New(), id, sitehost.KindHTML)
			return a != b && sitehost.IsValidKey(a) && sitehost.IsValidKey(b)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
