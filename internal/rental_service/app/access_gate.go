package app

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AccessGate checks the shared phrase that unlocks the buyer role.
// Only a bcrypt hash of the case-folded phrase is kept in memory.
type AccessGate struct {
	hash []byte
}

// NewAccessGate hashes phrase with the given bcrypt cost
// (bcrypt.DefaultCost when cost is zero).
func NewAccessGate(phrase string, cost int) (*AccessGate, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	folded := foldPhrase(phrase)
	if folded == "" {
		return nil, fmt.Errorf("access phrase must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(folded), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash access phrase: %w", err)
	}
	return &AccessGate{hash: hash}, nil
}

// Check compares phrase against the configured one, ignoring case.
func (g *AccessGate) Check(phrase string) bool {
	return bcrypt.CompareHashAndPassword(g.hash, []byte(foldPhrase(phrase))) == nil
}

func foldPhrase(p string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(p))
}
