// Package contact defines the records flowing through the harvest pipeline.
package contact

import "strings"

// Record is one raw contact occurrence harvested from a mail store.
// Many Records may share an email; aggregation reduces them to one
// canonical record per address.
type Record struct {
	FirstName string
	LastName  string
	FullName  string
	Email     string
	Role      string
	Source    string
	// Guessed marks addresses synthesized from a display name and a
	// fallback domain rather than resolved from the store. Consumers
	// that need verified addresses should filter on it.
	Guessed bool
}

// SplitName derives first and last name from a display name. The first
// whitespace token is the first name; the remaining tokens joined with a
// single space form the last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	first = parts[0]
	if len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	return first, last
}

// ValidEmail reports whether s can enter the pipeline: non-empty,
// contains an @, and is not an internal directory path.
func ValidEmail(s string) bool {
	if s == "" || !strings.Contains(s, "@") {
		return false
	}
	return !IsDirectoryAddress(s)
}

// IsDirectoryAddress reports whether s is an internal organizational
// address path (an Exchange-style X.500 DN) rather than an SMTP address.
func IsDirectoryAddress(s string) bool {
	return strings.HasPrefix(s, "/o=") || strings.HasPrefix(s, "/O=")
}

// NewRecord builds a Record from a display name and email, normalizing
// the email to lower case and deriving the name split.
func NewRecord(fullName, email, role, source string) Record {
	first, last := SplitName(fullName)
	return Record{
		FirstName: first,
		LastName:  last,
		FullName:  fullName,
		Email:     strings.ToLower(email),
		Role:      role,
		Source:    source,
	}
}
