// Package aggregate reduces raw contact records to one canonical record
// per unique email address.
package aggregate

import (
	"sort"
	"strings"

	"github.com/contactkit/mailharvest/internal/contact"
)

// Aggregate groups records by lower-cased email and selects one
// canonical record per group: the first record carrying a non-empty
// role, or the first record outright when no role is present anywhere
// in the group. Input order is the tie-break, so callers must feed
// records in scan order.
//
// The result is sorted ascending by (LastName, FirstName), case
// sensitive, empty strings first.
func Aggregate(records []contact.Record) []contact.Record {
	type group struct {
		first    contact.Record
		withRole *contact.Record
	}

	groups := make(map[string]*group)
	var order []string

	for _, rec := range records {
		key := strings.ToLower(rec.Email)
		if key == "" || !strings.Contains(key, "@") {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{first: rec}
			groups[key] = g
			order = append(order, key)
		}
		if g.withRole == nil && rec.Role != "" {
			r := rec
			g.withRole = &r
		}
	}

	out := make([]contact.Record, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.withRole != nil {
			out = append(out, *g.withRole)
		} else {
			out = append(out, g.first)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})

	return out
}
