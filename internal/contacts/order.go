package contacts

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sort returns a copy of list ordered by last name. Comparison ignores case
// and accents; empty last names come first and ties keep their input order.
func Sort(list []Contact) []Contact {
	out := slices.Clone(list)
	// collate.Collator is not safe for concurrent use.
	col := collate.New(language.Und, collate.Loose)
	slices.SortStableFunc(out, func(a, b Contact) int {
		switch {
		case a.LastName == "" && b.LastName == "":
			return 0
		case a.LastName == "":
			return -1
		case b.LastName == "":
			return 1
		}
		return col.CompareString(a.LastName, b.LastName)
	})
	return out
}

// Filter returns the contacts whose "first last email" contains query,
// ignoring case. An empty query returns list itself.
func Filter(list []Contact, query string) []Contact {
	if query == "" {
		return list
	}
	q := strings.ToLower(query)
	out := make([]Contact, 0, len(list))
	for _, c := range list {
		if strings.Contains(strings.ToLower(searchText(c)), q) {
			out = append(out, c)
		}
	}
	return out
}

func searchText(c Contact) string {
	return c.FirstName + " " + c.LastName + " " + c.Email
}
