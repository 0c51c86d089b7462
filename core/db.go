package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CleanOrderings drops the orderings whose field is not in `allowed`.
// Orderings come from query params and end up in raw SQL.
func CleanOrderings(orderings []DBOrdering, allowed ...string) []DBOrdering {
	if len(orderings) == 0 {
		return nil
	}
	cleaned := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		for _, field := range allowed {
			if strings.EqualFold(ord.Field, field) {
				cleaned = append(cleaned, DBOrdering{Field: field, Ascending: ord.Ascending})
				break
			}
		}
	}
	return cleaned
}

// OrderBy joins orderings into an SQL ORDER BY list, falling back to `def` when empty.
func OrderBy(orderings []DBOrdering, def ...DBOrdering) string {
	if len(orderings) == 0 {
		orderings = def
	}
	list := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		list = append(list, ord.String())
	}
	return strings.Join(list, ", ")
}
