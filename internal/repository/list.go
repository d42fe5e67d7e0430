package repository

import "strings"

// ListQuery describes the sort, filter and pagination applied to list endpoints.
type ListQuery struct {
	Search string // substring match on the searchable column
	Sort   string // column key, validated against a whitelist
	Desc   bool
	Limit  int // 0 means no limit
	Offset int
}

// orderBy resolves q.Sort against the allowed columns, falling back to def.
func orderBy(q ListQuery, allowed map[string]string, def string) string {
	col, ok := allowed[strings.ToLower(q.Sort)]
	if !ok {
		col = def
	}
	if q.Desc {
		return " ORDER BY " + col + " DESC"
	}
	return " ORDER BY " + col + " ASC"
}

// page appends LIMIT/OFFSET when a limit is set.
func page(q ListQuery, args []any) (string, []any) {
	if q.Limit <= 0 {
		return "", args
	}
	return " LIMIT ? OFFSET ?", append(args, q.Limit, q.Offset)
}

// likeClause is a LIKE predicate on col using ! as the escape character, valid in MySQL and SQLite.
func likeClause(col string) string { return col + " LIKE ? ESCAPE '!'" }

func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(s) + "%"
}
