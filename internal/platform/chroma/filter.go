package chroma

import "fmt"

// NormalizeFilter rewrites a metadata filter into the where-clause shape
// Chroma expects. Plain keys map to equality; a map with several plain
// keys is wrapped in $and because Chroma allows only one operator per
// clause level. Supported operators: $and, $or, $eq, $ne, $in.
func NormalizeFilter(filter map[string]any) (map[string]any, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	clauses := make([]map[string]any, 0, len(filter))
	for key, val := range filter {
		switch key {
		case "$and", "$or":
			list, ok := val.([]map[string]any)
			if !ok {
				anyList, okAny := val.([]any)
				if !okAny {
					return nil, fmt.Errorf("filter %s expects a list, got %T", key, val)
				}
				list = make([]map[string]any, 0, len(anyList))
				for _, item := range anyList {
					m, okM := item.(map[string]any)
					if !okM {
						return nil, fmt.Errorf("filter %s item must be a map, got %T", key, item)
					}
					list = append(list, m)
				}
			}
			sub := make([]any, 0, len(list))
			for _, item := range list {
				norm, err := NormalizeFilter(item)
				if err != nil {
					return nil, err
				}
				if norm != nil {
					sub = append(sub, norm)
				}
			}
			if len(sub) == 0 {
				continue
			}
			if len(sub) == 1 {
				m := sub[0].(map[string]any)
				clauses = append(clauses, m)
				continue
			}
			clauses = append(clauses, map[string]any{key: sub})
		default:
			switch v := val.(type) {
			case map[string]any:
				// already operator form, e.g. {"$ne": "x"} or {"$in": [...]}
				for op := range v {
					if op != "$eq" && op != "$ne" && op != "$in" {
						return nil, fmt.Errorf("unsupported filter operator %q on key %q", op, key)
					}
				}
				clauses = append(clauses, map[string]any{key: v})
			default:
				clauses = append(clauses, map[string]any{key: map[string]any{"$eq": val}})
			}
		}
	}

	if len(clauses) == 0 {
		return nil, nil
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	anyClauses := make([]any, len(clauses))
	for i := range clauses {
		anyClauses[i] = clauses[i]
	}
	return map[string]any{"$and": anyClauses}, nil
}

// MatchesFilter reports whether metadata satisfies an already-normalized
// filter. Used by the in-memory store so both implementations agree on
// filter semantics.
func MatchesFilter(metadata map[string]any, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for key, val := range filter {
		switch key {
		case "$and":
			for _, item := range asClauseList(val) {
				if !MatchesFilter(metadata, item) {
					return false
				}
			}
		case "$or":
			hit := false
			for _, item := range asClauseList(val) {
				if MatchesFilter(metadata, item) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		default:
			cond, ok := val.(map[string]any)
			if !ok {
				cond = map[string]any{"$eq": val}
			}
			got, present := metadata[key]
			for op, want := range cond {
				switch op {
				case "$eq":
					if !present || !looseEqual(got, want) {
						return false
					}
				case "$ne":
					if present && looseEqual(got, want) {
						return false
					}
				case "$in":
					if !present || !inList(got, want) {
						return false
					}
				default:
					return false
				}
			}
		}
	}
	return true
}

func asClauseList(val any) []map[string]any {
	switch list := val.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func inList(got, want any) bool {
	switch list := want.(type) {
	case []any:
		for _, item := range list {
			if looseEqual(got, item) {
				return true
			}
		}
	case []string:
		for _, item := range list {
			if looseEqual(got, item) {
				return true
			}
		}
	}
	return false
}

// looseEqual compares scalars across the int/float boundary JSON decoding
// introduces.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
