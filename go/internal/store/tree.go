package store

// Helpers for addressing sub-paths inside one decoded JSON document. The KV
// and Postgres backends store whole top-level documents, so operations on
// deeper paths are resolved client-side with read-modify-write.

func getAt(doc any, segments []string) (any, bool) {
	cur := doc
	for _, seg := range segments {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setAt(doc map[string]any, segments []string, value any) {
	node := doc
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

func removeAt(doc map[string]any, segments []string) {
	parents := make([]map[string]any, 0, len(segments))
	node := doc
	for _, seg := range segments[:len(segments)-1] {
		parents = append(parents, node)
		child, ok := node[seg].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, segments[len(segments)-1])

	for i := len(parents) - 1; i >= 0; i-- {
		child, _ := parents[i][segments[i]].(map[string]any)
		if child != nil && len(child) == 0 {
			delete(parents[i], segments[i])
		}
	}
}
