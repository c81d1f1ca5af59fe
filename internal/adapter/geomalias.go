package adapter

// GeometryAliases returns the physical column names that may carry the
// geometry a template declares under a canonical name. Datasets from
// different producers expose the same geometry under a handful of
// conventional spellings; the declared name always wins when present.
func GeometryAliases(declared string) []string {
	out := []string{declared}
	for _, alias := range []string{"geometry", "geom", "gem"} {
		if alias != declared {
			out = append(out, alias)
		}
	}
	return out
}

// ResolveGeometryColumn picks the physical column backing a declared
// geometry column, trying the declared name first and then known aliases.
// Returns "" when nothing matches.
func ResolveGeometryColumn(declared string, physical map[string]string) string {
	for _, cand := range GeometryAliases(declared) {
		if _, ok := physical[cand]; ok {
			return cand
		}
	}
	return ""
}
