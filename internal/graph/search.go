package graph

import "strings"

// Search returns up to limit nodes, in ID order, whose label or ID contains
// query ignoring case. A limit <= 0 returns every match.
func (g *Graph) Search(query string, limit int) []Node {
	q := strings.ToLower(query)
	var out []Node
	for _, n := range g.Nodes() {
		if strings.Contains(strings.ToLower(n.Label), q) || strings.Contains(strings.ToLower(n.ID), q) {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
