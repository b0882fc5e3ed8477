package detect

import (
	"regexp"

	"github.com/Benny93/codenode/internal/graph"
)

// urlRegex matches http(s) URLs using a permissive URL character class.
var urlRegex = regexp.MustCompile(`https?://[\w\-._~:/?#\[\]@!$&'()*+,;=%]+`)

// ExtractURLs returns every http(s) URL in text, in order of appearance.
// Repeated URLs are returned once per occurrence.
func ExtractURLs(text string) []string {
	return urlRegex.FindAllString(text, -1)
}

// appendURLs adds a url node and a url edge from filePath for every URL
// found in text.
func appendURLs(res *Result, filePath, text string) {
	for _, u := range ExtractURLs(text) {
		id := graph.URLID(u)
		res.addNode(graph.Node{
			ID:    id,
			Label: u,
			Type:  graph.NodeURL,
			Meta:  map[string]string{"url": u},
		})
		res.addEdge(filePath, id, graph.EdgeURL)
	}
}
