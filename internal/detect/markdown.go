package detect

import (
	"regexp"
	"strings"

	"github.com/Benny93/codenode/internal/graph"
)

// MarkdownDetector extracts wikilinks, inline links and URLs from markdown.
type MarkdownDetector struct {
	wikilinkRegex *regexp.Regexp
	linkRegex     *regexp.Regexp
}

// NewMarkdownDetector creates a new markdown detector.
func NewMarkdownDetector() *MarkdownDetector {
	return &MarkdownDetector{
		// [[Target]], [[Target|alias]], [[Target#anchor]]
		wikilinkRegex: regexp.MustCompile(`\[\[([^\]|#]+?)(?:[|#][^\]]*)?\]\]`),
		// [text](target)
		linkRegex: regexp.MustCompile(`\[[^\]]*\]\(([^)]+)\)`),
	}
}

// Category returns CategoryMarkdown.
func (d *MarkdownDetector) Category() Category {
	return CategoryMarkdown
}

// Detect returns the md file node plus wikilink, mdlink and url edges.
// The three scans are independent and always all run.
func (d *MarkdownDetector) Detect(filePath, text string, known *KnownFiles) *Result {
	res := &Result{}
	if Classify(filePath) != CategoryMarkdown {
		return res
	}

	res.addNode(fileNode(filePath, graph.NodeMD))

	d.detectWikilinks(res, filePath, text, known)
	d.detectLinks(res, filePath, text, known)
	appendURLs(res, filePath, text)

	return res
}

func (d *MarkdownDetector) detectWikilinks(res *Result, filePath, text string, known *KnownFiles) {
	for _, match := range d.wikilinkRegex.FindAllStringSubmatch(text, -1) {
		if len(match) < 2 {
			continue
		}

		name := strings.TrimSpace(match[1])
		if name == "" {
			continue
		}

		target, ok := known.LookupStem(name)
		if !ok {
			continue
		}
		res.addEdge(filePath, target, graph.EdgeWikilink)
	}
}

func (d *MarkdownDetector) detectLinks(res *Result, filePath, text string, known *KnownFiles) {
	for _, match := range d.linkRegex.FindAllStringSubmatch(text, -1) {
		if len(match) < 2 {
			continue
		}

		link := strings.TrimSpace(match[1])
		if link == "" || strings.HasPrefix(link, "http") || strings.HasPrefix(link, "#") {
			continue
		}

		// No extension guessing: the link must name the file exactly.
		link, _, _ = strings.Cut(link, "#")
		if link == "" {
			continue
		}

		candidate := resolveRelative(filePath, link)
		if known.Has(candidate) {
			res.addEdge(filePath, candidate, graph.EdgeMDLink)
		}
	}
}
