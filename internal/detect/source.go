package detect

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Benny93/codenode/internal/graph"
)

// importSuffixes is the probe order for relative import specifiers.
var importSuffixes = []string{"", ".ts", ".tsx", ".js", ".jsx", "/index.ts", "/index.js"}

// SourceDetector extracts relative imports, exported declarations and URLs
// from TypeScript and JavaScript files.
type SourceDetector struct {
	importRegex *regexp.Regexp
	declRegex   *regexp.Regexp
}

// NewSourceDetector creates a new source detector.
func NewSourceDetector() *SourceDetector {
	return &SourceDetector{
		// import x from '...', import '...', import('...'), require('...')
		importRegex: regexp.MustCompile(`\b(?:import\s*(?:[^'";]*?\bfrom\s*)?|(?:require|import)\s*\(\s*)['"]([^'"\n]+)['"]`),
		// export [async] function|class Name, export const Name = | :
		declRegex: regexp.MustCompile(`\bexport\s+(?:async\s+)?(?:function|class)\s+(\w+)|\bexport\s+const\s+(\w+)\s*[=:]`),
	}
}

// Category returns CategorySource.
func (d *SourceDetector) Category() Category {
	return CategorySource
}

// Detect returns the file node, import edges, declaration nodes with their
// declares edges, and url nodes with their url edges.
func (d *SourceDetector) Detect(filePath, text string, known *KnownFiles) *Result {
	res := &Result{}
	if Classify(filePath) != CategorySource {
		return res
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	res.addNode(fileNode(filePath, graph.NodeType(strings.TrimPrefix(ext, "."))))

	d.detectImports(res, filePath, text, known)
	d.detectDeclarations(res, filePath, text)
	appendURLs(res, filePath, text)

	return res
}

func (d *SourceDetector) detectImports(res *Result, filePath, text string, known *KnownFiles) {
	for _, match := range d.importRegex.FindAllStringSubmatch(text, -1) {
		if len(match) < 2 {
			continue
		}

		// Bare specifiers name packages outside the workspace.
		spec := strings.TrimSpace(match[1])
		if !strings.HasPrefix(spec, ".") {
			continue
		}

		if target, ok := ResolveImport(filePath, spec, known); ok {
			res.addEdge(filePath, target, graph.EdgeImport)
		}
	}
}

func (d *SourceDetector) detectDeclarations(res *Result, filePath, text string) {
	for _, match := range d.declRegex.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if name == "" && len(match) > 2 {
			name = match[2]
		}
		if name == "" {
			continue
		}

		id := graph.DeclID(filePath, name)
		res.addNode(graph.Node{
			ID:       id,
			Label:    name,
			Type:     graph.NodeFn,
			FilePath: filePath,
			Meta:     map[string]string{"parent": filePath},
		})
		res.addEdge(filePath, id, graph.EdgeDeclares)
	}
}

// ResolveImport resolves a relative import specifier from filePath against
// the known files, probing the exact path, then .ts, .tsx, .js, .jsx,
// /index.ts and /index.js. Returns false if no candidate is known.
func ResolveImport(filePath, spec string, known *KnownFiles) (string, bool) {
	base := resolveRelative(filePath, spec)
	for _, suffix := range importSuffixes {
		candidate := base + filepath.FromSlash(suffix)
		if known.Has(candidate) {
			return candidate, true
		}
	}
	return "", false
}
