// Package compile turns textual SODG sources into binary graph
// images.
package compile

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"lukechampine.com/blake3"

	"github.com/objectionary/reo/internal/cache"
	"github.com/objectionary/reo/internal/graph"
	"github.com/objectionary/reo/internal/image"
	"github.com/objectionary/reo/internal/manifest"
	"github.com/objectionary/reo/internal/script"
)

// Pattern selects the sources of a tree.
const Pattern = "**/*.sodg"

// Result reports what one compilation did.
type Result struct {
	// Instructions deployed across all compiled sources.
	Instructions int
	// Files compiled.
	Files int
	// Skipped is set when the target image was already up to date.
	Skipped bool
}

// File compiles a single source file into an image at out. The image
// remembers the source digest; when it still matches, compilation is
// skipped unless forced.
func File(src, out string, force bool) (*Result, error) {
	content, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	sum := blake3.Sum256(content)
	digest := hex.EncodeToString(sum[:])
	if !force && image.SourceDigest(out) == digest {
		log.Printf("%s is up to date", out)
		return &Result{Skipped: true}, nil
	}
	g := graph.New()
	n, err := script.New(string(content)).Deploy(g)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", src, err)
	}
	if err := image.Save(out, g, digest); err != nil {
		return nil, err
	}
	log.Printf("deployed %d instructions from %s into %s", n, src, out)
	return &Result{Instructions: n, Files: 1}, nil
}

// Dir compiles every source under dir into one image at out. Sources
// land in packages picked by the tree manifest, falling back to their
// directory path; a source sees its package vertex as ν0, so sibling
// files extend one object space without id collisions.
//
// The sources are visited in sorted order and ids are allocated
// monotonically, which makes the output image reproducible.
func Dir(dir, out string, force bool) (*Result, error) {
	m, err := manifest.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	sources, err := doublestar.Glob(os.DirFS(dir), Pattern)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(sources)
	c, err := cache.Open(dir)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	contents := make(map[string][]byte, len(sources))
	tree := blake3.New(32, nil)
	fmt.Fprintf(tree, "manifest %s\n", m.Digest)
	for _, rel := range sources {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		content, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		info, err := os.Stat(full)
		if err != nil {
			return nil, fmt.Errorf("examining %s: %w", rel, err)
		}
		contents[rel] = content
		fmt.Fprintf(tree, "%s %s\n", rel, c.Digest(rel, info, content))
	}
	combined := hex.EncodeToString(tree.Sum(nil))
	if !force && image.SourceDigest(out) == combined {
		log.Printf("%s is up to date, %d sources unchanged", out, len(sources))
		return &Result{Skipped: true}, nil
	}
	g := graph.New()
	pkgs := map[string]uint32{"": graph.Root}
	res := &Result{}
	for _, rel := range sources {
		s := script.New(string(contents[rel]))
		s.SetRoot(anchor(g, pkgs, m.Package(rel)))
		n, err := s.Deploy(g)
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %w", rel, err)
		}
		log.Printf("deployed %d instructions from %s", n, rel)
		res.Instructions += n
		res.Files++
	}
	if err := image.Save(out, g, combined); err != nil {
		return nil, err
	}
	log.Printf("compiled %d sources, %d instructions, %d vertices into %s",
		res.Files, res.Instructions, g.Len(), out)
	return res, nil
}

// anchor returns the vertex of a dotted package, growing the chain
// from the root on first use. Package vertices carry ρ to their
// parent, so resolution inside a package can climb outward.
func anchor(g *graph.Graph, pkgs map[string]uint32, pkg string) uint32 {
	if v, ok := pkgs[pkg]; ok {
		return v
	}
	cur := graph.Root
	prefix := ""
	for _, part := range strings.Split(pkg, ".") {
		if part == "" {
			continue
		}
		if prefix == "" {
			prefix = part
		} else {
			prefix = prefix + "." + part
		}
		if v, ok := pkgs[prefix]; ok {
			cur = v
			continue
		}
		if v, ok := g.Attr(cur, part); ok {
			pkgs[prefix] = v
			cur = v
			continue
		}
		v := g.NextID()
		// cur exists, v is fresh and part was just checked absent.
		if err := g.Add(v); err != nil {
			panic(err)
		}
		if err := g.Bind(cur, v, part); err != nil {
			panic(err)
		}
		if err := g.Bind(v, cur, graph.AttrRho); err != nil {
			panic(err)
		}
		pkgs[prefix] = v
		cur = v
	}
	return cur
}
