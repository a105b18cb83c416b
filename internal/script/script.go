// Package script parses the textual SODG construction language and
// deploys it onto a graph.
//
// A script is a sequence of semicolon-terminated instructions, one per
// line:
//
//	ADD(v);           # create a vertex
//	BIND(v1, v2, a);  # create edge a from v1 to v2
//	PUT(v, data);     # attach a payload to v
//
// Vertex references are numeric ids ("0", "ν5"), or $-prefixed aliases
// ("$ν1", "$foo") resolved to fresh ids on first use and scoped to one
// script. Arguments may be wrapped in single or double quotes. Lines
// starting with # are comments; a # after the semicolon starts a
// trailing comment.
package script

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/objectionary/reo/internal/graph"
)

// ErrSyntax reports a malformed instruction.
var ErrSyntax = errors.New("malformed instruction")

var lineRe = regexp.MustCompile(`^([A-Z]+) *\( *(.*?) *\) *; *(?:#.*)?$`)

// Script is a parsed sequence of construction instructions together
// with the alias table used while deploying them.
type Script struct {
	text    string
	vars    map[string]uint32
	root    uint32
	hasRoot bool
}

// New wraps a script source text.
func New(text string) *Script {
	return &Script{text: text, vars: make(map[string]uint32)}
}

// SetRoot repositions every ν0 reference of the script onto the given
// vertex. Used to deploy a unit under its package vertex instead of
// the root.
func (s *Script) SetRoot(v uint32) {
	s.root = v
	s.hasRoot = true
}

// Deploy applies the instructions to the graph in order and returns
// how many were applied. It stops at the first failing instruction,
// naming its line.
func (s *Script) Deploy(g *graph.Graph) (int, error) {
	total := 0
	for i, raw := range strings.Split(s.text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.deployOne(line, g); err != nil {
			return total, fmt.Errorf("line %d: %q: %w", i+1, line, err)
		}
		total++
	}
	return total, nil
}

func (s *Script) deployOne(line string, g *graph.Graph) error {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return fmt.Errorf("cannot parse: %w", ErrSyntax)
	}
	args, err := splitArgs(m[2])
	if err != nil {
		return err
	}
	switch head := m[1]; head {
	case "ADD":
		if len(args) != 1 {
			return fmt.Errorf("ADD wants 1 argument, got %d: %w", len(args), ErrSyntax)
		}
		v, err := s.parseRef(args[0], g)
		if err != nil {
			return err
		}
		return g.Add(v)
	case "BIND":
		if len(args) != 3 {
			return fmt.Errorf("BIND wants 3 arguments, got %d: %w", len(args), ErrSyntax)
		}
		from, err := s.parseRef(args[0], g)
		if err != nil {
			return err
		}
		to, err := s.parseRef(args[1], g)
		if err != nil {
			return err
		}
		if args[2] == "" {
			return fmt.Errorf("empty attribute name: %w", ErrSyntax)
		}
		return g.Bind(from, to, args[2])
	case "PUT":
		if len(args) != 2 {
			return fmt.Errorf("PUT wants 2 arguments, got %d: %w", len(args), ErrSyntax)
		}
		v, err := s.parseRef(args[0], g)
		if err != nil {
			return err
		}
		d, err := graph.ParseData(args[1])
		if err != nil {
			return err
		}
		return g.Put(v, d)
	default:
		return fmt.Errorf("unknown instruction %q: %w", head, ErrSyntax)
	}
}

// splitArgs cuts a comma-separated argument list, honoring single and
// double quotes around individual arguments.
func splitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var args []string
	var cur strings.Builder
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ',':
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote: %w", ErrSyntax)
	}
	return append(args, strings.TrimSpace(cur.String())), nil
}

func (s *Script) parseRef(tok string, g *graph.Graph) (uint32, error) {
	if tok == "" {
		return 0, fmt.Errorf("empty vertex reference: %w", ErrSyntax)
	}
	if tok == "$ν0" || tok == "$0" {
		return 0, fmt.Errorf("aliasing the root with %q is illegal: %w", tok, ErrSyntax)
	}
	if name, ok := strings.CutPrefix(tok, "$"); ok {
		if name == "" {
			return 0, fmt.Errorf("empty alias: %w", ErrSyntax)
		}
		if v, known := s.vars[name]; known {
			return v, nil
		}
		v := g.NextID()
		s.vars[name] = v
		return v, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(tok, "ν"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("vertex reference %q: %w", tok, ErrSyntax)
	}
	if n == 0 && s.hasRoot {
		return s.root, nil
	}
	return uint32(n), nil
}
