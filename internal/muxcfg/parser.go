package muxcfg

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Parse reads a mux config document and returns its root node.
func Parse(r io.Reader) (*Node, error) {
	root := NewRoot()
	ctx := root
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		var err error
		ctx, err = parseLine(scanner.Text(), ctx)
		if err != nil {
			return nil, fmt.Errorf("muxcfg: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("muxcfg: read: %w", err)
	}
	if ctx != root {
		return nil, fmt.Errorf("muxcfg: unclosed block at end of file")
	}
	return root, nil
}

func parseLine(line string, ctx *Node) (*Node, error) {
	line = stripComment(line)
	line = strings.TrimSpace(line)
	if line == "" {
		return ctx, nil
	}

	if idx := strings.Index(line, "{"); idx > 0 {
		ctx, err := parseLine(line[:idx], ctx)
		if err != nil {
			return nil, err
		}
		return parseLine(line[idx:], ctx)
	}

	switch line[0] {
	case '{':
		if ctx.Children == nil || len(ctx.Children) == 0 {
			return nil, fmt.Errorf("'{' with no preceding key")
		}
		return ctx.Children[len(ctx.Children)-1], nil
	case '}':
		if ctx.Parent == nil {
			return nil, fmt.Errorf("unmatched '}'")
		}
		return ctx.Parent, nil
	}

	tokens, err := tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return ctx, nil
	}
	key := tokens[0]
	value := ""
	if len(tokens) > 1 {
		value = tokens[1]
	}
	ctx.AddChild(key, value)
	return ctx, nil
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// tokenize splits a "key value" line, honoring double-quoted values
// that may themselves contain spaces (mirroring shlex.split's used
// subset of behavior).
func tokenize(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ' ' || c == '\t':
			if inQuotes {
				cur.WriteByte(c)
			} else {
				flush()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quoted value")
	}
	flush()
	return tokens, nil
}
