package muxcfg

import (
	"fmt"
	"io"
	"strings"
)

// Write serializes a node tree back into the brace-nested format,
// re-quoting values that contain whitespace.
func Write(w io.Writer, root *Node) error {
	return writeChildren(w, root, 0)
}

func writeChildren(w io.Writer, n *Node, indent int) error {
	prefix := strings.Repeat("  ", indent)
	for _, child := range n.Children {
		if len(child.Children) > 0 {
			if _, err := fmt.Fprintf(w, "%s%s\n%s{\n", prefix, child.Key, prefix); err != nil {
				return err
			}
			if err := writeChildren(w, child, indent+1); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s}\n", prefix); err != nil {
				return err
			}
			continue
		}
		value := quoteIfNeeded(child.Value)
		if value == "" {
			if _, err := fmt.Fprintf(w, "%s%s\n", prefix, child.Key); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s%s %s\n", prefix, child.Key, value); err != nil {
			return err
		}
	}
	return nil
}

func quoteIfNeeded(v string) string {
	if v == "" {
		return v
	}
	if strings.ContainsAny(v, " \t") {
		return `"` + v + `"`
	}
	return v
}
