package reader

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// PrintSchema renders the schema tree as an indented type listing, one
// line per node, children indented one level under their parent:
//
//	root: STRUCT
//	  id: INT64
//	  tags: LIST
//	    element: STRING
//	  meta: STRUCT (optional)
//	    k: STRING
//	    v: INT64
//
// This is the sole output of the schema operation; no rows are decoded.
func PrintSchema(root *Node) string {
	var b strings.Builder
	printNode(&b, root, 0)
	return b.String()
}

func printNode(b *strings.Builder, n *Node, indent int) {
	for i := 0; i < indent; i++ {
		b.WriteString("  ")
	}
	b.WriteString(n.Name)
	b.WriteString(": ")
	b.WriteString(n.Type.String())
	if n.Nullable {
		b.WriteString(" (optional)")
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		printNode(b, c, indent+1)
	}
}

// WriteSchemaTable renders a per-leaf-column detail table: one row per
// leaf with its dot-notation path, logical type, and nullability.
func WriteSchemaTable(root *Node, w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Column", "Type", "Nullable"})
	appendLeafRows(table, root, "", false)
	table.Render()
}

func appendLeafRows(table *tablewriter.Table, n *Node, prefix string, nullable bool) {
	nullable = nullable || n.Nullable
	for _, c := range n.Children {
		name := c.Name
		if prefix != "" {
			name = prefix + "." + c.Name
		}
		if c.Leaf() {
			table.Append([]string{name, c.Type.String(), yesNo(nullable || c.Nullable)})
			continue
		}
		appendLeafRows(table, c, name, nullable)
	}
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
