// Package diagram renders the audit schema model as a Graphviz DOT
// entity-relationship diagram and rasterizes it with the external dot
// binary.
package diagram

import (
	"fmt"
	"html"
	"sort"
	"strings"

	xray "github.com/t-brain/neo4j-xray"
)

// Generate produces DOT source for the given node and relationship types.
// One box per label, one directed edge per (type, startLabel, endLabel)
// combination. Output is a pure function of its input: the same model
// always yields the same bytes.
func Generate(nodes []xray.NodeType, relationships []xray.RelationshipType) []byte {
	var b strings.Builder

	b.WriteString("digraph Neo4jGraph {\n")
	b.WriteString("  graph [rankdir=LR, fontname=\"Helvetica\", fontsize=12, pad=\"0.5\", nodesep=\"0.5\", ranksep=\"1.5\"];\n")
	b.WriteString("  node [shape=plain, fontname=\"Helvetica\", fontsize=10];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=9, penwidth=1.0];\n\n")

	for _, node := range nodes {
		fmt.Fprintf(&b, "  %s [label=%s];\n", quote(node.Label), nodeHTML(node))
	}

	b.WriteString("\n")

	for _, rel := range relationships {
		label := edgeLabel(rel)

		for _, start := range rel.StartLabels {
			for _, end := range rel.EndLabels {
				fmt.Fprintf(&b, "  %s -> %s [label=%s, fontname=\"Helvetica\", fontsize=8, color=\"#5D8AA8\", style=\"solid\"];\n",
					quote(start), quote(end), quote(label))
			}
		}
	}

	b.WriteString("}\n")

	return []byte(b.String())
}

// nodeHTML renders one label as an HTML-like table payload: a header row,
// a column header row, and one row per property. A label without
// properties gets a single placeholder row, never an empty table.
func nodeHTML(node xray.NodeType) string {
	rows := make([]string, 0, len(node.Properties))

	for _, prop := range node.Properties {
		pkCell := "<TD></TD>"
		if prop.PrimaryKey {
			pkCell = `<TD BGCOLOR="#E0FFE0"><B>PK</B></TD>`
		}

		rows = append(rows, fmt.Sprintf(`<TR><TD ALIGN="LEFT">%s</TD><TD ALIGN="LEFT">%s</TD>%s</TR>`,
			html.EscapeString(prop.Name), html.EscapeString(string(prop.InferredType)), pkCell))
	}

	rowsStr := `<TR><TD COLSPAN="3">No properties</TD></TR>`
	if len(rows) > 0 {
		rowsStr = strings.Join(rows, "\n")
	}

	return fmt.Sprintf(`<
    <TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">
        <TR>
            <TD COLSPAN="3" BGCOLOR="#4D7A97"><FONT COLOR="white"><B>%s</B> (Node)</FONT></TD>
        </TR>
        <TR>
            <TD BGCOLOR="#EEEEFF"><B>Property</B></TD>
            <TD BGCOLOR="#EEEEFF"><B>Type</B></TD>
            <TD BGCOLOR="#EEEEFF"><B>PK</B></TD>
        </TR>
        %s
    </TABLE>
>`, html.EscapeString(node.Label), rowsStr)
}

// edgeLabel builds the edge caption: the relationship type, plus a sorted
// "name: kind" list when the relationship carries properties.
func edgeLabel(rel xray.RelationshipType) string {
	if len(rel.Properties) == 0 {
		return rel.Type
	}

	names := make([]string, 0, len(rel.Properties))
	for name := range rel.Properties {
		names = append(names, name)
	}

	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, fmt.Sprintf("%s: %s", name, xray.KindOf(rel.Properties[name])))
	}

	return fmt.Sprintf("%s (%s)", rel.Type, strings.Join(pairs, ", "))
}

// quote wraps s in a double-quoted DOT string. Labels come straight from
// the database, so every character that could terminate or corrupt the
// quoted form is escaped.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)

	return `"` + s + `"`
}
