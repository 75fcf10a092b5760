// Package report renders the audit schema model as a markdown document.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	xray "github.com/t-brain/neo4j-xray"
)

// Markdown characters escaped in user-derived values.
const escapeSet = "|_*`[]()#+-.!"

const timestampLayout = "2006-01-02 15:04:05"

// Generator renders a SchemaModel as markdown. The model is read-only; the
// only side-channel input is the clock, which tests pin via Now.
type Generator struct {
	model *xray.SchemaModel

	// Now supplies the report timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewGenerator creates a Generator over a fully extracted model.
func NewGenerator(model *xray.SchemaModel) *Generator {
	return &Generator{model: model, Now: time.Now}
}

// Generate produces the full report. dotPath and pngPath are echoed into
// the closing diagram section.
func (g *Generator) Generate(dotPath, pngPath string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Neo4j Audit Report: `%s`\n", g.model.DBName)
	fmt.Fprintf(&b, "*Generated: %s*\n\n", g.Now().Format(timestampLayout))

	b.WriteString("## General Info\n")
	fmt.Fprintf(&b, "- Neo4j version: **%s**\n", g.model.Version)
	fmt.Fprintf(&b, "- DB Size: **%s**\n", g.model.DBSize)
	fmt.Fprintf(&b, "- Node Labels: **%d**\n", len(g.model.Nodes))
	fmt.Fprintf(&b, "- Relationship Types: **%d**\n\n", len(g.model.Relationships))

	g.writeNodes(&b)
	g.writeRelationships(&b)
	g.writeIndexes(&b)
	g.writeConstraints(&b)
	g.writeProcedures(&b)

	b.WriteString("## Graph Diagram\n")
	fmt.Fprintf(&b, "- DOT: `%s`  \n", dotPath)
	fmt.Fprintf(&b, "- PNG: `%s`  \n\n", pngPath)

	return b.String()
}

func (g *Generator) writeNodes(b *strings.Builder) {
	b.WriteString("## Node Labels\n")

	for _, node := range g.model.Nodes {
		fmt.Fprintf(b, "### %s\n", node.Label)
		fmt.Fprintf(b, "- Node Count: `%d`\n", node.NodeCount)

		b.WriteString("#### Properties\n\n")

		if len(node.Properties) > 0 {
			b.WriteString("| Name | Type | Primary Key |\n")
			b.WriteString("| ---- | ---- | ----------- |\n")

			for _, prop := range node.Properties {
				pk := "No"
				if prop.PrimaryKey {
					pk = "Yes"
				}

				fmt.Fprintf(b, "| %s | %s | %s |\n", Escape(prop.Name), Escape(string(prop.InferredType)), pk)
			}
		} else {
			b.WriteString("No properties defined.\n")
		}

		b.WriteString("\n#### Sample Data\n\n")
		g.writeSamples(b, g.model.Samples[node.Label])
		b.WriteString("\n")
	}
}

// writeSamples renders sample records as a table whose column set is the
// sorted union of keys across every record, not just the first one. A
// record missing a column renders an empty cell.
func (g *Generator) writeSamples(b *strings.Builder, samples []map[string]any) {
	if len(samples) == 0 {
		b.WriteString("No sample data available.\n")

		return
	}

	keySet := make(map[string]struct{})
	for _, sample := range samples {
		for key := range sample {
			keySet[key] = struct{}{}
		}
	}

	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	header := make([]string, len(keys))
	separator := make([]string, len(keys))

	for i, key := range keys {
		header[i] = Escape(key)
		separator[i] = "----"
	}

	fmt.Fprintf(b, "| %s |\n", strings.Join(header, " | "))
	fmt.Fprintf(b, "| %s |\n", strings.Join(separator, " | "))

	for _, sample := range samples {
		cells := make([]string, len(keys))

		for i, key := range keys {
			cells[i] = EscapeValue(sample[key])
		}

		fmt.Fprintf(b, "| %s |\n", strings.Join(cells, " | "))
	}
}

func (g *Generator) writeRelationships(b *strings.Builder) {
	b.WriteString("## Relationship Types\n")

	for _, rel := range g.model.Relationships {
		fmt.Fprintf(b, "### %s\n", rel.Type)
		fmt.Fprintf(b, "- Relationship Count: `%d`\n", rel.Count)
		fmt.Fprintf(b, "- Pattern: `(%s)-[:%s]->(%s)`\n",
			strings.Join(rel.StartLabels, ", "), rel.Type, strings.Join(rel.EndLabels, ", "))

		b.WriteString("\n#### Properties\n\n")

		if len(rel.Properties) > 0 {
			b.WriteString("| Name | Type |\n")
			b.WriteString("| ---- | ---- |\n")

			names := make([]string, 0, len(rel.Properties))
			for name := range rel.Properties {
				names = append(names, name)
			}

			sort.Strings(names)

			// Only the value's runtime kind is printed, never the value.
			for _, name := range names {
				fmt.Fprintf(b, "| %s | %s |\n", Escape(name), Escape(string(xray.KindOf(rel.Properties[name]))))
			}
		} else {
			b.WriteString("No properties defined.\n")
		}

		b.WriteString("\n")
	}
}

func (g *Generator) writeIndexes(b *strings.Builder) {
	if len(g.model.Indexes) == 0 {
		return
	}

	b.WriteString("## Indexes\n")
	b.WriteString("| Name | Type | Node Label/Relationship Type | Properties | Uniqueness |\n")
	b.WriteString("| ---- | ---- | ---------------------------- | ---------- | ---------- |\n")

	for _, idx := range g.model.Indexes {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			EscapeValue(idx["name"]),
			EscapeValue(idx["type"]),
			Escape(joinList(idx["labelsOrTypes"])),
			Escape(joinList(idx["properties"])),
			EscapeValue(idx["uniqueness"]))
	}

	b.WriteString("\n")
}

func (g *Generator) writeConstraints(b *strings.Builder) {
	if len(g.model.Constraints) == 0 {
		return
	}

	b.WriteString("## Constraints\n")
	b.WriteString("| Name | Type | Node Label/Relationship Type | Properties |\n")
	b.WriteString("| ---- | ---- | ---------------------------- | ---------- |\n")

	for _, constraint := range g.model.Constraints {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			EscapeValue(constraint["name"]),
			EscapeValue(constraint["type"]),
			Escape(joinList(constraint["labelsOrTypes"])),
			Escape(joinList(constraint["properties"])))
	}

	b.WriteString("\n")
}

func (g *Generator) writeProcedures(b *strings.Builder) {
	if len(g.model.Procedures) == 0 {
		return
	}

	b.WriteString("## Available Procedures\n")
	b.WriteString("| Name | Signature | Description |\n")
	b.WriteString("| ---- | --------- | ----------- |\n")

	for _, proc := range g.model.Procedures {
		fmt.Fprintf(b, "| %s | %s | %s |\n",
			EscapeValue(proc["name"]),
			EscapeValue(proc["signature"]),
			EscapeValue(proc["description"]))
	}

	b.WriteString("\n")
}

// Escape prefixes every markdown-significant character in s with a
// backslash. Each character is escaped independently and exactly once; a
// backslash already present in s is not in the escape set and passes
// through untouched, so applying Escape never compounds earlier escapes.
func Escape(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, r := range s {
		if strings.ContainsRune(escapeSet, r) {
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}

// EscapeValue renders an arbitrary sampled value for a table cell. Nil
// escapes to the empty string.
func EscapeValue(v any) string {
	if v == nil {
		return ""
	}

	return Escape(fmt.Sprintf("%v", v))
}

// joinList renders a list-valued pass-through field (labelsOrTypes,
// properties) as a comma-joined string.
func joinList(v any) string {
	items, _ := v.([]any)

	parts := make([]string, 0, len(items))

	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%v", item))
	}

	return strings.Join(parts, ", ")
}
