//nolint:testpackage
package diagram

import (
	"bytes"
	"strings"
	"testing"

	xray "github.com/t-brain/neo4j-xray"
)

func TestGenerate_EdgeFanOut(t *testing.T) {
	rels := []xray.RelationshipType{
		{
			Type:        "OWNS",
			StartLabels: []string{"Person", "Company"},
			EndLabels:   []string{"Asset"},
		},
	}

	out := string(Generate(nil, rels))

	if got := strings.Count(out, "->"); got != 2 {
		t.Errorf("edge count = %d, want 2\noutput:\n%s", got, out)
	}

	for _, edge := range []string{`"Person" -> "Asset"`, `"Company" -> "Asset"`} {
		if !strings.Contains(out, edge) {
			t.Errorf("output missing edge %s", edge)
		}
	}
}

func TestGenerate_EdgeLabelWithProperties(t *testing.T) {
	rels := []xray.RelationshipType{
		{
			Type:        "KNOWS",
			StartLabels: []string{"Person"},
			EndLabels:   []string{"Person"},
			Properties:  map[string]any{"since": int64(2001), "close": true},
		},
	}

	out := string(Generate(nil, rels))

	if !strings.Contains(out, `label="KNOWS (close: boolean, since: integer)"`) {
		t.Errorf("edge label missing sorted property list:\n%s", out)
	}
}

func TestGenerate_NodeTable(t *testing.T) {
	nodes := []xray.NodeType{
		{
			Label:     "Person",
			NodeCount: 2,
			Properties: []xray.PropertyDescriptor{
				{Name: "id", InferredType: xray.KindInteger, PrimaryKey: true},
				{Name: "name", InferredType: xray.KindString},
			},
		},
	}

	out := string(Generate(nodes, nil))

	if !strings.Contains(out, "<B>Person</B> (Node)") {
		t.Error("output missing node header")
	}

	if !strings.Contains(out, `<TD BGCOLOR="#E0FFE0"><B>PK</B></TD>`) {
		t.Error("output missing primary key marker")
	}

	if !strings.Contains(out, `<TD ALIGN="LEFT">name</TD><TD ALIGN="LEFT">string</TD><TD></TD>`) {
		t.Error("output missing non-key property row")
	}
}

func TestGenerate_NoPropertiesPlaceholder(t *testing.T) {
	nodes := []xray.NodeType{{Label: "Empty"}}

	out := string(Generate(nodes, nil))

	if !strings.Contains(out, `<TR><TD COLSPAN="3">No properties</TD></TR>`) {
		t.Errorf("output missing placeholder row:\n%s", out)
	}
}

func TestGenerate_LayoutDeclaration(t *testing.T) {
	out := string(Generate(nil, nil))

	if !strings.Contains(out, "rankdir=LR") {
		t.Error("output missing rankdir=LR")
	}
}

func TestGenerate_EscapesSpecialCharacters(t *testing.T) {
	nodes := []xray.NodeType{
		{
			Label: `Odd"Label`,
			Properties: []xray.PropertyDescriptor{
				{Name: "a<b", InferredType: xray.KindString},
			},
		},
	}

	out := string(Generate(nodes, nil))

	if !strings.Contains(out, `"Odd\"Label"`) {
		t.Errorf("node identifier not quoted safely:\n%s", out)
	}

	if !strings.Contains(out, "a&lt;b") {
		t.Errorf("property name not HTML-escaped:\n%s", out)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	nodes := []xray.NodeType{
		{Label: "Person", Properties: []xray.PropertyDescriptor{{Name: "id", InferredType: xray.KindInteger, PrimaryKey: true}}},
	}
	rels := []xray.RelationshipType{
		{
			Type:        "KNOWS",
			StartLabels: []string{"Person"},
			EndLabels:   []string{"Person"},
			Properties:  map[string]any{"a": int64(1), "b": "x", "c": 1.5, "d": true},
		},
	}

	first := Generate(nodes, rels)

	for i := 0; i < 20; i++ {
		if next := Generate(nodes, rels); !bytes.Equal(first, next) {
			t.Fatal("Generate() output differs between calls")
		}
	}
}
