package csv_test

import (
	"reflect"
	"testing"

	"github.com/shapestone/shape-core/pkg/ast"

	"github.com/shapestone/csvstream/pkg/csv"
)

func TestTableToAST(t *testing.T) {
	table := sampleTable(t)
	node, err := table.ToAST()
	if err != nil {
		t.Fatalf("ToAST() error = %v", err)
	}

	rows := node.Elements()
	if len(rows) != 3 {
		t.Fatalf("ToAST() has %d rows, want 3 (header included)", len(rows))
	}
	first, ok := rows[0].(*ast.ArrayDataNode)
	if !ok {
		t.Fatalf("row node = %T, want *ast.ArrayDataNode", rows[0])
	}
	lit, ok := first.Elements()[1].(*ast.LiteralNode)
	if !ok || lit.Value() != "b" {
		t.Errorf("header field = %v", first.Elements()[1])
	}

	back, err := csv.TableFromAST(node, csv.DefaultOptions())
	if err != nil {
		t.Fatalf("TableFromAST() error = %v", err)
	}
	if !reflect.DeepEqual(back.Header(), table.Header()) || !reflect.DeepEqual(back.Rows(), table.Rows()) {
		t.Errorf("round trip = %q %q", back.Header(), back.Rows())
	}
}

func TestTableToASTWithoutHeader(t *testing.T) {
	opts := csv.DefaultOptions()
	opts.HasHeader = false
	table, err := csv.Parse("1,2\n3,4\n", opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	node, err := table.ToAST()
	if err != nil {
		t.Fatalf("ToAST() error = %v", err)
	}
	if len(node.Elements()) != 2 {
		t.Errorf("ToAST() has %d rows, want 2", len(node.Elements()))
	}
}

func TestTableFromASTLiterals(t *testing.T) {
	pos := ast.ZeroPosition()
	node := ast.NewArrayDataNode([]ast.SchemaNode{
		ast.NewArrayDataNode([]ast.SchemaNode{
			ast.NewLiteralNode("text", pos),
			ast.NewLiteralNode(int64(42), pos),
			ast.NewLiteralNode(true, pos),
			ast.NewLiteralNode(nil, pos),
		}, pos),
	}, pos)

	opts := csv.DefaultOptions()
	opts.HasHeader = false
	table, err := csv.TableFromAST(node, opts)
	if err != nil {
		t.Fatalf("TableFromAST() error = %v", err)
	}
	row, _ := table.Row(0)
	if !reflect.DeepEqual(row, []string{"text", "42", "true", ""}) {
		t.Errorf("Row(0) = %q", row)
	}
}

func TestTableFromASTRejectsShapes(t *testing.T) {
	pos := ast.ZeroPosition()
	tests := map[string]ast.SchemaNode{
		"literal root": ast.NewLiteralNode("x", pos),
		"literal row": ast.NewArrayDataNode([]ast.SchemaNode{
			ast.NewLiteralNode("x", pos),
		}, pos),
		"nested field": ast.NewArrayDataNode([]ast.SchemaNode{
			ast.NewArrayDataNode([]ast.SchemaNode{
				ast.NewArrayDataNode(nil, pos),
			}, pos),
		}, pos),
	}
	for name, node := range tests {
		if _, err := csv.TableFromAST(node, csv.DefaultOptions()); err == nil {
			t.Errorf("%s: TableFromAST() should fail", name)
		}
	}
}
