package csv

import (
	"fmt"

	"github.com/shapestone/shape-core/pkg/ast"
)

// ToAST converts the table to an AST node for use with other Shape parsers.
// The result is an *ast.ArrayDataNode of row nodes, each an
// *ast.ArrayDataNode of string literals. The header comes first when the
// table renders it.
func (t *Table) ToAST() (*ast.ArrayDataNode, error) {
	rows := make([]ast.SchemaNode, 0, len(t.rows)+1)
	if t.hasHeader && len(t.header) > 0 {
		rows = append(rows, rowNode(t.header))
	}
	for _, row := range t.rows {
		rows = append(rows, rowNode(row))
	}
	return ast.NewArrayDataNode(rows, ast.ZeroPosition()), nil
}

func rowNode(fields []string) *ast.ArrayDataNode {
	nodes := make([]ast.SchemaNode, len(fields))
	for i, f := range fields {
		nodes[i] = ast.NewLiteralNode(f, ast.ZeroPosition())
	}
	return ast.NewArrayDataNode(nodes, ast.ZeroPosition())
}

// TableFromAST builds a table from a node shaped like the output of ToAST.
// With opts.HasHeader set the first row node is the header. Literal values
// that are not strings are formatted with %v; a nil literal is an empty
// field.
func TableFromAST(node ast.SchemaNode, opts Options) (*Table, error) {
	array, ok := node.(*ast.ArrayDataNode)
	if !ok {
		return nil, fmt.Errorf("csv: expected *ast.ArrayDataNode, got %T", node)
	}

	rows := make([][]string, 0, array.Len())
	for i, elem := range array.Elements() {
		rowArray, ok := elem.(*ast.ArrayDataNode)
		if !ok {
			return nil, fmt.Errorf("csv: row %d: expected *ast.ArrayDataNode, got %T", i, elem)
		}
		row := make([]string, 0, rowArray.Len())
		for j, f := range rowArray.Elements() {
			lit, ok := f.(*ast.LiteralNode)
			if !ok {
				return nil, fmt.Errorf("csv: row %d, field %d: expected *ast.LiteralNode, got %T", i, j, f)
			}
			row = append(row, literalString(lit))
		}
		rows = append(rows, row)
	}

	var header []string
	if opts.HasHeader && len(rows) > 0 {
		header, rows = rows[0], rows[1:]
	}
	return NewTableFrom(header, rows, opts)
}

func literalString(n *ast.LiteralNode) string {
	switch v := n.Value().(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
