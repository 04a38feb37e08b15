package totality

import "github.com/rowlang/rowan/internal/ast"

// walk visits e and every expression beneath it, parents first.
func walk(e ast.Expr, visit func(ast.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *ast.ListLit:
		for _, el := range n.Elems {
			walk(el, visit)
		}
	case *ast.Lambda:
		for _, p := range n.Params {
			walk(p.Default, visit)
		}
		walk(n.Body, visit)
	case *ast.Call:
		walk(n.Fn, visit)
		for _, a := range n.Args {
			walk(a.Value, visit)
		}
	case *ast.Let:
		walk(n.Value, visit)
		walk(n.Body, visit)
	case *ast.If:
		walk(n.Cond, visit)
		walk(n.Then, visit)
		walk(n.Else, visit)
	case *ast.Annot:
		walk(n.Expr, visit)
	case *ast.Match:
		walk(n.Subject, visit)
		for _, c := range n.Cases {
			walk(c.Body, visit)
		}
	case *ast.HandlerLit:
		for _, op := range n.Ops {
			walk(op.Body, visit)
		}
		if n.Return != nil {
			walk(n.Return.Body, visit)
		}
		if n.Finally != nil {
			walk(n.Finally.Body, visit)
		}
	case *ast.Handle:
		walk(n.Handler, visit)
		walk(n.Body, visit)
	case *ast.OpCall:
		walk(n.Cap, visit)
		for _, a := range n.Args {
			walk(a, visit)
		}
	}
}
