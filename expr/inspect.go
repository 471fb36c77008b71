package expr

// UnionArms flattens top-level "|" operators into their operands, left to
// right. A non-union expression is its own single arm.
func UnionArms(e Expression) []Expression {
	b, ok := e.(*BinaryExpression)
	if !ok || b.Op != "|" {
		return []Expression{e}
	}
	var arms []Expression
	for _, a := range b.Arguments {
		arms = append(arms, UnionArms(a)...)
	}
	return arms
}

// Union joins arms back into a left-associated "|" expression.
// It returns nil for no arms.
func Union(arms ...Expression) Expression {
	if len(arms) == 0 {
		return nil
	}
	e := arms[0]
	for _, a := range arms[1:] {
		e = &BinaryExpression{Op: "|", Arguments: []Expression{e, a}}
	}
	return e
}

// RootName returns the first path segment of an expression: the child
// navigated to directly from the implicit input. For "Patient.name.given"
// and "(Observation.value as Quantity)" this is "Patient" and "Observation".
func RootName(e Expression) (string, bool) {
	for {
		switch n := e.(type) {
		case *ChildExpression:
			if a, ok := n.Focus.(*AxisExpression); ok && a.AxisName == AxisThat {
				return n.ChildName, true
			}
			e = n.Focus
		case *FunctionCallExpression:
			if n.Focus == nil {
				return "", false
			}
			e = n.Focus
		case *BinaryExpression:
			e = n.Arguments[0]
		case *UnaryExpression:
			e = n.Operand
		default:
			return "", false
		}
	}
}
