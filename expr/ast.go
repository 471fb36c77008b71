package expr

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Function names used for navigation nodes.
const (
	FuncChildren = "builtin.children"
	FuncItem     = "builtin.item"
)

// Axis names.
const (
	AxisThis  = "this"
	AxisThat  = "that"
	AxisIndex = "index"
	AxisTotal = "total"
)

// Expression is a node of a compiled FHIRPath expression. The node set is
// closed: the parser only produces the types declared in this file.
type Expression interface {
	String() string
	exprNode()
}

// ChildExpression navigates to the child ChildName of Focus.
type ChildExpression struct {
	Focus        Expression
	ChildName    string
	FunctionName string // always FuncChildren when produced by the parser
}

// FunctionCallExpression invokes FunctionName on Focus. Indexers are
// represented as calls to FuncItem with the index as sole argument.
type FunctionCallExpression struct {
	Focus        Expression
	FunctionName string
	Arguments    []Expression
}

// BinaryExpression applies an infix operator to exactly two arguments.
// Equality is normalised to "==".
type BinaryExpression struct {
	Op        string
	Arguments []Expression
}

// Left returns the left operand.
func (b *BinaryExpression) Left() Expression { return b.Arguments[0] }

// Right returns the right operand.
func (b *BinaryExpression) Right() Expression { return b.Arguments[1] }

// UnaryExpression applies a prefix "+" or "-".
type UnaryExpression struct {
	Op      string
	Operand Expression
}

// AxisExpression is the implicit input ("that") or a special variable
// such as $this.
type AxisExpression struct {
	AxisName string
}

// ConstantExpression is a literal. Value is a string, bool, int64,
// decimal.Decimal, DateTime, Quantity or nil for the empty collection.
type ConstantExpression struct {
	Value any
}

// VariableRefExpression is an environment variable reference such as %resource.
type VariableRefExpression struct {
	Name string
}

// DateTime is a date, time or dateTime literal without its '@' prefix.
type DateTime string

// Quantity is a quantity literal such as 4 days or 5.5 'mg'.
type Quantity struct {
	Value decimal.Decimal
	Unit  string
}

func (q Quantity) String() string {
	if calendarUnits[q.Unit] {
		return q.Value.String() + " " + q.Unit
	}
	return q.Value.String() + " " + quote(q.Unit)
}

// That is the implicit input every path starts from.
var That = &AxisExpression{AxisName: AxisThat}

func (*ChildExpression) exprNode()        {}
func (*FunctionCallExpression) exprNode() {}
func (*BinaryExpression) exprNode()       {}
func (*UnaryExpression) exprNode()        {}
func (*AxisExpression) exprNode()         {}
func (*ConstantExpression) exprNode()     {}
func (*VariableRefExpression) exprNode()  {}

func (c *ChildExpression) String() string {
	if isThat(c.Focus) {
		return identifier(c.ChildName)
	}
	return operand(c.Focus) + "." + identifier(c.ChildName)
}

func (f *FunctionCallExpression) String() string {
	if f.FunctionName == FuncItem && len(f.Arguments) == 1 {
		return operand(f.Focus) + "[" + f.Arguments[0].String() + "]"
	}

	args := make([]string, len(f.Arguments))
	for i, a := range f.Arguments {
		args[i] = a.String()
	}
	if typeFunctions[f.FunctionName] && len(args) == 1 {
		if c, ok := f.Arguments[0].(*ConstantExpression); ok {
			if name, ok := c.Value.(string); ok {
				args[0] = name
			}
		}
	}
	call := f.FunctionName + "(" + strings.Join(args, ", ") + ")"
	if f.Focus == nil || isThat(f.Focus) {
		return call
	}
	return operand(f.Focus) + "." + call
}

func (b *BinaryExpression) String() string {
	op := b.Op
	if op == "==" {
		op = "="
	}
	parts := make([]string, len(b.Arguments))
	for i, a := range b.Arguments {
		parts[i] = operand(a)
		if l, ok := a.(*BinaryExpression); ok && i == 0 && l.Op == b.Op {
			parts[i] = l.String()
		}
	}
	if op == "is" || op == "as" {
		if c, ok := b.Arguments[1].(*ConstantExpression); ok {
			if name, ok := c.Value.(string); ok {
				parts[1] = name
			}
		}
	}
	return strings.Join(parts, " "+op+" ")
}

func (u *UnaryExpression) String() string {
	return u.Op + operand(u.Operand)
}

func (a *AxisExpression) String() string {
	if a.AxisName == AxisThat {
		return "$this"
	}
	return "$" + a.AxisName
}

func (c *ConstantExpression) String() string {
	switch v := c.Value.(type) {
	case string:
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case decimal.Decimal:
		return v.String()
	case DateTime:
		return "@" + string(v)
	case Quantity:
		return v.String()
	default:
		return "{}"
	}
}

func (v *VariableRefExpression) String() string {
	return "%" + identifier(v.Name)
}

func isThat(e Expression) bool {
	a, ok := e.(*AxisExpression)
	return ok && a.AxisName == AxisThat
}

// operand wraps binary and unary expressions in parentheses.
func operand(e Expression) string {
	switch e.(type) {
	case *BinaryExpression, *UnaryExpression:
		return "(" + e.String() + ")"
	}
	return e.String()
}

func identifier(name string) string {
	plain := name != "" && !keywordOperators[name] && isIdentStart(name[0])
	for i := 1; plain && i < len(name); i++ {
		plain = isIdentPart(name[i])
	}
	if plain {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return "'" + r.Replace(s) + "'"
}
