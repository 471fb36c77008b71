package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/antlr4-go/antlr/v4"
	"github.com/gofhir/fhirpath/funcs"
	"github.com/gofhir/fhirpath/parser/grammar"
	"github.com/shopspring/decimal"
)

// MaxRecursionDepth bounds expression nesting.
const MaxRecursionDepth = 200

// ErrSyntax is returned for expressions that cannot be parsed.
var ErrSyntax = errors.New("fhirpath syntax error")

// SyntaxError reports the position of a parse failure. It unwraps to ErrSyntax.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", ErrSyntax, e.Line, e.Column, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// typeFunctions take a type specifier as their only argument.
var typeFunctions = map[string]bool{
	"as":     true,
	"is":     true,
	"ofType": true,
}

// keywordOperators cannot be written as plain identifiers.
var keywordOperators = map[string]bool{
	"and":      true,
	"or":       true,
	"xor":      true,
	"implies":  true,
	"is":       true,
	"as":       true,
	"in":       true,
	"contains": true,
	"div":      true,
	"mod":      true,
	"true":     true,
	"false":    true,
}

// calendarUnits are the quantity units written without quotes.
var calendarUnits = map[string]bool{
	"year": true, "years": true, "month": true, "months": true,
	"week": true, "weeks": true, "day": true, "days": true,
	"hour": true, "hours": true, "minute": true, "minutes": true,
	"second": true, "seconds": true, "millisecond": true, "milliseconds": true,
}

// errorListener captures lexer and parser errors.
type errorListener struct {
	*antlr.DefaultErrorListener
	errs []*SyntaxError
}

func (l *errorListener) SyntaxError(_ antlr.Recognizer, _ interface{}, line, column int, msg string, _ antlr.RecognitionException) {
	l.errs = append(l.errs, &SyntaxError{Line: line, Column: column, Msg: msg})
}

// Parse parses FHIRPath text into an expression tree.
func Parse(text string) (Expression, error) {
	return parse(text, false)
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level expressions.
func MustParse(text string) Expression {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

// parse runs the fhirpath grammar over text and converts the parse tree.
// In strict mode every function must be known to the fhirpath engine and
// be called with an argument count it accepts.
func parse(text string, strict bool) (Expression, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SyntaxError{Line: 1, Msg: "empty expression"}
	}

	listener := &errorListener{DefaultErrorListener: antlr.NewDefaultErrorListener()}

	lexer := grammar.NewfhirpathLexer(antlr.NewInputStream(text))
	lexer.RemoveErrorListeners()
	lexer.AddErrorListener(listener)

	p := grammar.NewfhirpathParser(antlr.NewCommonTokenStream(lexer, antlr.TokenDefaultChannel))
	p.RemoveErrorListeners()
	p.AddErrorListener(listener)

	tree := p.EntireExpression()
	if len(listener.errs) > 0 {
		return nil, listener.errs[0]
	}

	b := &builder{strict: strict}
	return b.build(tree.Expression())
}

// builder converts a fhirpath parse tree into an expression tree. Visit
// methods return either an Expression or an error.
type builder struct {
	grammar.BasefhirpathVisitor

	strict bool
	depth  int
}

func (b *builder) build(tree antlr.ParseTree) (Expression, error) {
	b.depth++
	defer func() { b.depth-- }()

	if b.depth > MaxRecursionDepth {
		return nil, b.errorf(tree, "expression too complex: recursion depth limit exceeded")
	}

	switch r := tree.Accept(b).(type) {
	case Expression:
		return r, nil
	case error:
		return nil, r
	default:
		return nil, b.errorf(tree, "unsupported syntax %q", tree.GetText())
	}
}

func (b *builder) errorf(tree antlr.Tree, format string, args ...any) error {
	e := &SyntaxError{Line: 1, Msg: fmt.Sprintf(format, args...)}
	if ctx, ok := tree.(antlr.ParserRuleContext); ok && ctx.GetStart() != nil {
		e.Line = ctx.GetStart().GetLine()
		e.Column = ctx.GetStart().GetColumn()
	}
	return e
}

func result(e Expression, err error) any {
	if err != nil {
		return err
	}
	return e
}

// binaryContext is implemented by every two-operand expression rule.
type binaryContext interface {
	antlr.ParserRuleContext
	Expression(i int) grammar.IExpressionContext
}

func (b *builder) binary(ctx binaryContext) any {
	op := ctx.GetChild(1).(antlr.TerminalNode).GetText()
	if op == "=" {
		op = "=="
	}
	left, err := b.build(ctx.Expression(0))
	if err != nil {
		return err
	}
	right, err := b.build(ctx.Expression(1))
	if err != nil {
		return err
	}
	return &BinaryExpression{Op: op, Arguments: []Expression{left, right}}
}

func (b *builder) VisitTermExpression(ctx *grammar.TermExpressionContext) interface{} {
	return result(b.build(ctx.Term()))
}

func (b *builder) VisitInvocationTerm(ctx *grammar.InvocationTermContext) interface{} {
	return result(b.invocation(That, ctx.Invocation()))
}

func (b *builder) VisitLiteralTerm(ctx *grammar.LiteralTermContext) interface{} {
	return result(b.build(ctx.Literal()))
}

func (b *builder) VisitParenthesizedTerm(ctx *grammar.ParenthesizedTermContext) interface{} {
	return result(b.build(ctx.Expression()))
}

func (b *builder) VisitExternalConstantTerm(ctx *grammar.ExternalConstantTermContext) interface{} {
	c := ctx.ExternalConstant()
	if id := c.Identifier(); id != nil {
		return &VariableRefExpression{Name: identifierText(id)}
	}
	return &VariableRefExpression{Name: unquote(c.STRING().GetText())}
}

func (b *builder) VisitInvocationExpression(ctx *grammar.InvocationExpressionContext) interface{} {
	focus, err := b.build(ctx.Expression())
	if err != nil {
		return err
	}
	return result(b.invocation(focus, ctx.Invocation()))
}

func (b *builder) VisitIndexerExpression(ctx *grammar.IndexerExpressionContext) interface{} {
	focus, err := b.build(ctx.Expression(0))
	if err != nil {
		return err
	}
	index, err := b.build(ctx.Expression(1))
	if err != nil {
		return err
	}
	return &FunctionCallExpression{Focus: focus, FunctionName: FuncItem, Arguments: []Expression{index}}
}

// VisitPolarityExpression folds signs on numeric literals.
func (b *builder) VisitPolarityExpression(ctx *grammar.PolarityExpressionContext) interface{} {
	op := ctx.GetChild(0).(antlr.TerminalNode).GetText()
	operand, err := b.build(ctx.Expression())
	if err != nil {
		return err
	}

	if c, ok := operand.(*ConstantExpression); ok {
		switch v := c.Value.(type) {
		case int64:
			if op == "-" {
				v = -v
			}
			return &ConstantExpression{Value: v}
		case decimal.Decimal:
			if op == "-" {
				v = v.Neg()
			}
			return &ConstantExpression{Value: v}
		}
	}
	return &UnaryExpression{Op: op, Operand: operand}
}

func (b *builder) VisitMultiplicativeExpression(ctx *grammar.MultiplicativeExpressionContext) interface{} {
	return b.binary(ctx)
}

func (b *builder) VisitAdditiveExpression(ctx *grammar.AdditiveExpressionContext) interface{} {
	return b.binary(ctx)
}

func (b *builder) VisitUnionExpression(ctx *grammar.UnionExpressionContext) interface{} {
	return b.binary(ctx)
}

func (b *builder) VisitInequalityExpression(ctx *grammar.InequalityExpressionContext) interface{} {
	return b.binary(ctx)
}

func (b *builder) VisitEqualityExpression(ctx *grammar.EqualityExpressionContext) interface{} {
	return b.binary(ctx)
}

func (b *builder) VisitMembershipExpression(ctx *grammar.MembershipExpressionContext) interface{} {
	return b.binary(ctx)
}

func (b *builder) VisitAndExpression(ctx *grammar.AndExpressionContext) interface{} {
	return b.binary(ctx)
}

func (b *builder) VisitOrExpression(ctx *grammar.OrExpressionContext) interface{} {
	return b.binary(ctx)
}

func (b *builder) VisitImpliesExpression(ctx *grammar.ImpliesExpressionContext) interface{} {
	return b.binary(ctx)
}

// VisitTypeExpression turns the type specifier of is/as into a string constant.
func (b *builder) VisitTypeExpression(ctx *grammar.TypeExpressionContext) interface{} {
	op := ctx.GetChild(1).(antlr.TerminalNode).GetText()
	left, err := b.build(ctx.Expression())
	if err != nil {
		return err
	}

	var parts []string
	for _, id := range ctx.TypeSpecifier().QualifiedIdentifier().AllIdentifier() {
		parts = append(parts, identifierText(id))
	}
	spec := normalizeTypeSpecifier(strings.Join(parts, "."))
	return &BinaryExpression{Op: op, Arguments: []Expression{left, &ConstantExpression{Value: spec}}}
}

func (b *builder) VisitNullLiteral(*grammar.NullLiteralContext) interface{} {
	return &ConstantExpression{}
}

func (b *builder) VisitBooleanLiteral(ctx *grammar.BooleanLiteralContext) interface{} {
	return &ConstantExpression{Value: ctx.GetText() == "true"}
}

func (b *builder) VisitStringLiteral(ctx *grammar.StringLiteralContext) interface{} {
	return &ConstantExpression{Value: unquote(ctx.STRING().GetText())}
}

func (b *builder) VisitNumberLiteral(ctx *grammar.NumberLiteralContext) interface{} {
	v, err := number(ctx.NUMBER().GetText())
	if err != nil {
		return b.errorf(ctx, "%v", err)
	}
	return &ConstantExpression{Value: v}
}

func (b *builder) VisitDateLiteral(ctx *grammar.DateLiteralContext) interface{} {
	return &ConstantExpression{Value: DateTime(strings.TrimPrefix(ctx.DATE().GetText(), "@"))}
}

func (b *builder) VisitDateTimeLiteral(ctx *grammar.DateTimeLiteralContext) interface{} {
	return &ConstantExpression{Value: DateTime(strings.TrimPrefix(ctx.DATETIME().GetText(), "@"))}
}

func (b *builder) VisitTimeLiteral(ctx *grammar.TimeLiteralContext) interface{} {
	return &ConstantExpression{Value: DateTime(strings.TrimPrefix(ctx.TIME().GetText(), "@"))}
}

func (b *builder) VisitQuantityLiteral(ctx *grammar.QuantityLiteralContext) interface{} {
	q := ctx.Quantity()
	value, err := decimal.NewFromString(q.NUMBER().GetText())
	if err != nil {
		return b.errorf(ctx, "invalid quantity %q", ctx.GetText())
	}
	unit := q.Unit().GetText()
	if s := q.Unit().STRING(); s != nil {
		unit = unquote(s.GetText())
	}
	return &ConstantExpression{Value: Quantity{Value: value, Unit: unit}}
}

// invocation applies a member access, function call or special variable
// to focus.
func (b *builder) invocation(focus Expression, inv grammar.IInvocationContext) (Expression, error) {
	switch n := inv.(type) {
	case *grammar.MemberInvocationContext:
		return &ChildExpression{Focus: focus, ChildName: identifierText(n.Identifier()), FunctionName: FuncChildren}, nil
	case *grammar.FunctionInvocationContext:
		return b.call(focus, n.Function())
	case *grammar.ThisInvocationContext:
		return b.special(focus, n, AxisThis)
	case *grammar.IndexInvocationContext:
		return b.special(focus, n, AxisIndex)
	case *grammar.TotalInvocationContext:
		return b.special(focus, n, AxisTotal)
	default:
		return nil, b.errorf(inv, "unsupported invocation %q", inv.GetText())
	}
}

func (b *builder) special(focus Expression, ctx antlr.ParserRuleContext, axis string) (Expression, error) {
	if !isThat(focus) {
		return nil, b.errorf(ctx, "$%s cannot follow '.'", axis)
	}
	return &AxisExpression{AxisName: axis}, nil
}

func (b *builder) call(focus Expression, fn grammar.IFunctionContext) (Expression, error) {
	name := identifierText(fn.Identifier())
	call := &FunctionCallExpression{Focus: focus, FunctionName: name}

	if params := fn.ParamList(); params != nil {
		for _, p := range params.AllExpression() {
			arg, err := b.build(p)
			if err != nil {
				return nil, err
			}
			call.Arguments = append(call.Arguments, arg)
		}
	}

	if b.strict {
		def, ok := funcs.Get(name)
		if !ok {
			return nil, b.errorf(fn, "unknown function %q", name)
		}
		n := len(call.Arguments)
		if n < def.MinArgs || (def.MaxArgs >= 0 && n > def.MaxArgs) {
			return nil, b.errorf(fn, "function %q does not take %d arguments", name, n)
		}
	}

	if typeFunctions[name] && len(call.Arguments) == 1 {
		if spec, ok := typeSpecifier(call.Arguments[0]); ok {
			call.Arguments[0] = &ConstantExpression{Value: spec}
		}
	}
	return call, nil
}

func number(text string) (any, error) {
	if !strings.Contains(text, ".") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, nil
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return d, nil
}

// identifierText returns the name of a plain or backtick-delimited identifier.
func identifierText(id grammar.IIdentifierContext) string {
	text := id.GetText()
	if len(text) >= 2 && text[0] == '`' && text[len(text)-1] == '`' {
		return unescape(text[1 : len(text)-1])
	}
	return text
}

// unquote strips the quotes of a string literal and decodes its escapes.
func unquote(text string) string {
	if len(text) < 2 {
		return text
	}
	return unescape(text[1 : len(text)-1])
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' || i+1 == len(s) {
			sb.WriteByte(ch)
			continue
		}
		i++
		switch s[i] {
		case 't':
			sb.WriteByte('\t')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 'f':
			sb.WriteByte('\f')
		case 'u':
			if i+5 <= len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					sb.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			sb.WriteByte('u')
		default:
			// \' \` \" \\ \/ keep the character.
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// typeSpecifier turns a parsed (possibly qualified) name back into a type name.
func typeSpecifier(e Expression) (string, bool) {
	var parts []string
	for {
		switch n := e.(type) {
		case *ChildExpression:
			parts = append([]string{n.ChildName}, parts...)
			e = n.Focus
			continue
		case *AxisExpression:
			if n.AxisName == AxisThat && len(parts) > 0 {
				return normalizeTypeSpecifier(strings.Join(parts, ".")), true
			}
		}
		return "", false
	}
}

// normalizeTypeSpecifier drops the FHIR model namespace.
func normalizeTypeSpecifier(name string) string {
	return strings.TrimPrefix(name, "FHIR.")
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool { return isIdentStart(ch) || (ch >= '0' && ch <= '9') }
