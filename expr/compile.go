package expr

import (
	"strings"

	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/cache"
)

// Compiler parses expressions and caches the trees. In strict mode function
// calls are checked against the fhirpath engine's function registry, so
// unknown functions and bad argument counts are syntax errors.
type Compiler struct {
	strict bool
	cache  *cache.Cache[string, Expression]
}

// NewCompiler creates a Compiler. StrictSyntax and ExpressionCacheSize apply.
func NewCompiler(opts ...searchtype.Option) *Compiler {
	o := searchtype.DefaultOptions().Apply(opts...)
	return &Compiler{
		strict: o.StrictSyntax,
		cache:  cache.New[string, Expression](o.ExpressionCacheSize),
	}
}

// Compile returns the expression tree for text. Trees are shared between
// callers and must not be modified.
func (c *Compiler) Compile(text string) (Expression, error) {
	text = strings.TrimSpace(text)
	return c.cache.GetOrLoad(text, func() (Expression, error) {
		return parse(text, c.strict)
	})
}

// Stats returns the expression cache statistics.
func (c *Compiler) Stats() cache.Stats {
	return c.cache.Stats()
}
