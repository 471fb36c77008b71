package resolver

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/catalog"
	"github.com/gofhir/searchtype/catalog/catalogtest"
	"github.com/gofhir/searchtype/expr"
)

const testDefinition = "http://example.org/SearchParameter/test"

// hit is the comparable part of a ResolvedMapping.
type hit struct {
	Type string
	Path string
}

func newTestResolver(t *testing.T, opts ...searchtype.Option) *Resolver {
	t.Helper()
	opts = append([]searchtype.Option{searchtype.WithLogSink(func(string) {})}, opts...)
	return New(catalog.NewStructureCatalog(catalogtest.Profiles()), opts...)
}

func param(kind searchtype.SearchParamType, text string) Param {
	return Param{Kind: kind, Expression: expr.MustParse(text), Definition: testDefinition}
}

func hits(ms []ResolvedMapping) []hit {
	out := make([]hit, len(ms))
	for i, m := range ms {
		out[i] = hit{Type: m.ElementType.Name, Path: m.Path}
	}
	return out
}

func TestResolve_Paths(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name         string
		resourceType string
		expression   string
		want         []hit
	}{
		{
			name:         "implicit root",
			resourceType: "Patient",
			expression:   "name.family",
			want:         []hit{{"string", "Patient.name.family"}},
		},
		{
			name:         "explicit root",
			resourceType: "Patient",
			expression:   "Patient.name",
			want:         []hit{{"HumanName", "Patient.name"}},
		},
		{
			name:         "polymorphic element",
			resourceType: "Observation",
			expression:   "value",
			want: []hit{
				{"Quantity", "Observation.value(Quantity,string,CodeableConcept)"},
				{"string", "Observation.value(Quantity,string,CodeableConcept)"},
				{"CodeableConcept", "Observation.value(Quantity,string,CodeableConcept)"},
			},
		},
		{
			name:         "polymorphic element ends the walk",
			resourceType: "Observation",
			expression:   "Observation.value.unit",
			want: []hit{
				{"Quantity", "Observation.value(Quantity,string,CodeableConcept)"},
				{"string", "Observation.value(Quantity,string,CodeableConcept)"},
				{"CodeableConcept", "Observation.value(Quantity,string,CodeableConcept)"},
			},
		},
		{
			name:         "union concatenates in order",
			resourceType: "Patient",
			expression:   "Patient.identifier | Patient.name",
			want:         []hit{{"Identifier", "Patient.identifier"}, {"HumanName", "Patient.name"}},
		},
		{
			name:         "union branches do not share segments",
			resourceType: "Patient",
			expression:   "Patient.name.family | Patient.active",
			want:         []hit{{"string", "Patient.name.family"}, {"boolean", "Patient.active"}},
		},
		{
			name:         "duplicates keep the first path",
			resourceType: "Patient",
			expression:   "Patient.contact.name | Patient.name",
			want:         []hit{{"HumanName", "Patient.contact.name"}},
		},
		{
			name:         "binary as walks the type operand",
			resourceType: "Observation",
			expression:   "Observation.value as Quantity",
			want:         []hit{},
		},
		{
			name:         "binary as in a union",
			resourceType: "Observation",
			expression:   "(Observation.value as Quantity) | Observation.status",
			want:         []hit{{"code", "Observation.status"}},
		},
		{
			name:         "as function",
			resourceType: "Condition",
			expression:   "Condition.abatement.as(Age)",
			want:         []hit{{"Age", "Condition.abatement(Age)"}},
		},
		{
			name:         "cast pins the following lookup",
			resourceType: "Condition",
			expression:   "Condition.abatement.as(Age).value",
			want:         []hit{{"decimal", "Condition.abatement(Age).value"}},
		},
		{
			name:         "well-known cast tokens",
			resourceType: "Condition",
			expression:   "Condition.onset.as(date) | Condition.onset.as(PERIOD) | Condition.onset.as(string)",
			want: []hit{
				{"dateTime", "Condition.onset(dateTime)"},
				{"Period", "Condition.onset(Period)"},
				{"string", "Condition.onset(string)"},
			},
		},
		{
			name:         "where and indexer pass through",
			resourceType: "Patient",
			expression:   "Patient.name.where(use = 'official')[0].family",
			want:         []hit{{"string", "Patient.name.family"}},
		},
		{
			name:         "backbone element",
			resourceType: "Patient",
			expression:   "Patient.contact.name.family",
			want:         []hit{{"string", "Patient.contact.name.family"}},
		},
		{
			name:         "content reference",
			resourceType: "Questionnaire",
			expression:   "Questionnaire.item.item.linkId",
			want:         []hit{{"string", "Questionnaire.item.item.linkId"}},
		},
		{
			name:         "resource variable",
			resourceType: "Observation",
			expression:   "%resource.subject",
			want:         []hit{{"Reference", "Resource.subject"}},
		},
		{
			name:         "missing property stops early",
			resourceType: "Patient",
			expression:   "Patient.nope.family",
			want:         []hit{{"Patient", "Patient.nope"}},
		},
		{
			name:         "primitive type names are roots",
			resourceType: "Observation",
			expression:   "code.coding.code",
			want:         []hit{{"code", "code.coding"}},
		},
		{
			name:         "data type as base",
			resourceType: "HumanName",
			expression:   "family",
			want:         []hit{{"string", "HumanName.family"}},
		},
		{
			name:         "equality resolves both sides",
			resourceType: "Patient",
			expression:   "Patient.active = true",
			want:         []hit{{"boolean", "Patient.active"}},
		},
		{
			name:         "exists",
			resourceType: "Patient",
			expression:   "Patient.deceased.exists() and Patient.deceased.is(boolean)",
			want:         []hit{{"boolean", ""}},
		},
		{
			name:         "type is ignored",
			resourceType: "Patient",
			expression:   "Patient.name.type()",
			want:         []hit{},
		},
		{
			name:         "constant",
			resourceType: "Patient",
			expression:   "'fixed'",
			want:         []hit{},
		},
		{
			name:         "this without path",
			resourceType: "Patient",
			expression:   "$this",
			want:         []hit{{"Patient", "Patient"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Collect(tt.resourceType, param(searchtype.SearchParamToken, tt.expression))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, hits(got)); diff != "" {
				t.Errorf("Resolve(%s, %q) mismatch (-want +got):\n%s", tt.resourceType, tt.expression, diff)
			}
		})
	}
}

func TestResolve_KindAndDefinition(t *testing.T) {
	r := newTestResolver(t)

	got, err := r.Collect("Patient", param(searchtype.SearchParamString, "Patient.name"))
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, searchtype.SearchParamString, got[0].Kind)
	assert.Equal(t, testDefinition, got[0].Definition)
	assert.Equal(t, catalog.KindComplexType, got[0].ElementType.Kind)
}

func TestResolve_Components(t *testing.T) {
	r := newTestResolver(t)

	t.Run("components anchor on the primary expression", func(t *testing.T) {
		primary := param(searchtype.SearchParamComposite, "Observation")
		code := Param{Kind: searchtype.SearchParamToken, Expression: expr.MustParse("code"), Definition: "urn:code"}
		value := Param{Kind: searchtype.SearchParamQuantity, Expression: expr.MustParse("value.as(Quantity)"), Definition: "urn:value"}

		got, err := r.Collect("Observation", primary, code, value)
		require.NoError(t, err)

		assert.Equal(t, []hit{
			{"CodeableConcept", "Observation.code"},
			{"Quantity", "Observation.value(Quantity)"},
		}, hits(got))
		assert.Equal(t, searchtype.SearchParamToken, got[0].Kind)
		assert.Equal(t, "urn:code", got[0].Definition)
		assert.Equal(t, searchtype.SearchParamQuantity, got[1].Kind)
		assert.Equal(t, "urn:value", got[1].Definition)
	})

	t.Run("backbone anchor", func(t *testing.T) {
		primary := param(searchtype.SearchParamComposite, "Observation.component")
		got, err := r.Collect("Observation", primary,
			param(searchtype.SearchParamToken, "code"),
			param(searchtype.SearchParamQuantity, "value.as(Quantity)"),
		)
		require.NoError(t, err)

		assert.Equal(t, []hit{
			{"CodeableConcept", "Observation.component.code"},
			{"Quantity", "Observation.component.value(Quantity)"},
		}, hits(got))
	})

	t.Run("deduplication is per component", func(t *testing.T) {
		primary := param(searchtype.SearchParamComposite, "Observation")
		got, err := r.Collect("Observation", primary,
			param(searchtype.SearchParamToken, "code"),
			param(searchtype.SearchParamToken, "code"),
		)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestResolve_Errors(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name         string
		resourceType string
		expression   string
		wantErr      error
		wantDetail   string
	}{
		{"unknown resource type", "Nope", "name", searchtype.ErrUnknownResourceType, ""},
		{"unknown cast target", "Observation", "Observation.value.as(Foo)", searchtype.ErrUnknownType, ""},
		{"unknown binary cast target", "Observation", "Observation.value as Foo", searchtype.ErrUnknownType, ""},
		{"unsupported function", "Patient", "Patient.name.first()", searchtype.ErrUnsupportedExpression, "first"},
		{"ofType is unsupported", "Observation", "Observation.value.ofType(Quantity)", searchtype.ErrUnsupportedExpression, "ofType"},
		{"unsupported operator", "Patient", "Patient.name + Patient.name", searchtype.ErrUnsupportedExpression, "+"},
		{"binary is", "Observation", "Observation.value is Quantity", searchtype.ErrUnsupportedExpression, "is"},
		{"unsupported variable", "Patient", "%context.name", searchtype.ErrUnsupportedExpression, "context"},
		{"unary", "Patient", "-Patient.name", searchtype.ErrUnsupportedExpression, "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Collect(tt.resourceType, param(searchtype.SearchParamToken, tt.expression))
			require.ErrorIs(t, err, tt.wantErr)

			if tt.wantDetail != "" {
				var exprErr *searchtype.ExpressionError
				require.True(t, errors.As(err, &exprErr))
				assert.Equal(t, tt.wantDetail, exprErr.Detail)
			}
		})
	}

	t.Run("missing expression", func(t *testing.T) {
		_, err := r.Collect("Patient", Param{Kind: searchtype.SearchParamToken})
		assert.ErrorIs(t, err, searchtype.ErrUnsupportedExpression)
	})

	t.Run("child with other function name", func(t *testing.T) {
		e := &expr.ChildExpression{Focus: expr.That, ChildName: "name", FunctionName: "builtin.descendants"}
		_, err := r.Collect("Patient", Param{Kind: searchtype.SearchParamToken, Expression: e})
		assert.ErrorIs(t, err, searchtype.ErrUnsupportedExpression)
	})

	t.Run("function without focus", func(t *testing.T) {
		e := &expr.FunctionCallExpression{FunctionName: "where"}
		_, err := r.Collect("Patient", Param{Kind: searchtype.SearchParamToken, Expression: e})
		assert.ErrorIs(t, err, searchtype.ErrUnsupportedExpression)
	})

	t.Run("results before the error are kept", func(t *testing.T) {
		got, err := r.Collect("Observation", param(searchtype.SearchParamQuantity,
			"Observation.value.as(Quantity) | Observation.value.as(SampledData)"))
		require.ErrorIs(t, err, searchtype.ErrUnknownType)
		assert.Equal(t, []hit{{"Quantity", "Observation.value(Quantity)"}}, hits(got))
	})

	t.Run("the sequence stops after an error", func(t *testing.T) {
		count := 0
		for _, err := range r.Resolve("Patient", param(searchtype.SearchParamToken, "Patient.name.first() | Patient.active")) {
			count++
			require.Error(t, err)
		}
		assert.Equal(t, 1, count)
	})
}

func TestResolve_EarlyBreak(t *testing.T) {
	r := newTestResolver(t)

	count := 0
	for m, err := range r.Resolve("Observation", param(searchtype.SearchParamToken, "value")) {
		require.NoError(t, err)
		assert.Equal(t, "Quantity", m.ElementType.Name)
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestResolve_LogSink(t *testing.T) {
	var logged []string
	r := New(catalog.NewStructureCatalog(catalogtest.Profiles()),
		searchtype.WithLogSink(func(msg string) { logged = append(logged, msg) }))

	_, err := r.Collect("Patient", param(searchtype.SearchParamString, "name.family | Patient.nope"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Resolved path 'Patient.name.family'",
		"Resolved path 'Patient.nope'",
	}, logged)
}

func TestResolve_Concurrent(t *testing.T) {
	r := newTestResolver(t)
	p := param(searchtype.SearchParamToken, "Observation.value | Observation.component.code")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Collect("Observation", p)
			if err == nil && len(got) != 3 {
				err = errors.New("unexpected result count")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
