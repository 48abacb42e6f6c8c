package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/batutahq/batuta/pkg/models"
	"github.com/batutahq/batuta/pkg/template"
	"github.com/xeipuuv/gojsonschema"
)

// RequiredKeysRule passes when every configured key is present in the context.
// On failure the confidence reflects how many keys were found.
type RequiredKeysRule struct {
	key  string
	keys []string
}

func NewRequiredKeysRule(key string, keys ...string) *RequiredKeysRule {
	return &RequiredKeysRule{key: key, keys: keys}
}

func (r *RequiredKeysRule) Key() string {
	return r.key
}

func (r *RequiredKeysRule) Evaluate(ctx *models.WorkflowContext) models.RuleReport {
	started := time.Now()

	present := 0
	reasons := make([]string, 0)

	for _, key := range r.keys {
		if ctx.Has(key) {
			present++
		} else {
			reasons = append(reasons, fmt.Sprintf("missing required key %q", key))
		}
	}

	if len(reasons) == 0 {
		return report(r.key, started, true, passedConfidence, nil)
	}

	confidence := 0
	if len(r.keys) > 0 {
		confidence = int(math.Round(float64(present) / float64(len(r.keys)) * passedConfidence))
	}

	return report(r.key, started, false, confidence, reasons)
}

// BoundsRule checks that a numeric context value lies within [min, max]. An
// out-of-range value earns partial confidence proportional to how far outside
// the range it landed, relative to the range width.
type BoundsRule struct {
	key   string
	field string
	min   float64
	max   float64
}

func NewBoundsRule(key, field string, minValue, maxValue float64) *BoundsRule {
	return &BoundsRule{key: key, field: field, min: minValue, max: maxValue}
}

func (r *BoundsRule) Key() string {
	return r.key
}

func (r *BoundsRule) Evaluate(ctx *models.WorkflowContext) models.RuleReport {
	started := time.Now()

	raw, ok := ctx.Get(r.field)
	if !ok {
		return report(r.key, started, false, 0,
			[]string{fmt.Sprintf("field %q not present in context", r.field)})
	}

	value, ok := asFloat(raw)
	if !ok {
		return report(r.key, started, false, 0,
			[]string{fmt.Sprintf("field %q is not numeric (got %T)", r.field, raw)})
	}

	if value >= r.min && value <= r.max {
		return report(r.key, started, true, passedConfidence, nil)
	}

	var distance float64
	if value < r.min {
		distance = r.min - value
	} else {
		distance = value - r.max
	}

	width := r.max - r.min
	if width <= 0 {
		width = 1
	}

	confidence := int(math.Round(math.Max(0, 1-distance/width) * passedConfidence))

	return report(r.key, started, false, confidence,
		[]string{fmt.Sprintf("field %q value %v outside bounds [%v, %v]", r.field, value, r.min, r.max)})
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// SchemaRule validates the whole context against a JSON schema compiled at
// construction.
type SchemaRule struct {
	key    string
	schema *gojsonschema.Schema
}

func NewSchemaRule(key string, schema map[string]any) (*SchemaRule, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for rule %q: %w", key, err)
	}

	return &SchemaRule{key: key, schema: compiled}, nil
}

func (r *SchemaRule) Key() string {
	return r.key
}

func (r *SchemaRule) Evaluate(ctx *models.WorkflowContext) models.RuleReport {
	started := time.Now()

	result, err := r.schema.Validate(gojsonschema.NewGoLoader(ctx.Map()))
	if err != nil {
		return report(r.key, started, false, 0,
			[]string{fmt.Sprintf("schema validation error: %v", err)})
	}

	if result.Valid() {
		return report(r.key, started, true, passedConfidence, nil)
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		reasons = append(reasons, resultErr.String())
	}

	return report(r.key, started, false, 0, reasons)
}

// ExpressionRule renders a template predicate against the context and passes
// when the result is truthy.
type ExpressionRule struct {
	key        string
	expression string
}

func NewExpressionRule(key, expression string) (*ExpressionRule, error) {
	_, err := template.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression for rule %q: %w", key, err)
	}

	return &ExpressionRule{key: key, expression: expression}, nil
}

func (r *ExpressionRule) Key() string {
	return r.key
}

func (r *ExpressionRule) Evaluate(ctx *models.WorkflowContext) models.RuleReport {
	started := time.Now()

	value, err := template.Render(r.expression, ctx.Map())
	if err != nil {
		return report(r.key, started, false, 0,
			[]string{fmt.Sprintf("failed to evaluate expression: %v", err)})
	}

	truthy, err := models.Truthy(value)
	if err != nil {
		return report(r.key, started, false, 0,
			[]string{fmt.Sprintf("expression result not boolean: %v", err)})
	}

	if truthy {
		return report(r.key, started, true, passedConfidence, nil)
	}

	return report(r.key, started, false, 0,
		[]string{fmt.Sprintf("expression %q evaluated to false", r.expression)})
}
