// Package action holds the registry of named, schema-validated operations
// the model and the admission gate can invoke, and the dispatcher that turns
// tool calls into uniform results.
package action

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/status"
)

// Scope controls who may invoke an action.
type Scope uint8

const (
	// ScopeModel exposes the action to the language model as a tool.
	ScopeModel Scope = 1 << iota
	// ScopeInternal allows the admission gate to dispatch the action.
	ScopeInternal
)

// Allows reports whether an action registered with s can be reached from
// a dispatcher running in scope.
func (s Scope) Allows(scope Scope) bool {
	return s&scope != 0
}

// Action is a named operation with an argument schema.
type Action interface {
	Name() string
	Description() string
	Scope() Scope
	Schema() *jsonschema.Schema
	// Validate decodes and checks raw JSON arguments.
	Validate(raw json.RawMessage) (any, error)
	// Execute runs the action with arguments returned by Validate.
	Execute(ctx context.Context, args any) (any, error)
}

// Func is the executor of a typed action.
type Func[T any] func(ctx context.Context, args T) (any, error)

// Option configures a typed action.
type Option func(*options)

type options struct {
	scope Scope
}

// WithScope sets who may call the action. Actions default to ScopeModel.
func WithScope(scope Scope) Option {
	return func(o *options) {
		o.scope = scope
	}
}

// Typed is an Action whose arguments decode into T. The JSON schema is
// reflected from T and `validate` struct tags are enforced on input.
type Typed[T any] struct {
	name        string
	description string
	scope       Scope
	schema      *jsonschema.Schema
	fn          Func[T]
}

// New builds a typed action.
func New[T any](name, description string, fn Func[T], opts ...Option) *Typed[T] {
	o := options{scope: ScopeModel}
	for _, opt := range opts {
		opt(&o)
	}
	return &Typed[T]{
		name:        name,
		description: strings.TrimSpace(description),
		scope:       o.scope,
		schema:      reflectSchema[T](),
		fn:          fn,
	}
}

// Name returns the tool name.
func (a *Typed[T]) Name() string { return a.name }

// Description returns the tool description shown to the model.
func (a *Typed[T]) Description() string { return a.description }

// Scope returns who may call the action.
func (a *Typed[T]) Scope() Scope { return a.scope }

// Schema returns the reflected argument schema.
func (a *Typed[T]) Schema() *jsonschema.Schema { return a.schema }

// Validate decodes raw into T, repairing malformed JSON once, and runs
// struct validation.
func (a *Typed[T]) Validate(raw json.RawMessage) (any, error) {
	var args T
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}

	if err := decodeStrict(raw, &args); err != nil {
		var syntaxErr *json.SyntaxError
		if !errors.As(err, &syntaxErr) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, invalidInput(err)
		}
		repaired, repairErr := jsonrepair.JSONRepair(string(raw))
		if repairErr != nil {
			return nil, invalidInput(err)
		}
		var fresh T
		args = fresh
		if err := decodeStrict([]byte(repaired), &args); err != nil {
			return nil, invalidInput(err)
		}
	}

	if isStruct(args) {
		if err := validate.Struct(args); err != nil {
			return nil, invalidInput(describeValidation(err))
		}
	}
	return args, nil
}

// Execute runs the executor with validated arguments.
func (a *Typed[T]) Execute(ctx context.Context, args any) (any, error) {
	typed, ok := args.(T)
	if !ok {
		return nil, fmt.Errorf("action %s: unexpected argument type %T", a.name, args)
	}
	return a.fn(ctx, typed)
}

var _ Action = (*Typed[struct{}])(nil)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func decodeStrict(raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func reflectSchema[T any]() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(new(T))
	schema.Version = ""
	schema.ID = ""
	return schema
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

func invalidInput(cause error) error {
	return agentErrors.Wrap(cause, agentErrors.KindValidation, agentErrors.ErrCodeInvalidInput,
		"invalid arguments", status.ErrorSeveritySkippable)
}
