// Package model provides the read-only program model consumed by the
// call-graph analyzer: modules, types, methods, and instruction sequences
// of a compiled object-oriented program, as exported by a front-end loader.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// ErrUnresolved signals a method or type reference that cannot be bound to a
// definition in the loaded program (e.g. a missing dependency module).
var ErrUnresolved = errors.New("unresolved reference")

// Visibility is a method's declared accessibility.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityInternal  Visibility = "internal"
	VisibilityPrivate   Visibility = "private"
)

// Opcode classifies the instructions the scanner cares about. Front-ends are
// free to omit instructions with no call-graph relevance.
type Opcode string

const (
	// OpCall is a statically-bound call; its method operand resolves to
	// exactly one concrete method.
	OpCall Opcode = "call"

	// OpCallVirt is a virtual call dispatched on the receiver's runtime type.
	OpCallVirt Opcode = "callvirt"

	// OpLoadFunction loads a static function pointer.
	OpLoadFunction Opcode = "ldftn"

	// OpLoadVirtualFunction loads a function pointer through the virtual
	// dispatch slot of the operand method.
	OpLoadVirtualFunction Opcode = "ldvirtftn"

	// OpNewObject constructs an object; the operand is a constructor.
	OpNewObject Opcode = "newobj"

	// OpInitValue default-initializes a value of the operand type.
	OpInitValue Opcode = "initval"

	// OpNewArray creates an array of the operand element type.
	OpNewArray Opcode = "newarr"
)

// defaultAnnotationBase is the marker base type used to prune
// annotation/attribute types from entry-point seeding when the snapshot
// does not name one.
const defaultAnnotationBase = "System.Attribute"

// driverMethodName is the conventional name of a continuation state
// machine's driving method, used when the snapshot does not flag one.
const driverMethodName = "MoveNext"

// MethodRef is a symbolic reference to a method as expressed by an
// instruction operand or an explicit override binding. References from
// different modules to the same definition resolve to the same Method.
type MethodRef struct {
	DeclaringType string   `json:"declaring_type"`
	Name          string   `json:"name"`
	Params        []string `json:"params,omitempty"`
	ReturnType    string   `json:"returns,omitempty"`
}

func (r *MethodRef) String() string {
	return fmt.Sprintf("%s %s.%s(%s)", orVoid(r.ReturnType), r.DeclaringType, r.Name, strings.Join(r.Params, ", "))
}

// Instruction is one entry of a method body, in source order.
type Instruction struct {
	Op     Opcode     `json:"op"`
	Method *MethodRef `json:"method,omitempty"`
	Type   string     `json:"type,omitempty"`
}

// Body holds a method's ordered instruction sequence. A nil Body means the
// method has no body (abstract, external, or stripped).
type Body struct {
	Instructions []Instruction `json:"instructions"`
}

// Method describes one method of a type. Immutable after loading.
type Method struct {
	Name       string     `json:"name"`
	Params     []string   `json:"params,omitempty"`
	ReturnType string     `json:"returns,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`

	IsAbstract    bool `json:"abstract,omitempty"`
	IsVirtual     bool `json:"virtual,omitempty"`
	IsNewSlot     bool `json:"newslot,omitempty"`
	IsConstructor bool `json:"constructor,omitempty"`
	IsAccessor    bool `json:"accessor,omitempty"`
	IsDriver      bool `json:"driver,omitempty"`

	// StateMachine names the compiler-synthesized continuation type this
	// method expands into, when the method is async/iterator-style.
	StateMachine string `json:"state_machine,omitempty"`

	// Overrides lists explicit interface/override bindings declared on this
	// method (as opposed to implicit structural overriding).
	Overrides []MethodRef `json:"overrides,omitempty"`

	Body *Body `json:"body,omitempty"`

	declaring *Type
}

// Declaring returns the type this method is declared on.
func (m *Method) Declaring() *Type { return m.declaring }

// HasBody reports whether the method carries an instruction sequence.
func (m *Method) HasBody() bool { return m.Body != nil }

// Type describes one type of a module, nested types included (flattened by
// the loader, with "+"-joined qualified names). Immutable after loading.
type Type struct {
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace,omitempty"`
	IsInterface bool      `json:"interface,omitempty"`
	IsAbstract  bool      `json:"abstract,omitempty"`
	IsValueType bool      `json:"valuetype,omitempty"`
	Base        string    `json:"base,omitempty"`
	Interfaces  []string  `json:"interfaces,omitempty"`
	Methods     []*Method `json:"methods,omitempty"`

	module *Module
}

// Module returns the module that owns this type.
func (t *Type) Module() *Module { return t.module }

// Module is one unit of the compiled program.
type Module struct {
	Name string `json:"name"`

	// EntryPoint references the module's designated program entry method,
	// if the module is executable.
	EntryPoint *MethodRef `json:"entry_point,omitempty"`

	// AnnotationBase names the language's annotation/attribute marker base
	// type; types deriving from it are never entry-point seeds.
	AnnotationBase string `json:"annotation_base,omitempty"`

	Types []*Type `json:"types,omitempty"`
}

// Continuation is the compiler-synthesized state machine behind an
// async/iterator-style method: the generated type and its driving method.
type Continuation struct {
	Type   *Type
	Driver *Method
}

// Program is the immutable whole-program view the analysis runs over.
type Program struct {
	Modules []*Module

	typesByName map[string]*Type
	keyCache    *xsync.Map[*Method, string]
	sigCache    *xsync.Map[*Method, string]
}

// NewProgram indexes the given modules into a Program and wires the
// back-references from methods to types and types to modules.
func NewProgram(modules []*Module) *Program {
	p := &Program{
		Modules:     modules,
		typesByName: make(map[string]*Type),
		keyCache:    xsync.NewMap[*Method, string](),
		sigCache:    xsync.NewMap[*Method, string](),
	}
	for _, mod := range modules {
		for _, t := range mod.Types {
			t.module = mod
			if t.Namespace == "" {
				t.Namespace = deriveNamespace(t.Name)
			}
			for _, m := range t.Methods {
				m.declaring = t
			}
			// First definition wins on qualified-name collisions across
			// modules; references bind by qualified name.
			if _, ok := p.typesByName[t.Name]; !ok {
				p.typesByName[t.Name] = t
			}
		}
	}
	return p
}

// Type looks up a type definition by qualified name.
func (p *Program) Type(name string) (*Type, bool) {
	t, ok := p.typesByName[name]
	return t, ok
}

// Resolve binds a method reference to its definition. The declared type's
// base chain is walked so references expressed against a derived type still
// bind to the inherited definition. Returns ErrUnresolved when no definition
// exists in the loaded program.
func (p *Program) Resolve(ref *MethodRef) (*Method, error) {
	if ref == nil {
		return nil, fmt.Errorf("nil method reference: %w", ErrUnresolved)
	}
	for t, ok := p.typesByName[ref.DeclaringType]; ok; t, ok = p.typesByName[t.Base] {
		for _, m := range t.Methods {
			if m.Name == ref.Name && slices.Equal(m.Params, ref.Params) && m.ReturnType == ref.ReturnType {
				return m, nil
			}
		}
		if t.Base == "" {
			break
		}
	}
	return nil, fmt.Errorf("%s: %w", ref, ErrUnresolved)
}

// Continuation returns the state machine metadata for m. The boolean is
// false when m is not a continuation-generating method; the error reports a
// state machine type that is missing or lacks a driving method.
func (p *Program) Continuation(m *Method) (*Continuation, bool, error) {
	if m.StateMachine == "" {
		return nil, false, nil
	}
	t, ok := p.typesByName[m.StateMachine]
	if !ok {
		return nil, true, fmt.Errorf("state machine type %s: %w", m.StateMachine, ErrUnresolved)
	}
	for _, dm := range t.Methods {
		if dm.IsDriver {
			return &Continuation{Type: t, Driver: dm}, true, nil
		}
	}
	for _, dm := range t.Methods {
		if dm.Name == driverMethodName && dm.HasBody() {
			return &Continuation{Type: t, Driver: dm}, true, nil
		}
	}
	return nil, true, fmt.Errorf("state machine type %s has no driving method", m.StateMachine)
}

// DerivesFrom reports whether t's base-type chain (exclusive of t itself)
// includes a type with the given qualified name. The walk tolerates bases
// that are not loaded by comparing names before resolving.
func (p *Program) DerivesFrom(t *Type, baseName string) bool {
	if baseName == "" {
		return false
	}
	for cur := t; cur != nil && cur.Base != ""; {
		if cur.Base == baseName {
			return true
		}
		next, ok := p.typesByName[cur.Base]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

// AnnotationBase returns the annotation marker base type for a module,
// falling back to the conventional default.
func (p *Program) AnnotationBase(mod *Module) string {
	if mod != nil && mod.AnnotationBase != "" {
		return mod.AnnotationBase
	}
	return defaultAnnotationBase
}

// Key returns the canonical identity of a method: declaring type qualified
// name, method name, ordered parameter types, return type, and owning
// module. Identical for every reference that resolves to this definition.
func (p *Program) Key(m *Method) string {
	if k, ok := p.keyCache.Load(m); ok {
		return k
	}
	var b strings.Builder
	b.Grow(128)
	if m.declaring != nil && m.declaring.module != nil {
		b.WriteString(m.declaring.module.Name)
		b.WriteByte('!')
	}
	if m.declaring != nil {
		b.WriteString(m.declaring.Name)
		b.WriteString("::")
	}
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, prm := range m.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(prm)
	}
	b.WriteByte(')')
	b.WriteString(orVoid(m.ReturnType))
	k := b.String()
	p.keyCache.Store(m, k)
	return k
}

// Signature returns the human-readable signature string carried on call
// graph nodes.
func (p *Program) Signature(m *Method) string {
	if s, ok := p.sigCache.Load(m); ok {
		return s
	}
	var b strings.Builder
	b.Grow(128)
	b.WriteString(orVoid(m.ReturnType))
	b.WriteByte(' ')
	if m.declaring != nil {
		b.WriteString(m.declaring.Name)
		b.WriteByte('.')
	}
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, prm := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prm)
	}
	b.WriteByte(')')
	s := b.String()
	p.sigCache.Store(m, s)
	return s
}

// deriveNamespace strips the simple name (and any nesting suffix) from a
// qualified type name: "Zoo.Animals.Dog+Puppy" -> "Zoo.Animals".
func deriveNamespace(qualified string) string {
	if plus := strings.IndexByte(qualified, '+'); plus >= 0 {
		qualified = qualified[:plus]
	}
	dot := strings.LastIndexByte(qualified, '.')
	if dot < 0 {
		return ""
	}
	return qualified[:dot]
}

func orVoid(ret string) string {
	if ret == "" {
		return "void"
	}
	return ret
}
