package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/callgraph/internal/hierarchy"
	"github.com/715d/callgraph/internal/liveness"
	"github.com/715d/callgraph/pkg/model"
)

// animalsProgram is the shared dispatch fixture: an abstract base with three
// overriders, a hiding subtype, an inheriting grandchild, interfaces with
// and without default methods, and an explicitly bound implementation.
func animalsProgram() *model.Program {
	mod := &model.Module{
		Name: "app",
		Types: []*model.Type{
			{
				Name:       "Zoo.Animal",
				IsAbstract: true,
				Methods: []*model.Method{
					{Name: "Speak", IsVirtual: true, IsAbstract: true},
					{Name: "Describe", IsVirtual: true, Body: &model.Body{}},
					{Name: "Clone", IsVirtual: true, ReturnType: "Zoo.Animal", Body: &model.Body{}},
				},
			},
			{
				Name: "Zoo.Dog",
				Base: "Zoo.Animal",
				Methods: []*model.Method{
					{Name: "Speak", IsVirtual: true, Body: &model.Body{}},
					{Name: "Clone", IsVirtual: true, ReturnType: "Zoo.Dog", Body: &model.Body{}},
					{Name: ".ctor", IsConstructor: true, Body: &model.Body{}},
				},
			},
			{
				Name: "Zoo.Cat",
				Base: "Zoo.Animal",
				Methods: []*model.Method{
					{Name: "Speak", IsVirtual: true, Body: &model.Body{}},
				},
			},
			{
				Name: "Zoo.Bird",
				Base: "Zoo.Animal",
				Methods: []*model.Method{
					{Name: "Speak", IsVirtual: true, Body: &model.Body{}},
				},
			},
			{
				// Sneaky redeclares the Speak slot instead of overriding it.
				Name: "Zoo.Sneaky",
				Base: "Zoo.Animal",
				Methods: []*model.Method{
					{Name: "Speak", IsVirtual: true, IsNewSlot: true, Body: &model.Body{}},
				},
			},
			{
				Name: "Zoo.Puppy",
				Base: "Zoo.Dog",
				Methods: []*model.Method{
					{Name: ".ctor", IsConstructor: true, Body: &model.Body{}},
				},
			},
			{
				Name:        "Zoo.IShape",
				IsInterface: true,
				Methods: []*model.Method{
					{Name: "Draw", IsVirtual: true, Body: &model.Body{}},
					{Name: "Area", IsVirtual: true, IsAbstract: true, ReturnType: "System.Double"},
				},
			},
			{
				Name:       "Zoo.Square",
				Interfaces: []string{"Zoo.IShape"},
				Methods: []*model.Method{
					{Name: "Area", IsVirtual: true, ReturnType: "System.Double", Body: &model.Body{}},
				},
			},
			{
				Name:       "Zoo.Circle",
				Interfaces: []string{"Zoo.IShape"},
				Methods: []*model.Method{
					{Name: "Draw", IsVirtual: true, Body: &model.Body{}},
					{Name: "Area", IsVirtual: true, ReturnType: "System.Double", Body: &model.Body{}},
				},
			},
			{
				Name:        "Zoo.ICommand",
				IsInterface: true,
				Methods: []*model.Method{
					{Name: "Execute", IsVirtual: true, IsAbstract: true},
				},
			},
			{
				Name:       "Zoo.Runner",
				Interfaces: []string{"Zoo.ICommand"},
				Methods: []*model.Method{
					{
						Name:      "Run",
						IsVirtual: true,
						Body:      &model.Body{},
						Overrides: []model.MethodRef{{DeclaringType: "Zoo.ICommand", Name: "Execute"}},
					},
				},
			},
			{
				Name: "Zoo.Util",
				Methods: []*model.Method{
					{Name: "Helper", Body: &model.Body{}},
				},
			},
		},
	}
	return model.NewProgram([]*model.Module{mod})
}

func findMethod(t *testing.T, p *model.Program, typeName, methodName string) *model.Method {
	t.Helper()
	typ, ok := p.Type(typeName)
	require.True(t, ok, "type %s", typeName)
	for _, m := range typ.Methods {
		if m.Name == methodName {
			return m
		}
	}
	t.Fatalf("method %s not found on %s", methodName, typeName)
	return nil
}

func methodKeys(p *model.Program, methods []*model.Method) []string {
	keys := make([]string, 0, len(methods))
	for _, m := range methods {
		keys = append(keys, p.Key(m))
	}
	return keys
}

func TestParseStrategy(t *testing.T) {
	for _, valid := range []string{"cha", "rta"} {
		s, err := ParseStrategy(valid)
		require.NoError(t, err)
		assert.Equal(t, Strategy(valid), s)
	}
	_, err := ParseStrategy("points-to")
	require.Error(t, err)
}

func TestNew_InstantiationRequiresLiveSet(t *testing.T) {
	p := animalsProgram()
	ix := hierarchy.NewIndex(p)

	_, err := New(StrategyInstantiation, p, ix, nil)
	require.Error(t, err)

	r, err := New(StrategyHierarchy, p, ix, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyHierarchy, r.Strategy())
}

func TestHierarchyResolver(t *testing.T) {
	p := animalsProgram()
	ix := hierarchy.NewIndex(p)
	r, err := New(StrategyHierarchy, p, ix, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		target *model.Method
		want   []string
	}{
		{
			name:   "abstract virtual reaches every overrider",
			target: findMethod(t, p, "Zoo.Animal", "Speak"),
			want: []string{
				"app!Zoo.Dog::Speak()void",
				"app!Zoo.Cat::Speak()void",
				"app!Zoo.Bird::Speak()void",
			},
		},
		{
			name:   "concrete virtual includes the target itself",
			target: findMethod(t, p, "Zoo.Animal", "Describe"),
			want:   []string{"app!Zoo.Animal::Describe()void"},
		},
		{
			name:   "covariant return override is a candidate",
			target: findMethod(t, p, "Zoo.Animal", "Clone"),
			want: []string{
				"app!Zoo.Animal::Clone()Zoo.Animal",
				"app!Zoo.Dog::Clone()Zoo.Dog",
			},
		},
		{
			name:   "interface default method plus overriders",
			target: findMethod(t, p, "Zoo.IShape", "Draw"),
			want: []string{
				"app!Zoo.IShape::Draw()void",
				"app!Zoo.Circle::Draw()void",
			},
		},
		{
			name:   "abstract interface method reaches structural implementations",
			target: findMethod(t, p, "Zoo.IShape", "Area"),
			want: []string{
				"app!Zoo.Square::Area()System.Double",
				"app!Zoo.Circle::Area()System.Double",
			},
		},
		{
			name:   "explicit binding resolves under a different name",
			target: findMethod(t, p, "Zoo.ICommand", "Execute"),
			want:   []string{"app!Zoo.Runner::Run()void"},
		},
		{
			name:   "non-virtual target binds statically",
			target: findMethod(t, p, "Zoo.Util", "Helper"),
			want:   []string{"app!Zoo.Util::Helper()void"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := methodKeys(p, r.Resolve(tt.target))
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestHierarchyResolver_NewSlotExcluded(t *testing.T) {
	p := animalsProgram()
	ix := hierarchy.NewIndex(p)
	r, err := New(StrategyHierarchy, p, ix, nil)
	require.NoError(t, err)

	got := methodKeys(p, r.Resolve(findMethod(t, p, "Zoo.Animal", "Speak")))
	assert.NotContains(t, got, "app!Zoo.Sneaky::Speak()void",
		"a new-slot redeclaration shadows the base slot and must not be dispatched to")
}

func TestInstantiationResolver(t *testing.T) {
	tests := []struct {
		name       string
		construct  []string
		targetType string
		target     string
		want       []string
	}{
		{
			name:       "no instantiations means no candidates",
			construct:  nil,
			targetType: "Zoo.Animal",
			target:     "Speak",
			want:       nil,
		},
		{
			name:       "single constructed type narrows the set",
			construct:  []string{"Zoo.Dog"},
			targetType: "Zoo.Animal",
			target:     "Speak",
			want:       []string{"app!Zoo.Dog::Speak()void"},
		},
		{
			name:       "each constructed type contributes its overrider",
			construct:  []string{"Zoo.Dog", "Zoo.Cat"},
			targetType: "Zoo.Animal",
			target:     "Speak",
			want: []string{
				"app!Zoo.Dog::Speak()void",
				"app!Zoo.Cat::Speak()void",
			},
		},
		{
			name:       "constructed subtype dispatches to inherited override",
			construct:  []string{"Zoo.Puppy"},
			targetType: "Zoo.Animal",
			target:     "Speak",
			want:       []string{"app!Zoo.Dog::Speak()void"},
		},
		{
			name:       "inherited base implementation is the runtime target",
			construct:  []string{"Zoo.Dog"},
			targetType: "Zoo.Animal",
			target:     "Describe",
			want:       []string{"app!Zoo.Animal::Describe()void"},
		},
		{
			name:       "live implementer without override lands on the default method",
			construct:  []string{"Zoo.Square"},
			targetType: "Zoo.IShape",
			target:     "Draw",
			want:       []string{"app!Zoo.IShape::Draw()void"},
		},
		{
			name:       "live implementer with override shadows the default method",
			construct:  []string{"Zoo.Circle"},
			targetType: "Zoo.IShape",
			target:     "Draw",
			want:       []string{"app!Zoo.Circle::Draw()void"},
		},
		{
			name:       "explicit binding honored for live implementer",
			construct:  []string{"Zoo.Runner"},
			targetType: "Zoo.ICommand",
			target:     "Execute",
			want:       []string{"app!Zoo.Runner::Run()void"},
		},
		{
			name:       "non-virtual target ignores liveness",
			construct:  nil,
			targetType: "Zoo.Util",
			target:     "Helper",
			want:       []string{"app!Zoo.Util::Helper()void"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := animalsProgram()
			ix := hierarchy.NewIndex(p)
			live := liveness.NewSet(ix)
			for _, name := range tt.construct {
				live.Record(name)
			}
			r, err := New(StrategyInstantiation, p, ix, live)
			require.NoError(t, err)

			got := methodKeys(p, r.Resolve(findMethod(t, p, tt.targetType, tt.target)))
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

// The instantiation-filtered candidate set is always a subset of the
// hierarchy-based one, and strictly smaller when some overriders are never
// constructed.
func TestInstantiationNarrowsHierarchy(t *testing.T) {
	p := animalsProgram()
	ix := hierarchy.NewIndex(p)
	live := liveness.NewSet(ix)
	live.Record("Zoo.Dog")

	cha, err := New(StrategyHierarchy, p, ix, nil)
	require.NoError(t, err)
	rta, err := New(StrategyInstantiation, p, ix, live)
	require.NoError(t, err)

	target := findMethod(t, p, "Zoo.Animal", "Speak")
	broad := methodKeys(p, cha.Resolve(target))
	narrow := methodKeys(p, rta.Resolve(target))

	assert.Subset(t, broad, narrow)
	assert.Less(t, len(narrow), len(broad))
}

func TestResolve_DeterministicOrder(t *testing.T) {
	p := animalsProgram()
	ix := hierarchy.NewIndex(p)
	r, err := New(StrategyHierarchy, p, ix, nil)
	require.NoError(t, err)

	target := findMethod(t, p, "Zoo.Animal", "Speak")
	first := methodKeys(p, r.Resolve(target))
	second := methodKeys(p, r.Resolve(target))
	assert.Equal(t, first, second)
}
