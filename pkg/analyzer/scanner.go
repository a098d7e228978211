package analyzer

import (
	"fmt"

	"github.com/715d/callgraph/pkg/model"
)

// scan processes one method: records it as visited, inserts its node, and
// classifies its instructions. Scanning an already-visited method is a
// no-op, which is what makes the permissive worklist safe.
func (a *Analyzer) scan(caller *model.Method) {
	if _, loaded := a.visited.LoadOrStore(a.program.Key(caller), struct{}{}); loaded {
		return
	}

	// A compiler-synthesized continuation method has a near-empty body that
	// only constructs and starts the state machine; the real call sites
	// live in the driving method. Bridge directly to the driver and scan
	// that instead of expanding the stub body.
	if cont, ok, err := a.program.Continuation(caller); ok {
		a.graph.AddNode(caller)
		if err != nil {
			a.diags.record(a.program.Key(caller), err.Error())
			return
		}
		a.graph.AddEdge(caller, cont.Driver)
		a.enqueue(cont.Driver)
		return
	}

	if !caller.HasBody() {
		return
	}
	a.graph.AddNode(caller)

	for i := range caller.Body.Instructions {
		ins := &caller.Body.Instructions[i]
		switch ins.Op {
		case model.OpCall, model.OpLoadFunction:
			callee, err := a.program.Resolve(ins.Method)
			if err != nil {
				a.diags.record(a.program.Key(caller), err.Error())
				continue
			}
			a.addEdge(caller, callee)

		case model.OpCallVirt, model.OpLoadVirtualFunction:
			target, err := a.program.Resolve(ins.Method)
			if err != nil {
				a.diags.record(a.program.Key(caller), err.Error())
				continue
			}
			a.recordVirtualSite(caller, target)
			for _, cand := range a.resolver.Resolve(target) {
				a.addEdge(caller, cand)
			}

		case model.OpNewObject:
			// Constructors are never virtual; the reference resolves to
			// exactly one definition.
			ctor, err := a.program.Resolve(ins.Method)
			if err != nil {
				a.diags.record(a.program.Key(caller), err.Error())
				continue
			}
			a.addEdge(caller, ctor)
			if t := ctor.Declaring(); t != nil {
				a.live.Record(t.Name)
			}

		case model.OpInitValue, model.OpNewArray:
			// Value types have no construction instruction, but a
			// default-initialized value or an array of them is just as
			// live as a constructed object.
			t, ok := a.program.Type(ins.Type)
			if !ok {
				a.diags.record(a.program.Key(caller),
					fmt.Sprintf("type %s: %v", ins.Type, model.ErrUnresolved))
				continue
			}
			if t.IsValueType {
				a.live.Record(t.Name)
			}

		default:
			a.diags.record(a.program.Key(caller), fmt.Sprintf("unknown opcode %q skipped", ins.Op))
		}
	}
}

func (a *Analyzer) addEdge(caller, callee *model.Method) {
	a.graph.AddEdge(caller, callee)
	a.enqueue(callee)
}
