package analyzer

import "sync"

// Diagnostic records one degraded-but-recovered event during scanning, such
// as an instruction whose operand could not be bound to a definition. The
// run never aborts on these; they are surfaced in the Result for the
// reporting layer.
type Diagnostic struct {
	Method string `json:"method"`
	Detail string `json:"detail"`
}

type diagnostics struct {
	mu   sync.Mutex
	list []Diagnostic
}

func (d *diagnostics) record(method, detail string) {
	d.mu.Lock()
	d.list = append(d.list, Diagnostic{Method: method, Detail: detail})
	d.mu.Unlock()
}

func (d *diagnostics) all() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.list))
	copy(out, d.list)
	return out
}
