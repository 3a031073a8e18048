// Package deepdiscovery fuses ten independent evidence sources into a
// best-guess network topology: which host sits behind which switch, AP,
// or hypervisor, plus assorted per-host enrichment facts.
package deepdiscovery

import "context"

// Hint is either an Enrichment (descriptive facts about one host) or a
// Relationship (evidence that a child host sits below a parent host).
// A single evidence source may emit both kinds in one run.
type Hint struct {
	// Enrichment fields.
	IP     string
	Method string
	Data   map[string]interface{}

	// Relationship fields (zero value means this Hint is enrichment-only).
	ChildIP       string
	ParentIP      string
	Confidence    int
	PortMACCount  int
	Detail        string
}

func (h Hint) IsRelationship() bool {
	return h.ChildIP != "" && h.ParentIP != ""
}

// Source is implemented by each independent evidence gatherer.
type Source interface {
	Name() string
	Gather(ctx context.Context, sc SourceContext) []Hint
}

// SourceContext carries everything an evidence source needs to target
// its probes, without depending on the store package directly.
type SourceContext struct {
	KnownHosts []HostRef
	Settings   map[string]string
}

// HostRef is the minimal view of a stored host an evidence source needs:
// enough to target probes without importing the store package directly.
type HostRef struct {
	ID       string
	IP       string
	MAC      string
}
