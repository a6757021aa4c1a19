// Package builtins holds the reference native operations installed by the
// CLI and used by the end-to-end tests.
package builtins

import (
	"sort"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/proxy"
)

// Registrar installs a native function under a global name.
type Registrar interface {
	Register(name string, fn host.Func) error
}

// Op is one named native operation.
type Op struct {
	Name  string
	Usage string
	Func  host.Func
}

// Set is the reference operation set. Shared counters live in its proxy
// table.
type Set struct {
	table *proxy.Table
	ops   []Op
}

// New returns the reference set. Counter handles are stored in table.
func New(table *proxy.Table) *Set {
	s := &Set{table: table}
	s.ops = append(s.ops, s.codecOps()...)
	s.ops = append(s.ops, s.numberOps()...)
	s.ops = append(s.ops, s.keyOps()...)
	s.ops = append(s.ops, s.asyncOps()...)
	s.ops = append(s.ops, s.counterOps()...)
	sort.Slice(s.ops, func(i, j int) bool { return s.ops[i].Name < s.ops[j].Name })
	return s
}

// Ops returns the operations sorted by name.
func (s *Set) Ops() []Op { return s.ops }

// Install registers every operation with r.
func (s *Set) Install(r Registrar) error {
	for _, op := range s.ops {
		if err := r.Register(op.Name, op.Func); err != nil {
			return err
		}
	}
	return nil
}
