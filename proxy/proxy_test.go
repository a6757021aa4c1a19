package proxy

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cryguy/hostbridge/host/hosttest"
	"github.com/cryguy/hostbridge/safeerr"
)

func TestProxy_LastReleaseRunsRelease(t *testing.T) {
	var released atomic.Int32
	p := New("db", func(string) { released.Add(1) })
	q := p.Clone()
	r := q.Clone()

	if p.Refs() != 3 {
		t.Fatalf("refs = %d, want 3", p.Refs())
	}
	p.Release()
	q.Release()
	if released.Load() != 0 {
		t.Fatal("released while a reference is live")
	}
	if r.Value() != "db" {
		t.Errorf("value = %q", r.Value())
	}
	r.Release()
	if released.Load() != 1 {
		t.Errorf("release ran %d times, want 1", released.Load())
	}
}

func TestProxy_DoubleReleasePanics(t *testing.T) {
	p := New(1, nil)
	p.Release()
	defer func() {
		if recover() == nil {
			t.Error("second Release did not panic")
		}
	}()
	p.Release()
}

func TestProxy_UseAfterReleasePanics(t *testing.T) {
	p := New(1, nil)
	p.Release()
	defer func() {
		if recover() == nil {
			t.Error("Value on a released reference did not panic")
		}
	}()
	_ = p.Value()
}

func TestProxy_ConcurrentClones(t *testing.T) {
	var released atomic.Int32
	root := New(0, func(int) { released.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		c := root.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Release()
		}()
	}
	wg.Wait()
	if root.Refs() != 1 || released.Load() != 0 {
		t.Fatalf("refs = %d, released = %d", root.Refs(), released.Load())
	}
	root.Release()
	if released.Load() != 1 {
		t.Errorf("released = %d, want 1", released.Load())
	}
}

func TestTable(t *testing.T) {
	tbl := NewTable()
	var released atomic.Int32
	a := New("a", func(string) { released.Add(1) })
	b := New(2, func(int) { released.Add(1) })

	ida := tbl.Put(a)
	idb := tbl.Put(b)
	if ida == idb || ida == 0 {
		t.Fatalf("ids = %d, %d", ida, idb)
	}
	if p, ok := Lookup[string](tbl, ida); !ok || p.Value() != "a" {
		t.Errorf("Lookup(a) = %v, %v", p, ok)
	}
	if _, ok := Lookup[string](tbl, idb); ok {
		t.Error("Lookup with the wrong type succeeded")
	}
	if !tbl.Delete(ida) || tbl.Delete(ida) {
		t.Error("Delete should succeed once")
	}
	if tbl.Len() != 1 {
		t.Errorf("len = %d", tbl.Len())
	}
	tbl.Close()
	if released.Load() != 2 || tbl.Len() != 0 {
		t.Errorf("after Close released = %d, len = %d", released.Load(), tbl.Len())
	}
}

func TestFinish(t *testing.T) {
	h := hosttest.New()
	h.Enter()

	p := New(1, nil)
	got, thrown := Finish(h, p, nil)
	if thrown != nil || got != p {
		t.Fatalf("Finish ok = %v, %v", got, thrown)
	}

	got, thrown = Finish[int](h, nil, safeerr.New("no resource"))
	if got != nil || thrown == nil {
		t.Fatalf("Finish err = %v, %v", got, thrown)
	}
	if hosttest.Message(h.Pending()) != "no resource" {
		t.Errorf("pending = %q", hosttest.Message(h.Pending()))
	}
}
