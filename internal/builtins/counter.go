package builtins

import (
	"sync/atomic"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/marshal"
	"github.com/cryguy/hostbridge/proxy"
	"github.com/cryguy/hostbridge/safeerr"
	"github.com/cryguy/hostbridge/task"
)

// Counter is the shared resource behind counter handles. It is updated from
// the engine goroutine and from task workers.
type Counter struct {
	n atomic.Uint64
}

func (c *Counter) Add(d uint64) uint64 { return c.n.Add(d) }
func (c *Counter) Load() uint64        { return c.n.Load() }

func (s *Set) counterOps() []Op {
	from := marshal.ProxyFrom[*Counter](s.table)
	into := marshal.ProxyInto[*Counter](s.table)

	return []Op{
		{
			Name:  "counterNew",
			Usage: "counterNew(initial?) -> handle",
			Func: marshal.Bind(func(c *host.Call) (*proxy.Proxy[*Counter], error) {
				var initial uint64
				if marshal.Len(c) > 0 {
					n, err := marshal.Arg(c, 0, marshal.Optional(marshal.U64From))
					if err != nil {
						return nil, err
					}
					if n != nil {
						initial = *n
					}
				}
				ctr := &Counter{}
				ctr.n.Store(initial)
				return proxy.New(ctr, nil), nil
			}, into),
		},
		{
			Name:  "counterAdd",
			Usage: "counterAdd(handle, n) -> new value",
			Func: marshal.Bind(func(c *host.Call) (uint64, error) {
				p, err := marshal.Arg(c, 0, from)
				if err != nil {
					return 0, err
				}
				d, err := marshal.Arg(c, 1, marshal.U64From)
				if err != nil {
					return 0, err
				}
				return p.Value().Add(d), nil
			}, marshal.U64Into),
		},
		{
			Name:  "counterAddAsync",
			Usage: "counterAddAsync(handle, n, cb) adds from a worker and calls cb(null, value)",
			Func: func(c *host.Call) (host.Value, error) {
				p, err := marshal.Arg(c, 0, from)
				if err != nil {
					return nil, err
				}
				d, err := marshal.Arg(c, 1, marshal.U64From)
				if err != nil {
					return nil, err
				}
				cb, err := marshal.Callback(c, 2)
				if err != nil {
					return nil, err
				}
				ref := p.Clone()
				if _, err := task.Run(c, cb, func() (uint64, error) {
					defer ref.Release()
					return ref.Value().Add(d), nil
				}, marshal.U64Into); err != nil {
					ref.Release()
					return nil, err
				}
				return nil, nil
			},
		},
		{
			Name:  "counterGet",
			Usage: "counterGet(handle) -> value",
			Func: marshal.Bind(func(c *host.Call) (uint64, error) {
				p, err := marshal.Arg(c, 0, from)
				if err != nil {
					return 0, err
				}
				return p.Value().Load(), nil
			}, marshal.U64Into),
		},
		{
			Name:  "counterClone",
			Usage: "counterClone(handle) -> second handle to the same counter",
			Func: marshal.Bind(func(c *host.Call) (*proxy.Proxy[*Counter], error) {
				p, err := marshal.Arg(c, 0, from)
				if err != nil {
					return nil, err
				}
				return p.Clone(), nil
			}, into),
		},
		{
			Name:  "counterRelease",
			Usage: "counterRelease(handle) drops the handle",
			Func: marshal.Bind(func(c *host.Call) (struct{}, error) {
				id, err := marshal.Arg(c, 0, marshal.ProxyID)
				if err != nil {
					return struct{}{}, err
				}
				if !s.table.Delete(id) {
					return struct{}{}, safeerr.Invalidf("counterRelease: unknown or released handle %d", id)
				}
				return struct{}{}, nil
			}, marshal.Unit),
		},
	}
}
