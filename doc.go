// Package hostbridge embeds a JavaScript runtime (QuickJS by default, V8
// with the v8 build tag) and exposes typed native operations to it.
//
// Native operations are host.Func values. They read arguments with the
// marshal package, report failures with safeerr, and run slow work off the
// JavaScript goroutine with task.Run:
//
//	e, _ := hostbridge.NewEngine()
//	defer e.Close()
//	_ = e.Register("add", marshal.Bind(func(c *host.Call) (uint64, error) {
//		a, err := marshal.Arg(c, 0, marshal.U64From)
//		if err != nil {
//			return 0, err
//		}
//		b, err := marshal.Arg(c, 1, marshal.U64From)
//		return a + b, err
//	}, marshal.U64Into))
//	out, _ := e.Eval("add(1, 2)")
//
// Results of tasks are delivered to their callbacks by Wait.
package hostbridge
