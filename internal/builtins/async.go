package builtins

import (
	"time"

	"github.com/cryguy/hostbridge/codec"
	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/marshal"
	"github.com/cryguy/hostbridge/safeerr"
	"github.com/cryguy/hostbridge/task"
)

func (s *Set) asyncOps() []Op {
	return []Op{
		{
			Name:  "keccakAsync",
			Usage: "keccakAsync(hex | buffer, cb) calls cb(null, hash) from a worker",
			Func: func(c *host.Call) (host.Value, error) {
				data, err := marshal.Arg(c, 0, marshal.BytesFrom)
				if err != nil {
					return nil, err
				}
				cb, err := marshal.Callback(c, 1)
				if err != nil {
					return nil, err
				}
				_, err = task.Run(c, cb, func() (codec.Bytes32, error) {
					return codec.Keccak256(data), nil
				}, marshal.Bytes32Into)
				return nil, err
			},
		},
		{
			Name:  "sleep",
			Usage: "sleep(ms, cb) calls cb(null, ms) after ms milliseconds",
			Func: func(c *host.Call) (host.Value, error) {
				d, err := marshal.Arg(c, 0, marshal.DurationFrom)
				if err != nil {
					return nil, err
				}
				cb, err := marshal.Callback(c, 1)
				if err != nil {
					return nil, err
				}
				_, err = task.Run(c, cb, func() (time.Duration, error) {
					time.Sleep(d)
					return d, nil
				}, marshal.DurationInto)
				return nil, err
			},
		},
		{
			Name:  "failAsync",
			Usage: "failAsync(message, cb) calls cb(Error(message)) from a worker",
			Func: func(c *host.Call) (host.Value, error) {
				msg, err := marshal.Arg(c, 0, marshal.StringFrom)
				if err != nil {
					return nil, err
				}
				cb, err := marshal.Callback(c, 1)
				if err != nil {
					return nil, err
				}
				_, err = task.Run(c, cb, func() (struct{}, error) {
					return struct{}{}, safeerr.New(msg)
				}, marshal.Unit)
				return nil, err
			},
		},
	}
}
