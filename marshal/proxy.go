package marshal

import (
	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/proxy"
	"github.com/cryguy/hostbridge/safeerr"
)

// proxyKey is the property that carries a proxy id on the JS side.
const proxyKey = "__proxy"

// ProxyInto stores the proxy in t and returns {__proxy: id}. The table owns
// the reference from then on.
func ProxyInto[T any](t *proxy.Table) Into[*proxy.Proxy[T]] {
	return func(h host.Host, p *proxy.Proxy[T]) (host.Value, error) {
		id := t.Put(p)
		v, err := Object(h, Field(proxyKey, id, U64Into))
		if err != nil {
			t.Delete(id)
			return nil, err
		}
		return v, nil
	}
}

// ProxyID reads the id of a {__proxy: id} object.
func ProxyID(h host.Host, v host.Value) (uint64, error) {
	return Get(h, v, proxyKey, U64From)
}

// ProxyFrom resolves a {__proxy: id} object to the reference held by t. The
// reference stays owned by the table; Clone it to keep it.
func ProxyFrom[T any](t *proxy.Table) From[*proxy.Proxy[T]] {
	return func(h host.Host, v host.Value) (*proxy.Proxy[T], error) {
		id, err := ProxyID(h, v)
		if err != nil {
			return nil, err
		}
		p, ok := proxy.Lookup[T](t, id)
		if !ok {
			return nil, safeerr.Invalidf("unknown or released proxy %d", id)
		}
		return p, nil
	}
}
