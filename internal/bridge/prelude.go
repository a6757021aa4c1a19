package bridge

// preludeJS installs the handle table and the helpers the Go side drives.
//
// Every runtime value native code holds is an integer id into __hb.v.
// undefined, null, true and false have fixed negative ids and are never
// deleted. Helpers that may run user code (getters, proxies) catch the
// exception and return it as "!" + tag so Go can signal it.
const preludeJS = `(function() {
	var SAB = typeof SharedArrayBuffer === 'function' ? SharedArrayBuffer : null;
	var v = Object.create(null);
	v[-1] = undefined; v[-2] = null; v[-3] = true; v[-4] = false;
	var next = 0;

	function kind(x) {
		if (x === undefined) return 'undefined';
		if (x === null) return 'null';
		switch (typeof x) {
		case 'boolean': case 'number': case 'string': case 'function':
			return typeof x;
		}
		if (Array.isArray(x)) return 'array';
		if (x instanceof ArrayBuffer || (SAB && x instanceof SAB) || ArrayBuffer.isView(x)) return 'binary';
		return 'object';
	}
	function put(x) {
		if (x === undefined) return -1;
		if (x === null) return -2;
		if (x === true) return -3;
		if (x === false) return -4;
		v[++next] = x;
		return next;
	}
	function tag(x) { return put(x) + ':' + kind(x); }
	function guard(f) {
		try { return f(); } catch (e) { return '!' + tag(e); }
	}
	function ids(s) { return s === '' ? [] : s.split(','); }

	var hb = {
		v: v,
		tag: tag,
		drop: function(s) {
			var p = ids(s);
			for (var i = 0; i < p.length; i++) delete v[+p[i]];
		},
		str: function(id) {
			var s = String(v[id]);
			if (/[\uD800-\uDBFF](?![\uDC00-\uDFFF])|(?:^|[^\uD800-\uDBFF])[\uDC00-\uDFFF]/.test(s)) return '!';
			return JSON.stringify(s).replace(/[\u007f-\uffff]/g, function(c) {
				return '\\u' + ('0000' + c.charCodeAt(0).toString(16)).slice(-4);
			});
		},
		num: function(id) {
			var x = v[id];
			return Object.is(x, -0) ? '-0' : String(x);
		},
		size: function() {
			var n = 0;
			for (var k in v) if (+k > 0) n++;
			return n;
		},
		elems: function(id) {
			return guard(function() {
				var a = v[id], out = [];
				for (var i = 0; i < a.length; i++) out.push(tag(a[i]));
				return out.join(',');
			});
		},
		get: function(id, key) {
			return guard(function() { return tag(v[id][key]); });
		},
		arr: function(s) {
			var p = ids(s), out = [];
			for (var i = 0; i < p.length; i++) out.push(v[+p[i]]);
			return tag(out);
		},
		obj: function(kv) {
			var o = {};
			for (var i = 0; i + 1 < kv.length; i += 2) {
				Object.defineProperty(o, kv[i], {value: v[kv[i + 1]], enumerable: true, writable: true, configurable: true});
			}
			return tag(o);
		},
		bin: function(id, mode, name) {
			var x = v[id], u;
			if (x instanceof ArrayBuffer || (SAB && x instanceof SAB)) u = new Uint8Array(x);
			else u = new Uint8Array(x.buffer, x.byteOffset, x.byteLength);
			var b = (mode === 'sab' && SAB) ? new SAB(u.length) : new ArrayBuffer(u.length);
			new Uint8Array(b).set(u);
			globalThis[name] = b;
			return u.length;
		},
		take: function(name) {
			var b = globalThis[name];
			delete globalThis[name];
			return tag(b);
		},
		invoke: function(name, args) {
			var t = [];
			for (var i = 0; i < args.length; i++) t.push(tag(args[i]));
			var r = __hb_native(name, t.join(','));
			var thrown = r.charAt(0) === '!';
			if (thrown) r = r.slice(1);
			var keep = r.charAt(0) === '=';
			if (keep) r = r.slice(1);
			var id = +r, out = v[id];
			if (!keep && id > 0) delete v[id];
			if (thrown) throw out;
			return out;
		},
		deliver: function(cbid, token) {
			var cb = v[cbid], r;
			try {
				r = hb.invoke('` + completeName + `', [token]);
			} catch (e) {
				cb(e);
				return;
			}
			cb(null, r);
		}
	};
	Object.defineProperty(globalThis, '__hb', {value: hb});
})();
`
