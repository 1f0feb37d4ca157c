package scraper

// inflightJS runs before any page script and counts outstanding fetch and
// XHR calls in window.__dsInflight. It stays in the page's JS world, so it
// does not compete with the Fetch domain the hijack router uses.
const inflightJS = `(() => {
	if (window.__dsInflight !== undefined) return;
	window.__dsInflight = 0;
	const done = () => { window.__dsInflight = Math.max(0, window.__dsInflight - 1); };
	const origFetch = window.fetch;
	if (origFetch) {
		window.fetch = function (...args) {
			window.__dsInflight++;
			return origFetch.apply(this, args).finally(done);
		};
	}
	const origSend = XMLHttpRequest.prototype.send;
	XMLHttpRequest.prototype.send = function (...args) {
		window.__dsInflight++;
		this.addEventListener('loadend', done, { once: true });
		return origSend.apply(this, args);
	};
})();`

const probeJS = `() => ({
	size: document.documentElement ? document.documentElement.outerHTML.length : 0,
	inflight: window.__dsInflight || 0,
})`

// annotateJS copies layout and live form state into data-ds-* attributes
// so the static snapshot carries them. navSelectors are the navigation
// discovery rules; only their matches are checked for visibility.
const annotateJS = `(navSelectors) => {
	const HIDDEN = 'data-ds-hidden', RAIL = 'data-ds-rail', VALUE = 'data-ds-value';
	for (const el of document.querySelectorAll('[' + HIDDEN + '],[' + RAIL + '],[' + VALUE + ']')) {
		el.removeAttribute(HIDDEN);
		el.removeAttribute(RAIL);
		el.removeAttribute(VALUE);
	}
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		if (r.width === 0 && r.height === 0) return false;
		const s = getComputedStyle(el);
		return s.visibility !== 'hidden' && s.display !== 'none';
	};
	for (const sel of navSelectors) {
		let els;
		try { els = document.querySelectorAll(sel); } catch (e) { continue; }
		for (const el of els) if (!visible(el)) el.setAttribute(HIDDEN, '1');
	}
	for (const el of document.querySelectorAll('body *')) {
		if (el.childElementCount !== 0) continue;
		const text = (el.innerText || '').trim();
		if (!text || text.length >= 20) continue;
		const r = el.getBoundingClientRect();
		if (r.left < 100 && r.width < 100 && r.height > 15 && r.height < 80) el.setAttribute(RAIL, '1');
	}
	for (const el of document.querySelectorAll('select, input')) {
		let v = '';
		if (el.tagName === 'SELECT') {
			const o = el.options[el.selectedIndex];
			v = o ? o.text : '';
		} else if (el.type !== 'password' && el.type !== 'hidden') {
			v = el.value;
		}
		if (v) el.setAttribute(VALUE, v.trim());
	}
}`

// scrollJS scrolls the largest scrollable container, which on dashboards is
// usually not the document itself, to its end or back to the top.
const scrollJS = `(toEnd) => {
	let best = document.scrollingElement || document.documentElement;
	let area = 0;
	for (const el of document.querySelectorAll('body *')) {
		if (el.scrollHeight <= el.clientHeight + 10) continue;
		const o = getComputedStyle(el).overflowY;
		if (o !== 'auto' && o !== 'scroll') continue;
		const a = el.clientWidth * el.clientHeight;
		if (a > area) { area = a; best = el; }
	}
	best.scrollTop = toEnd ? best.scrollHeight : 0;
	return best.scrollHeight;
}`

const queryJS = `(sel) => Array.from(document.querySelectorAll(sel))
	.map((el) => (el.innerText || '').trim())
	.filter(Boolean)`

// controlNamesJS lists every selector match with the names it can be
// clicked by. text walks the element the way the snapshot extractor does:
// icon ligatures and hidden parts are skipped and block children are
// separated by a space.
const controlNamesJS = `(sel) => {
	const INLINE = new Set(['A','ABBR','B','BDI','BDO','CITE','CODE','DATA','DFN','EM','FONT','I','KBD',
		'LABEL','MARK','Q','S','SAMP','SMALL','SPAN','STRONG','SUB','SUP','TIME','U','VAR','TSPAN']);
	const SKIP = new Set(['SCRIPT','STYLE','NOSCRIPT','TEMPLATE','MAT-ICON','OPTION','DATALIST']);
	const icon = (el) => Array.from(el.classList || []).some((c) =>
		c.startsWith('material-icons') || c.startsWith('material-symbols'));
	const walk = (n, out) => {
		if (n.nodeType === Node.TEXT_NODE) { out.push(n.data); return; }
		if (n.nodeType !== Node.ELEMENT_NODE) return;
		const tag = n.tagName.toUpperCase();
		if (SKIP.has(tag) || n.getAttribute('aria-hidden') === 'true' || n.hasAttribute('data-ds-hidden') || icon(n)) return;
		const block = !INLINE.has(tag);
		if (block || tag === 'BR') out.push(' ');
		for (const c of n.childNodes) walk(c, out);
		if (block) out.push(' ');
	};
	let els;
	try { els = document.querySelectorAll(sel); } catch (e) { return []; }
	return Array.from(els).map((el) => {
		const out = [];
		for (const c of el.childNodes) walk(c, out);
		return {
			text: out.join(''),
			inner: el.innerText || '',
			aria: el.getAttribute('aria-label') || '',
			title: el.getAttribute('title') || '',
		};
	});
}`

const nthJS = `(sel, i) => document.querySelectorAll(sel)[i] || null`

const loginFieldJS = `() => !!document.querySelector('input[type="password"], input#identifierId, input[name="identifier"]')`
