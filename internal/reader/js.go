package reader

import (
	"fmt"
	"strconv"
)

// The reader DOM is hostile territory: lazy loaders, ad iframes, scripts
// that rewrite src attributes. Everything here runs as self-contained
// expressions so it works in isolated worlds without argument passing.

func jsStr(s string) string { return strconv.Quote(s) }

// scoreScript counts renderable page images matched by the selector chain.
// An image qualifies when it has a real URL with an image extension and at
// least one dimension of 480px.
func scoreScript(selector string) string {
	return fmt.Sprintf(`(() => {
  const nodes = Array.from(document.querySelectorAll(%s));
  let cnt = 0;
  for (const n of nodes) {
    const url = n.getAttribute('src') || n.getAttribute('data-original') || n.getAttribute('data-src') || '';
    const w = (n.naturalWidth || n.width || 0);
    const h = (n.naturalHeight || n.height || 0);
    const okExt = /\.(jpg|jpeg|png|webp|avif)(\?|$)/i.test(url || '');
    const notData = url && !url.startsWith('data:');
    const big = (w >= 480 || h >= 480);
    if (notData && okExt && big) cnt++;
  }
  return cnt;
})()`, jsStr(selector))
}

func containerProbeScript(selector string) string {
	return fmt.Sprintf(`Boolean(document.querySelector(%s))`, jsStr(selector))
}

func countScript(selector string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, jsStr(selector))
}

// forceEagerScript flips lazy loading off and promotes data-src attributes
// into live src so the network layer sees every page request.
func forceEagerScript(imageSel string) string {
	return fmt.Sprintf(`(() => {
  const nodes = Array.from(document.querySelectorAll(%s));
  nodes.forEach(img => {
    img.loading = 'eager';
    const want = img.getAttribute('src') || img.getAttribute('data-original') || img.getAttribute('data-src') || '';
    if (want && img.src !== want) { img.src = want; }
  });
  return nodes.length;
})()`, jsStr(imageSel))
}

// scrollAnchorsScript walks each page anchor into view with a short dwell so
// intersection-observer loaders fire in reading order.
func scrollAnchorsScript(anchorSel, imageSel string) string {
	return fmt.Sprintf(`(async () => {
  const anchors = Array.from(document.querySelectorAll(%s));
  if (anchors.length) {
    for (const a of anchors) {
      a.scrollIntoView({block:'center'});
      await new Promise(r => setTimeout(r, 220));
    }
    return anchors.length;
  }
  const imgs = Array.from(document.querySelectorAll(%s));
  for (const img of imgs) {
    img.scrollIntoView({block:'center'});
    await new Promise(r => setTimeout(r, 180));
  }
  return imgs.length;
})()`, jsStr(anchorSel), jsStr(imageSel))
}

func decodeAllScript(imageSel string) string {
	return fmt.Sprintf(`(async () => {
  const imgs = Array.from(document.querySelectorAll(%s));
  for (const img of imgs) {
    const want = img.getAttribute('src') || img.getAttribute('data-original') || img.getAttribute('data-src') || '';
    if (want && img.src !== want) img.src = want;
  }
  await Promise.all(imgs.map(i => (i && i.decode ? i.decode().catch(() => {}) : Promise.resolve())));
  return imgs.length;
})()`, jsStr(imageSel))
}

const scrollHeightScript = `(document.scrollingElement || document.documentElement).scrollHeight`

const scrollStepScript = `window.scrollBy(0, 1600)`

// haltScript stops any further document loading once every page is in hand.
const haltScript = `(() => {
  if (window.stop) { window.stop(); }
  if (document.body) { document.body.setAttribute('data-lectord-stopped', '1'); }
  return true;
})()`

// collectScript gathers page-number/URL pairs, preferring named anchors and
// falling back to flat image order.
func collectScript(anchorSel, imageSel string) string {
	return fmt.Sprintf(`(() => {
  const out = [];
  const anchors = Array.from(document.querySelectorAll(%s));
  if (anchors.length) {
    anchors.forEach((a, i) => {
      const name = a.getAttribute('name') || '';
      const page = parseInt(name, 10);
      const img = a.querySelector('img');
      const url = img ? (img.getAttribute('src') || img.getAttribute('data-original') || img.getAttribute('data-src') || '') : '';
      out.push({page: Number.isFinite(page) ? page : (i + 1), url: url});
    });
    return out;
  }
  const imgs = Array.from(document.querySelectorAll(%s));
  imgs.forEach((img, idx) => {
    const url = img.getAttribute('src') || img.getAttribute('data-original') || img.getAttribute('data-src') || '';
    out.push({page: idx + 1, url: url});
  });
  return out;
})()`, jsStr(anchorSel), jsStr(imageSel))
}

// selectValuesScript reads the option values of the first matching dropdown.
func selectValuesScript(selectSel string) string {
	return fmt.Sprintf(`(() => {
  const sel = document.querySelector(%s);
  if (!sel) return [];
  return Array.from(sel.querySelectorAll('option')).map(o => o.value).filter(Boolean);
})()`, jsStr(selectSel))
}

// chapterLabelScript reads the text of the currently selected chapter option.
func chapterLabelScript(chapterSel string) string {
	return fmt.Sprintf(`(() => {
  const sels = Array.from(document.querySelectorAll(%s));
  for (const s of sels) {
    const i = s.selectedIndex;
    if (i >= 0 && s.options[i]) return (s.options[i].textContent || '').trim() || null;
    const chosen = s.querySelector('option[selected]');
    if (chosen) return (chosen.textContent || '').trim() || null;
  }
  return null;
})()`, jsStr(chapterSel))
}

// metaURLScript pulls the canonical or og:url hint for chapter numbering.
const metaURLScript = `(() => {
  const can = document.querySelector("link[rel='canonical']");
  if (can && can.getAttribute('href')) return can.getAttribute('href');
  const og = document.querySelector("meta[property='og:url']");
  if (og && og.getAttribute('content')) return og.getAttribute('content');
  return '';
})()`

// displayModeScript forces the single-strip display mode: persists the
// preference and flips every mode dropdown with a change event.
const displayModeScript = `(() => {
  try {
    localStorage.setItem('display_mode', '1');
    localStorage.setItem('pic_style', '0');
  } catch (e) {}
  let flipped = 0;
  const selects = Array.from(document.querySelectorAll('select.loadImgType'));
  for (const sel of selects) {
    sel.value = '1';
    sel.dispatchEvent(new Event('change', {bubbles: true}));
    flipped++;
  }
  return flipped;
})()`

// forcePageScript targets one page number through the anchor selector ladder,
// promoting and decoding its image. Returns the resolved src or null.
func forcePageScript(selectors []string) string {
	quoted := make([]string, len(selectors))
	for i, s := range selectors {
		quoted[i] = jsStr(s)
	}

	return fmt.Sprintf(`(async () => {
  const selectors = [%s];
  for (const sel of selectors) {
    let img;
    try { img = document.querySelector(sel); } catch (e) { continue; }
    if (!img) continue;
    const want = img.getAttribute('src') || img.getAttribute('data-original') || img.getAttribute('data-src') || '';
    if (want && img.src !== want) img.src = want;
    img.scrollIntoView({block: 'center'});
    await new Promise(r => setTimeout(r, 150));
    if (img.decode) { try { await img.decode(); } catch (e) {} }
    const src = img.getAttribute('src') || img.getAttribute('data-original') || img.getAttribute('data-src') || '';
    if (src) return src;
  }
  return null;
})()`, joinCSV(quoted))
}

// findByKeyScript scans the image chain for an element whose normalized URL
// matches the wanted key, then promotes and decodes it.
func findByKeyScript(imageSel, targetKey, baseHref string) string {
	return fmt.Sprintf(`(async () => {
  const want = %s;
  if (!want) return null;
  const imgs = Array.from(document.querySelectorAll(%s));
  const normalize = (url, baseUrl) => {
    try {
      const u = new URL(url, baseUrl || window.location.href);
      return u.protocol + '//' + u.host + u.pathname;
    } catch (e) {
      return '';
    }
  };
  for (const img of imgs) {
    const candidate = img.getAttribute('src') || img.getAttribute('data-original') || img.getAttribute('data-src') || '';
    if (!candidate || candidate.startsWith('data:')) continue;
    const norm = normalize(candidate, %s);
    if (!norm) continue;
    if (norm === want) {
      if (img.src !== candidate) img.src = candidate;
      if (img.loading !== 'eager') img.loading = 'eager';
      if (img.decode) { try { await img.decode(); } catch (e) {} }
      return candidate;
    }
  }
  return null;
})()`, jsStr(targetKey), jsStr(imageSel), jsStr(baseHref))
}

// rectScript resolves the viewport rectangle of the nth element matched by
// the selector chain (1-based), scrolling it into view first. In strict mode
// an out-of-range index yields null instead of the first element.
func rectScript(imageSel string, index int, strict bool) string {
	return fmt.Sprintf(`(async () => {
  const nodes = Array.from(document.querySelectorAll(%s));
  if (!nodes.length) return null;
  let el = nodes[%d - 1];
  if (!el) { if (%t) return null; el = nodes[0]; }
  el.scrollIntoView({block: 'center'});
  await new Promise(r => setTimeout(r, 150));
  const r = el.getBoundingClientRect();
  return {x: r.x, y: r.y, width: r.width, height: r.height};
})()`, jsStr(imageSel), index, strict)
}

func joinCSV(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}

	return out
}

// altMetadataScript scrapes title and chapter text on hosts whose reader
// exposes them as sibling headings instead of a dropdown.
func altMetadataScript(titleSel string) string {
	return fmt.Sprintf(`(() => {
  const getText = (el) => {
    if (!el || typeof el.textContent !== 'string') return null;
    const txt = el.textContent.replace(/\s+/g, ' ').trim();
    return txt || null;
  };
  const result = {title: null, chapter: null};
  const container = document.querySelector(%s);
  const pattern = /cap[ií]tulo/i;

  const probeNode = (node) => {
    if (!node) return null;
    const direct = getText(node);
    if (direct && pattern.test(direct)) return direct;
    if (node.querySelector) {
      const inner = node.querySelector('span, strong, b, h1, h2, h3');
      const nested = getText(inner);
      if (nested && pattern.test(nested)) return nested;
    }
    return null;
  };

  if (container) {
    result.title = getText(container);
    let cursor = container.nextElementSibling;
    let guard = 0;
    while (cursor && guard < 6) {
      const found = probeNode(cursor);
      if (found) { result.chapter = found; break; }
      cursor = cursor.nextElementSibling;
      guard += 1;
    }
    if (!result.chapter && container.parentElement) {
      const relatives = Array.from(container.parentElement.querySelectorAll('span, div, p'));
      for (const el of relatives) {
        if (el === container) continue;
        const found = probeNode(el);
        if (found) { result.chapter = found; break; }
      }
    }
  }

  if (!result.chapter) {
    const spans = Array.from(document.querySelectorAll('span, div, h1, h2, h3'));
    for (const el of spans) {
      const txt = getText(el);
      if (txt && pattern.test(txt)) { result.chapter = txt; break; }
    }
  }

  return result;
})()`, jsStr(titleSel))
}

// chapterEntriesScript reads value/text pairs from every chapter dropdown.
func chapterEntriesScript(chapterSel string) string {
	return fmt.Sprintf(`(() => {
  const sels = Array.from(document.querySelectorAll(%s));
  const out = [];
  for (const sel of sels) {
    const opts = Array.from(sel.options || []);
    for (const opt of opts) {
      out.push({value: (opt.value || '').trim(), text: (opt.textContent || '').trim()});
    }
  }
  return out;
})()`, jsStr(chapterSel))
}
