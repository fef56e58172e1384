package browser

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// findFn resolves a selector to its matching elements, applying the
// optional text filter.
const findFn = `function(css, text) {
	let nodes = Array.from(document.querySelectorAll(css));
	if (text) {
		nodes = nodes.filter(n => (n.textContent || '').includes(text));
	}
	return nodes;
}`

const visibleFn = `function(n) {
	const style = window.getComputedStyle(n);
	if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') {
		return false;
	}
	const rect = n.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

const (
	countTmpl   = `(%s)(%s, %s).length`
	visibleTmpl = `(%s)(%s, %s).some(%s)`
	textsTmpl   = `(%s)(%s, %s).map(n => n.textContent || '')`
	firstTmpl   = `(function(nodes) { return nodes.length ? (nodes[0].textContent || '') : null; })((%s)(%s, %s))`
	pageText    = `document.body ? document.body.innerText : ''`
)

func quote(s string) string {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func countScript(sel Selector) string {
	return fmt.Sprintf(countTmpl, findFn, quote(sel.CSS), quote(sel.Text))
}

func visibleScript(sel Selector) string {
	return fmt.Sprintf(visibleTmpl, findFn, quote(sel.CSS), quote(sel.Text), visibleFn)
}

func textsScript(sel Selector) string {
	return fmt.Sprintf(textsTmpl, findFn, quote(sel.CSS), quote(sel.Text))
}

func firstTextScript(sel Selector) string {
	return fmt.Sprintf(firstTmpl, findFn, quote(sel.CSS), quote(sel.Text))
}
