package tgui

import (
	"html"
	"strings"
)

// H is HTML that is safe to pass to Telegram with ParseMode="HTML".
// Values of type H are already escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

// Raw marks a string as already-safe HTML. Use sparingly.
func Raw(s string) H { return H(s) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func I(s string) H    { return wrap("i", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }

// Bold and Italic wrap markup that is already safe, such as a link.
func Bold(h H) H   { return wrap("b", h) }
func Italic(h H) H { return wrap("i", h) }

// Link builds an HTML link.
func Link(text, url string) H {
	return LinkH(Esc(text), url)
}

// LinkH links safe markup.
func LinkH(inner H, url string) H {
	return H(`<a href="` + html.EscapeString(url) + `">` + inner.String() + `</a>`)
}

// Unescape decodes HTML entities, for text that arrives entity-encoded
// from upstream data.
func Unescape(s string) string { return html.UnescapeString(s) }

// JoinH joins safe HTML parts with sep, skipping blank parts.
func JoinH(sep string, parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) == "" {
			continue
		}
		ss = append(ss, p.String())
	}
	return H(strings.Join(ss, sep))
}
