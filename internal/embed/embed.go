// Package embed models the rich message attached to notifications and
// renders it as Telegram HTML.
package embed

import (
	"strings"
	"time"

	"vexbot/pkg/tgui"
)

// Color is an RGB accent color.
type Color uint32

const (
	Green  Color = 0x57f287
	Orange Color = 0xe67e22
	White  Color = 0xffffff
	Blue   Color = 0x3498db
	Grey   Color = 0x95a5a6
	Red    Color = 0xed4245
	Purple Color = 0x9b59b6
	Gold   Color = 0xf1c40f
)

// Telegram has no accent bar; the color is shown as a leading marker.
var colorMarkers = map[Color]string{
	Green:  "🟢",
	Orange: "🟠",
	White:  "⚪",
	Blue:   "🔵",
	Grey:   "⚫",
	Red:    "🔴",
	Purple: "🟣",
	Gold:   "🟡",
}

// Marker returns the emoji used for c, or "" for custom colors.
func (c Color) Marker() string { return colorMarkers[c] }

type Author struct {
	Name    string
	URL     string
	IconURL string
}

type Field struct {
	Name   string
	Value  tgui.H
	Inline bool
}

// Embed is a rich-message payload. Build it with New and the setters;
// every setter returns the embed so calls chain.
type Embed struct {
	Color       Color
	Author      *Author
	Title       string
	URL         string
	Description tgui.H
	Timestamp   *time.Time
	Fields      []Field
}

func New(c Color) *Embed { return &Embed{Color: c} }

func (e *Embed) SetAuthor(name, url, iconURL string) *Embed {
	e.Author = &Author{Name: name, URL: url, IconURL: iconURL}
	return e
}

func (e *Embed) SetTitle(title string) *Embed {
	e.Title = title
	return e
}

func (e *Embed) SetURL(url string) *Embed {
	e.URL = url
	return e
}

func (e *Embed) SetDescription(d tgui.H) *Embed {
	e.Description = d
	return e
}

func (e *Embed) SetTimestamp(t time.Time) *Embed {
	e.Timestamp = &t
	return e
}

func (e *Embed) AddField(name string, value tgui.H, inline bool) *Embed {
	e.Fields = append(e.Fields, Field{Name: name, Value: value, Inline: inline})
	return e
}

// Field returns the first field with the given name.
func (e *Embed) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

const timestampLayout = "Mon, 02 Jan 2006 15:04 MST"

// HTML renders the embed as a Telegram HTML block:
//
//	<marker> <author link>
//	<b><title link></b>
//	<description>
//
//	<b>field</b>
//	value
//	...
//	<i>timestamp</i>
func (e *Embed) HTML() tgui.H {
	if e == nil {
		return ""
	}
	var head []tgui.H
	if a := e.Author; a != nil && a.Name != "" {
		name := tgui.Esc(a.Name)
		if a.URL != "" {
			name = tgui.Link(a.Name, a.URL)
		}
		head = append(head, tgui.JoinH(" ", tgui.Raw(e.Color.Marker()), name))
	} else if m := e.Color.Marker(); m != "" {
		head = append(head, tgui.Raw(m))
	}
	if e.Title != "" {
		title := tgui.Esc(e.Title)
		if e.URL != "" {
			title = tgui.Link(e.Title, e.URL)
		}
		head = append(head, tgui.Bold(title))
	}
	if e.Description != "" {
		head = append(head, e.Description)
	}

	blocks := []tgui.H{tgui.JoinH("\n", head...)}
	for _, f := range e.Fields {
		blocks = append(blocks, tgui.JoinH("\n", tgui.B(f.Name), f.Value))
	}
	if e.Timestamp != nil {
		blocks = append(blocks, tgui.I(e.Timestamp.UTC().Format(timestampLayout)))
	}
	return tgui.H(strings.TrimSpace(tgui.JoinH("\n\n", blocks...).String()))
}
