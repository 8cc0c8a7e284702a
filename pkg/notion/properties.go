package notion

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// PlainText concatenates the plain text of rich text segments.
func PlainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}

// PlainValue flattens a page property to a JSON-friendly value. Unsupported
// property types return nil.
func PlainValue(prop notionapi.Property) any {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return PlainText(p.Title)
	case *notionapi.RichTextProperty:
		return PlainText(p.RichText)
	case *notionapi.URLProperty:
		return p.URL
	case *notionapi.EmailProperty:
		return p.Email
	case *notionapi.PhoneNumberProperty:
		return p.PhoneNumber
	case *notionapi.NumberProperty:
		return p.Number
	case *notionapi.CheckboxProperty:
		return p.Checkbox
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.StatusProperty:
		return p.Status.Name
	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(p.MultiSelect))
		for _, o := range p.MultiSelect {
			names = append(names, o.Name)
		}
		return names
	case *notionapi.DateProperty:
		if p.Date == nil || p.Date.Start == nil {
			return nil
		}
		return time.Time(*p.Date.Start).Format(time.RFC3339)
	case *notionapi.CreatedTimeProperty:
		return p.CreatedTime.Format(time.RFC3339)
	case *notionapi.LastEditedTimeProperty:
		return p.LastEditedTime.Format(time.RFC3339)
	}
	return nil
}

// TextValue returns the named property as trimmed text, or "" when it is
// absent or not text-like.
func TextValue(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	if s, ok := PlainValue(prop).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// TitleValue returns the text of the page's title property, whatever it is
// named.
func TitleValue(page notionapi.Page) string {
	for _, prop := range page.Properties {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			return strings.TrimSpace(PlainText(tp.Title))
		}
	}
	return ""
}
