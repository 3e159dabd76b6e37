package telegram

import (
	"html"
	"sort"
	"strings"
	"unicode/utf16"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// renderEntities turns formatted post text into Markdown. Entity offsets
// are counted in UTF-16 code units. On any conversion error the plain text
// is returned unchanged.
func renderEntities(text string, entities []tgbotapi.MessageEntity) string {
	if text == "" || len(entities) == 0 {
		return text
	}
	markup, ok := entitiesToHTML(text, entities)
	if !ok {
		return text
	}
	md, err := htmltomarkdown.ConvertString(markup)
	if err != nil {
		return text
	}
	return strings.TrimSpace(md)
}

func entitiesToHTML(text string, entities []tgbotapi.MessageEntity) (string, bool) {
	units := utf16.Encode([]rune(text))
	sorted := append([]tgbotapi.MessageEntity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Offset != sorted[j].Offset {
			return sorted[i].Offset < sorted[j].Offset
		}
		return sorted[i].Length > sorted[j].Length
	})

	opens := map[int][]string{}
	closes := map[int][]string{}
	bounds := map[int]struct{}{0: {}, len(units): {}}
	applied := 0
	for _, e := range sorted {
		if e.Length <= 0 || e.Offset < 0 || e.Offset+e.Length > len(units) {
			continue
		}
		open, closeTag, ok := entityTags(e)
		if !ok {
			continue
		}
		end := e.Offset + e.Length
		opens[e.Offset] = append(opens[e.Offset], open)
		closes[end] = append([]string{closeTag}, closes[end]...)
		bounds[e.Offset] = struct{}{}
		bounds[end] = struct{}{}
		applied++
	}
	if applied == 0 {
		return "", false
	}

	points := make([]int, 0, len(bounds))
	for p := range bounds {
		points = append(points, p)
	}
	sort.Ints(points)

	var b strings.Builder
	for i, p := range points {
		for _, tag := range closes[p] {
			b.WriteString(tag)
		}
		for _, tag := range opens[p] {
			b.WriteString(tag)
		}
		if i+1 < len(points) {
			segment := string(utf16.Decode(units[p:points[i+1]]))
			b.WriteString(strings.ReplaceAll(html.EscapeString(segment), "\n", "<br>"))
		}
	}
	return "<p>" + b.String() + "</p>", true
}

func entityTags(e tgbotapi.MessageEntity) (string, string, bool) {
	switch e.Type {
	case "bold":
		return "<strong>", "</strong>", true
	case "italic":
		return "<em>", "</em>", true
	case "underline":
		return "<u>", "</u>", true
	case "strikethrough":
		return "<del>", "</del>", true
	case "code":
		return "<code>", "</code>", true
	case "pre":
		if e.Language != "" {
			return `<pre><code class="language-` + html.EscapeString(e.Language) + `">`, "</code></pre>", true
		}
		return "<pre><code>", "</code></pre>", true
	case "text_link":
		if strings.TrimSpace(e.URL) == "" {
			return "", "", false
		}
		return `<a href="` + html.EscapeString(e.URL) + `">`, "</a>", true
	default:
		return "", "", false
	}
}
