package publish

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/net/html"
)

const excerptWidth = 200

// Excerpt reduces an HTML summary to plain text that fits in width display
// cells. Wide (CJK) characters count as two cells.
func Excerpt(summary string, width int) string {
	text := strings.Join(strings.Fields(htmlText(summary)), " ")
	if width <= 0 {
		return text
	}
	return runewidth.Truncate(text, width, "...")
}

func htmlText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var sb strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li":
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				sb.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(tokenizer.Text())
			}
		}
	}
}
