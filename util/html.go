package util

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// PlainText returns the text content of an HTML fragment with whitespace collapsed. It stops after maxRunes runes.
func PlainText(input io.Reader, maxRunes int) string {

	tokenizer := html.NewTokenizerFragment(input, "body")
	tokenizer.SetMaxBuf(4096) // roughly the maximum number of bytes tokenized

	var b strings.Builder
	var skip = 0 // inside script or style

	for {

		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break // assuming tokenizer.Err() == io.EOF
		}

		switch tt {
		case html.StartTagToken, html.EndTagToken:
			tagNameBytes, _ := tokenizer.TagName()
			tagName := string(tagNameBytes)
			if tagName == "script" || tagName == "style" {
				if tt == html.StartTagToken {
					skip++
				} else if skip > 0 {
					skip--
				}
			}
			b.WriteString(" ") // block elements separate words
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}

		if b.Len() > 4*maxRunes+4 {
			break
		}
	}

	return Trunc(strings.Join(strings.Fields(b.String()), " "), maxRunes)
}
