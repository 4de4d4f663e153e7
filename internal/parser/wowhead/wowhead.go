// Package wowhead registers the parsers for the Wowhead database site. Each
// parser turns an entry page into SQL statements for the matching template
// table; importing the package for side effects makes them discoverable.
package wowhead

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/parser"
)

// Display names of the registered parsers.
const (
	NPCName    = "NPC names"
	ItemName   = "Item names"
	ObjectName = "Object names"
	QuestName  = "Quest texts"
)

func init() {
	parser.MustRegister(NPCName, func() parser.Parser { return NewNPCParser() })
	parser.MustRegister(ItemName, func() parser.Parser { return NewItemParser() })
	parser.MustRegister(ObjectName, func() parser.Parser { return NewObjectParser() })
	parser.MustRegister(QuestName, func() parser.Parser { return NewQuestParser() })
}

var (
	innerWhitespace = regexp.MustCompile(`\s+`)
	qualityClass    = regexp.MustCompile(`\bq([0-7])\b`)
)

// page is the subset of an entry page every parser reads.
type page struct {
	doc   *goquery.Document
	title string
}

// loadPage parses the block and extracts the entry heading. ok is false when
// the block failed, is not HTML, or carries no heading (the site's "not
// found" page).
func loadPage(block crawler.Block) (page, bool) {
	if !block.FetchSucceeded || len(block.Content) == 0 {
		return page{}, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(block.Content))
	if err != nil {
		return page{}, false
	}
	title := cleanText(doc.Find("h1.heading-size-1").First().Text())
	if title == "" {
		title = titleFromHead(doc.Find("title").First().Text())
	}
	if title == "" {
		return page{}, false
	}
	return page{doc: doc, title: title}, true
}

// titleFromHead strips the " - Site" suffixes from a <title>.
func titleFromHead(raw string) string {
	raw = cleanText(raw)
	if i := strings.Index(raw, " - "); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

func (p page) meta(name string) string {
	content, _ := p.doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First().Attr("content")
	return cleanText(content)
}

func cleanText(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}

// sqlString quotes s as a MySQL string literal.
func sqlString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\x00", "")
	return "'" + r.Replace(s) + "'"
}
