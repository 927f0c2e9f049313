package robot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrElementNotFound signals that a locator did not resolve to a visible element.
var ErrElementNotFound = errors.New("element not found")

// IDXPath returns the XPath selecting the element with the given id.
func IDXPath(id string) string {
	return fmt.Sprintf(`//*[@id="%s"]`, id)
}

// ResearchReportLocator finds the first anchor whose normalized text mentions
// a research report and returns an XPath for it.
func ResearchReportLocator(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	var id string
	doc.Find("a[id]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(a.Text())), " ", "_")
		if strings.Contains(text, "research") || strings.Contains(text, "report") {
			id, _ = a.Attr("id")
			return false
		}
		return true
	})
	if id == "" {
		return "", fmt.Errorf("research report link: %w", ErrElementNotFound)
	}
	return IDXPath(id), nil
}

// CSVLocator finds the first image whose title mentions CSV and returns an
// XPath for it.
func CSVLocator(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	var id string
	doc.Find("img[id]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		title, _ := img.Attr("title")
		if strings.Contains(strings.ToLower(title), "csv") {
			id, _ = img.Attr("id")
			return false
		}
		return true
	})
	if id == "" {
		return "", fmt.Errorf("csv export button: %w", ErrElementNotFound)
	}
	return IDXPath(id), nil
}
