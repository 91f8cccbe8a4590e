package firstview

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"fvdownloader/pkg/models"

	"github.com/PuerkitoBio/goquery"
)

// Thumbnail is one listing entry
type Thumbnail struct {
	URL string
	// DetailURL links to the picture's own page, "" when the thumbnail is not a link
	DetailURL string
}

// Page is one parsed listing page
type Page struct {
	URL        string
	Info       models.CollectionInfo
	Thumbnails []Thumbnail
	// NextURL is "" when there is no enabled next-page link
	NextURL string
}

// ParsePage extracts the collection metadata, thumbnails and next link
// from a listing page fetched from pageURL
func ParsePage(doc *goquery.Document, pageURL string) *Page {
	base, _ := url.Parse(pageURL)

	page := &Page{
		URL:  pageURL,
		Info: parseInfo(doc),
	}

	doc.Find(".picture").Each(func(_ int, sel *goquery.Selection) {
		src := imageSource(sel)
		if src == "" {
			return
		}
		thumb := Thumbnail{URL: resolve(base, src)}
		if href, ok := sel.Closest("a").Attr("href"); ok && !isDeadHref(href) {
			thumb.DetailURL = resolve(base, href)
		}
		page.Thumbnails = append(page.Thumbnails, thumb)
	})

	page.NextURL = findNext(doc, base)
	return page
}

// ParseDetail returns the absolute URL of the runway image on a picture's
// detail page
func ParseDetail(doc *goquery.Document, pageURL string) (string, error) {
	base, _ := url.Parse(pageURL)
	src, ok := doc.Find(`img[alt*="ImageID:"]`).First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", fmt.Errorf("no runway image on %s", pageURL)
	}
	return resolve(base, src), nil
}

func parseInfo(doc *goquery.Document) models.CollectionInfo {
	var info models.CollectionInfo

	title := strings.TrimSpace(doc.Find(".pageTitle").First().Text())
	if title != "" {
		parts := strings.Split(title, " - ")
		at := func(i int) string {
			if i < len(parts) {
				return strings.TrimSpace(parts[i])
			}
			return ""
		}
		info.Designer = at(0)
		info.Album = at(2)
		info.Gender = at(3)
	}

	season := strings.TrimSpace(doc.Find(".season").First().Text())
	info.Season = strings.Join(strings.Fields(strings.ReplaceAll(season, " / ", " ")), " ")

	if fields := strings.Fields(doc.Find(".info").First().Text()); len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
			info.DeclaredTotal = n
		}
	}

	return info
}

func imageSource(sel *goquery.Selection) string {
	if goquery.NodeName(sel) != "img" {
		sel = sel.Find("img").First()
	}
	for _, attr := range []string{"src", "data-src"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func findNext(doc *goquery.Document, base *url.URL) string {
	var next string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !isNextLink(a) {
			return true
		}
		if isDisabled(a) {
			return false
		}
		href, _ := a.Attr("href")
		next = resolve(base, href)
		return false
	})
	return next
}

func isNextLink(a *goquery.Selection) bool {
	if strings.EqualFold(strings.TrimSpace(a.Text()), "next") {
		return true
	}
	rel, _ := a.Attr("rel")
	for _, r := range strings.Fields(rel) {
		if strings.EqualFold(r, "next") {
			return true
		}
	}
	return false
}

func isDisabled(a *goquery.Selection) bool {
	if a.HasClass("disabled") {
		return true
	}
	if v, _ := a.Attr("aria-disabled"); strings.EqualFold(v, "true") {
		return true
	}
	href, ok := a.Attr("href")
	return !ok || isDeadHref(href)
}

func isDeadHref(href string) bool {
	href = strings.TrimSpace(href)
	return href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:")
}
