package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// PagedData is the paginated payload nested in a backend envelope.
// Page is 1-indexed on the wire.
type PagedData[T any] struct {
	Data     []T `json:"data"`
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	LastPage int `json:"last_page"`
	Total    int `json:"total"`
}

// Meta returns the page metadata with Page translated to the 0-indexed UI page.
func (p PagedData[T]) Meta() Meta {
	return Meta{
		Page:     FromWire(p.Page),
		PerPage:  p.PerPage,
		LastPage: FromWire(p.LastPage),
		Total:    p.Total,
	}
}

// Meta is PagedData without its records. Page and LastPage are 0-indexed.
type Meta struct {
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	LastPage int `json:"last_page"`
	Total    int `json:"total"`
}

// HasNext reports whether a page follows the current one.
func (m Meta) HasNext() bool {
	return m.Page < m.LastPage
}

// HasPrevious reports whether a page precedes the current one.
func (m Meta) HasPrevious() bool {
	return m.Page > 0
}

// ToWire converts a 0-indexed UI page into the backend's 1-indexed page.
func ToWire(uiPage int) int {
	if uiPage < 0 {
		uiPage = 0
	}
	return uiPage + 1
}

// FromWire converts a backend 1-indexed page into a 0-indexed UI page.
// Missing or zero pages map to 0.
func FromWire(wirePage int) int {
	if wirePage <= 1 {
		return 0
	}
	return wirePage - 1
}

// ClampPerPage bounds a page size to (0, MaxPerPage], using DefaultPerPage
// for non-positive input.
func ClampPerPage(perPage int) int {
	if perPage <= 0 {
		return DefaultPerPage
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}

// Params holds UI pagination parameters extracted from a request.
type Params struct {
	Page    int
	PerPage int
}

// FromContext extracts 0-indexed UI pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 0 {
		page = 0
	}
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	return Params{Page: page, PerPage: ClampPerPage(perPage)}
}

// Link is a single pager link.
type Link struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// Links generates pager links for the console's list pages. extra carries the
// search and filter parameters that must survive page changes.
func Links(basePath string, m Meta, extra url.Values) []Link {
	links := []Link{{Relation: "self", URL: pageURL(basePath, m.Page, m.PerPage, extra)}}

	if m.HasNext() {
		links = append(links, Link{Relation: "next", URL: pageURL(basePath, m.Page+1, m.PerPage, extra)})
	}
	if m.HasPrevious() {
		links = append(links, Link{Relation: "previous", URL: pageURL(basePath, m.Page-1, m.PerPage, extra)})
	}
	return links
}

func pageURL(basePath string, page, perPage int, extra url.Values) string {
	q := url.Values{}
	for k, vs := range extra {
		if k == "page" || k == "per_page" {
			continue
		}
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(ClampPerPage(perPage)))
	return basePath + "?" + q.Encode()
}
