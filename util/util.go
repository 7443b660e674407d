package util

import (
	"html/template"
	"sort"
	"strconv"
)

// Pagination describes one page of a list with Total items.
type Pagination struct {
	Page    int // starting at 1
	PerPage int
	Total   int
}

// NewPagination parses a page parameter. Invalid or non-positive values select the first page.
func NewPagination(page string, perPage int) Pagination {
	p, err := strconv.Atoi(page)
	if err != nil || p < 1 {
		p = 1
	}
	return Pagination{Page: p, PerPage: perPage}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// NumPages is at least 1, so an empty list still has a page.
func (p Pagination) NumPages() int {
	if p.PerPage < 1 || p.Total <= p.PerPage {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// Pages returns the first, last and current page, and neighbours of the current page in exponentially growing steps.
func (p Pagination) Pages() []int {

	var last = p.NumPages()
	var set = map[int]struct{}{1: {}, last: {}}
	if p.Page >= 1 && p.Page <= last {
		set[p.Page] = struct{}{}
	}

	for step := 1; step < last; step *= 2 {
		if below := p.Page - step; below >= 1 {
			set[below] = struct{}{}
		}
		if above := p.Page + step; above <= last {
			set[above] = struct{}{}
		}
	}

	var pages = make([]int, 0, len(set))
	for page := range set {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

// Links renders Pages with previous and next links. The current page is rendered by current, all others by link.
func (p Pagination) Links(link func(page int, name string) string, current func(page int) string) []template.HTML {

	var links = []template.HTML{}

	if p.Page < 1 || p.Page > p.NumPages() {
		return links
	}

	if p.Page > 1 {
		links = append(links, template.HTML(link(p.Page-1, `&laquo;`)))
	}

	for _, page := range p.Pages() {
		if page == p.Page {
			links = append(links, template.HTML(current(page)))
		} else {
			links = append(links, template.HTML(link(page, strconv.Itoa(page))))
		}
	}

	if p.Page < p.NumPages() {
		links = append(links, template.HTML(link(p.Page+1, `&raquo;`)))
	}

	return links
}
