package util

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPages(t *testing.T) {
	tests := []struct {
		page, total int
		want        []int
	}{
		{1, 0, []int{1}},
		{1, 10, []int{1}},
		{1, 30, []int{1, 2, 3}},
		{5, 100, []int{1, 3, 4, 5, 6, 7, 9, 10}},
	}
	for _, tt := range tests {
		p := Pagination{Page: tt.page, PerPage: 10, Total: tt.total}
		assert.Equal(t, tt.want, p.Pages())
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		param      string
		wantPage   int
		wantOffset int
	}{
		{"1", 1, 0},
		{"3", 3, 40},
		{"0", 1, 0},
		{"-2", 1, 0},
		{"abc", 1, 0},
	}
	for _, tt := range tests {
		p := NewPagination(tt.param, 20)
		assert.Equal(t, tt.wantPage, p.Page, tt.param)
		assert.Equal(t, tt.wantOffset, p.Offset(), tt.param)
	}
}

func TestPaginationLinks(t *testing.T) {
	link := func(page int, name string) string { return "<" + name + ">" }
	current := func(page int) string { return "[current]" }

	p := Pagination{Page: 2, PerPage: 10, Total: 25}
	assert.Equal(t, 3, p.NumPages())
	links := p.Links(link, current)
	assert.Len(t, links, 5) // previous, 1, 2, 3, next
	assert.Equal(t, "[current]", string(links[2]))

	p.Page = 4
	assert.Empty(t, p.Links(link, current))
}

func TestTrunc(t *testing.T) {
	assert.Equal(t, "Grüß", Trunc("  Grüße  ", 4))
	assert.Equal(t, "abc", Trunc("abc", 10))
	assert.Equal(t, "ab", Trunc("ab cd", 3))
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"tags removed", "<h1>Title</h1><p>Some <em>text</em></p>", 100, "Title Some text"},
		{"script skipped", "<p>a</p><script>alert(1)</script><p>b</p>", 100, "a b"},
		{"truncated", "<p>hello world</p>", 5, "hello"},
		{"empty", "", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(strings.NewReader(tt.input), tt.max))
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	assert.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("loud")
	assert.Error(t, err)
}

func TestHandlePrefix(t *testing.T) {
	mux := http.NewServeMux()
	HandlePrefix(mux, "/backend/", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/login":
			http.Redirect(w, req, "/queue/1", http.StatusSeeOther)
		case "/external":
			http.Redirect(w, req, "//example.org/", http.StatusSeeOther)
		default:
			w.Write([]byte(req.URL.Path))
		}
	}))

	tests := []struct {
		path         string
		wantCode     int
		wantLocation string
		wantBody     string
	}{
		{"/backend/login", http.StatusSeeOther, "/backend/queue/1", ""},
		{"/backend/external", http.StatusSeeOther, "//example.org/", ""},
		{"/backend", http.StatusMovedPermanently, "/backend/", ""},
		{"/backend/objects/article", http.StatusOK, "", "/objects/article"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.wantCode, rec.Code, tt.path)
		assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"), tt.path)
		if tt.wantBody != "" {
			assert.Equal(t, tt.wantBody, rec.Body.String(), tt.path)
		}
	}
}
