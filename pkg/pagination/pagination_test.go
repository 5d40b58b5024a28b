package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.PerPage != DefaultPerPage {
		t.Errorf("expected default per_page %d, got %d", DefaultPerPage, p.PerPage)
	}
	if p.Page != 0 {
		t.Errorf("expected default page 0, got %d", p.Page)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&per_page=50", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.PerPage != 50 {
		t.Errorf("expected per_page 50, got %d", p.PerPage)
	}
}

func TestFromContext_MaxPerPage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?per_page=500", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.PerPage != MaxPerPage {
		t.Errorf("expected per_page capped at %d, got %d", MaxPerPage, p.PerPage)
	}
}

func TestFromContext_NegativePage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=-5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 0 {
		t.Errorf("expected page 0 for negative input, got %d", p.Page)
	}
}

func TestWireTranslation(t *testing.T) {
	tests := []struct {
		name string
		ui   int
		wire int
	}{
		{"first page", 0, 1},
		{"second page", 1, 2},
		{"tenth page", 9, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToWire(tt.ui); got != tt.wire {
				t.Errorf("ToWire(%d) = %d, want %d", tt.ui, got, tt.wire)
			}
			if got := FromWire(tt.wire); got != tt.ui {
				t.Errorf("FromWire(%d) = %d, want %d", tt.wire, got, tt.ui)
			}
		})
	}
}

func TestWireTranslation_OutOfRange(t *testing.T) {
	if got := ToWire(-3); got != 1 {
		t.Errorf("ToWire(-3) = %d, want 1", got)
	}
	if got := FromWire(0); got != 0 {
		t.Errorf("FromWire(0) = %d, want 0", got)
	}
}

func TestClampPerPage(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultPerPage},
		{-1, DefaultPerPage},
		{25, 25},
		{MaxPerPage + 1, MaxPerPage},
	}
	for _, tt := range tests {
		if got := ClampPerPage(tt.in); got != tt.want {
			t.Errorf("ClampPerPage(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPagedData_Meta(t *testing.T) {
	raw := `{"data":[{"id":1},{"id":2}],"page":2,"per_page":2,"last_page":3,"total":6}`
	var p PagedData[map[string]any]
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	m := p.Meta()
	if m.Page != 1 {
		t.Errorf("expected ui page 1, got %d", m.Page)
	}
	if m.LastPage != 2 {
		t.Errorf("expected ui last page 2, got %d", m.LastPage)
	}
	if m.Total != 6 {
		t.Errorf("expected total 6, got %d", m.Total)
	}
	if !m.HasNext() || !m.HasPrevious() {
		t.Error("expected both next and previous on a middle page")
	}
}

func TestLinks_FirstPage(t *testing.T) {
	m := Meta{Page: 0, PerPage: 10, LastPage: 2, Total: 25}
	links := Links("/patients", m, url.Values{"search": {"john"}})

	linkMap := make(map[string]string)
	for _, l := range links {
		linkMap[l.Relation] = l.URL
	}

	if _, ok := linkMap["previous"]; ok {
		t.Error("did not expect 'previous' link on first page")
	}
	expectedNext := "/patients?page=1&per_page=10&search=john"
	if linkMap["next"] != expectedNext {
		t.Errorf("expected next %q, got %q", expectedNext, linkMap["next"])
	}
}

func TestLinks_LastPage(t *testing.T) {
	m := Meta{Page: 2, PerPage: 10, LastPage: 2, Total: 25}
	links := Links("/patients", m, url.Values{"page": {"2"}})

	linkMap := make(map[string]string)
	for _, l := range links {
		linkMap[l.Relation] = l.URL
	}

	if _, ok := linkMap["next"]; ok {
		t.Error("did not expect 'next' link on last page")
	}
	expectedPrev := "/patients?page=1&per_page=10"
	if linkMap["previous"] != expectedPrev {
		t.Errorf("expected previous %q, got %q", expectedPrev, linkMap["previous"])
	}
}

func TestLinks_NoResults(t *testing.T) {
	links := Links("/patients", Meta{PerPage: 10}, nil)

	if len(links) != 1 {
		t.Fatalf("expected 1 link (self only), got %d", len(links))
	}
	if links[0].Relation != "self" {
		t.Errorf("expected 'self', got %q", links[0].Relation)
	}
}
