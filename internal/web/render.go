package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/platform/notification"
	"github.com/emr/console/internal/resource"
	"github.com/emr/console/pkg/pagination"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Template names.
const (
	tmplIndex  = "index"
	tmplList   = "list"
	tmplForm   = "form"
	tmplDelete = "delete"
	tmplAudit  = "audit"
)

var funcs = template.FuncMap{
	"when": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04:05")
	},
}

// Renderer implements echo.Renderer over the embedded page templates. Each
// page is parsed together with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	return newRenderer(templateFS)
}

func newRenderer(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{tmplIndex, tmplList, tmplForm, tmplDelete, tmplAudit} {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(fsys, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes the named page inside the layout.
func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}

// Fragment executes one block of the named page without the layout.
func (r *Renderer) Fragment(w io.Writer, page, block string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown template %q", page)
	}
	return t.ExecuteTemplate(w, block, data)
}

// Page is the data every template receives.
type Page struct {
	Title  string
	Nav    []NavItem
	Active string
	// Topic is the resource topic the page listens on for changes made
	// elsewhere. Empty outside list pages.
	Topic  string
	Toasts []notification.Toast
	Body   any
}

// NavItem is one entry of the resource menu.
type NavItem struct {
	Slug  string
	Label string
}

// ListPage is the body of a resource list.
type ListPage struct {
	Table   entity.Table
	Search  string
	Filters []FilterControl
	PerPage int
	Summary string
	Prev    string
	Next    string
}

// FilterControl is one filter select with its current value.
type FilterControl struct {
	Key      string
	Label    string
	Options  []entity.Option
	Selected string
}

// FormPage is the body of a create or edit form.
type FormPage struct {
	Meta     entity.Meta
	Action   string
	RecordID string
	Fields   []FormField
	Error    string
}

// FormField is a field with the value to show and its problem, if any.
type FormField struct {
	entity.Field
	Value    string
	Selected map[string]bool
	Checked  bool
	Error    string
}

// DeletePage is the body of a delete confirmation.
type DeletePage struct {
	Meta     entity.Meta
	Action   string
	RecordID string
	Details  []Detail
}

// Detail is one label/value line describing a record.
type Detail struct {
	Label string
	Value string
}

// AuditPage is the body of the mutation journal.
type AuditPage struct {
	Entries []AuditRow
	Summary string
	Prev    string
	Next    string
}

// AuditRow is one rendered journal entry.
type AuditRow struct {
	At        time.Time
	Resource  string
	Kind      string
	RecordID  string
	Outcome   string
	Message   string
	RequestID string
}

func newListPage(tbl entity.Table) ListPage {
	q := tbl.Query
	lp := ListPage{Table: tbl, Search: q.Search, PerPage: q.PerPage}
	for _, f := range tbl.Meta.Filters {
		sel := ""
		if v, ok := q.Filters[f.Key]; ok && v != nil {
			sel = fmt.Sprint(v)
		}
		lp.Filters = append(lp.Filters, FilterControl{Key: f.Key, Label: f.Label, Options: f.Options, Selected: sel})
	}

	meta := tbl.Page
	if meta.PerPage == 0 {
		meta.PerPage = q.PerPage
		meta.Page = q.Page
	}
	for _, l := range pagination.Links("/"+tbl.Meta.Slug, meta, queryExtra(q)) {
		switch l.Relation {
		case "next":
			lp.Next = l.URL
		case "previous":
			lp.Prev = l.URL
		}
	}
	if tbl.Status == resource.StatusReady || len(tbl.Rows) > 0 {
		lp.Summary = fmt.Sprintf("Page %d of %d, %d %s", meta.Page+1, meta.LastPage+1, meta.Total, plural(meta.Total, "record", "records"))
	}
	return lp
}

// queryExtra returns the search and filter parameters of q that must survive
// a page change.
func queryExtra(q resource.QueryState) url.Values {
	extra := q.RequestParams()
	extra.Del("page")
	extra.Del("per_page")
	return extra
}

// listURL is the list page showing q.
func listURL(slug string, q resource.QueryState) string {
	v := queryExtra(q)
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if len(v) == 0 {
		return "/" + slug
	}
	return "/" + slug + "?" + v.Encode()
}

func newFormPage(meta entity.Meta, action, id string, values url.Values, problems map[string]string) FormPage {
	fp := FormPage{Meta: meta, Action: action, RecordID: id}
	for _, f := range meta.Fields {
		ff := FormField{Field: f, Error: problems[f.Name]}
		switch f.Kind {
		case entity.KindMultiSelect:
			ff.Selected = map[string]bool{}
			for _, v := range append(values[f.Name], values[f.Name+"[]"]...) {
				ff.Selected[v] = true
			}
		case entity.KindBool:
			v := values.Get(f.Name)
			ff.Checked = v == "on" || v == "true" || v == "1"
		default:
			ff.Value = values.Get(f.Name)
		}
		fp.Fields = append(fp.Fields, ff)
	}
	return fp
}

func details(meta entity.Meta, values url.Values) []Detail {
	out := make([]Detail, 0, len(meta.Fields))
	for _, f := range meta.Fields {
		vals := values[f.Name]
		if len(vals) == 0 {
			continue
		}
		v := strings.Join(vals, ", ")
		switch f.Kind {
		case entity.KindSelect, entity.KindMultiSelect:
			v = joinLabels(f, vals)
		case entity.KindBool:
			v = "Yes"
		}
		out = append(out, Detail{Label: f.Label, Value: v})
	}
	return out
}

func joinLabels(f entity.Field, vals []string) string {
	labels := make([]string, len(vals))
	for i, v := range vals {
		labels[i] = optionLabel(f.Options, v)
	}
	return strings.Join(labels, ", ")
}

func optionLabel(opts []entity.Option, v string) string {
	for _, o := range opts {
		if o.Value == v {
			return o.Label
		}
	}
	return v
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
