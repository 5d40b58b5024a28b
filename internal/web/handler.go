package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/platform/websocket"
	"github.com/emr/console/internal/resource"
	"github.com/emr/console/pkg/pagination"
)

// ResourceHandler serves the list, form and delete pages of one resource.
// Every page works on the calling session's own manager.
type ResourceHandler struct {
	res       entity.Resource
	meta      entity.Meta
	sessions  *Sessions
	publisher websocket.Publisher
	renderer  *Renderer
	nav       []NavItem
	logger    zerolog.Logger
}

// NewResourceHandler creates a handler for res. publisher may be nil, in
// which case live search results are never pushed.
func NewResourceHandler(res entity.Resource, sessions *Sessions, publisher websocket.Publisher, renderer *Renderer, nav []NavItem, logger zerolog.Logger) *ResourceHandler {
	meta := res.Describe()
	return &ResourceHandler{
		res:       res,
		meta:      meta,
		sessions:  sessions,
		publisher: publisher,
		renderer:  renderer,
		nav:       nav,
		logger:    logger.With().Str("resource", meta.Slug).Logger(),
	}
}

// RegisterRoutes mounts the resource's pages under /<slug>. g must carry the
// session middleware.
func (h *ResourceHandler) RegisterRoutes(g *echo.Group) {
	base := "/" + h.meta.Slug
	g.GET(base, h.List)
	g.GET(base+"/search", h.Search)
	g.GET(base+"/new", h.New)
	g.POST(base, h.Create)
	g.GET(base+"/:id/edit", h.Edit)
	g.POST(base+"/:id", h.Update)
	g.GET(base+"/:id/delete", h.ConfirmDelete)
	g.POST(base+"/:id/delete", h.Delete)
}

func (h *ResourceHandler) manager(c echo.Context) (*Session, entity.Managed, error) {
	sess := sessionFrom(c)
	if sess == nil {
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, "no session")
	}
	return sess, h.sessions.Manager(sess, h.res), nil
}

func (h *ResourceHandler) page(sess *Session, title string, body any) Page {
	return Page{
		Title:  title,
		Nav:    h.nav,
		Active: h.meta.Slug,
		Toasts: sess.Toasts.Drain(),
		Body:   body,
	}
}

// List renders one page of records. The query comes entirely from the URL,
// so a reload or a shared link shows the same page.
func (h *ResourceHandler) List(c echo.Context) error {
	sess, m, err := h.manager(c)
	if err != nil {
		return err
	}

	q := h.queryFromRequest(c, m.Query())
	tbl, err := m.Sync(c.Request().Context(), q)
	if err != nil && !errors.Is(err, resource.ErrSuperseded) {
		h.logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("list fetch failed")
	}

	p := h.page(sess, h.meta.Plural, newListPage(tbl))
	p.Topic = websocket.ResourceTopic(h.meta.Slug)
	return c.Render(http.StatusOK, tmplList, p)
}

// Search applies a live search typed into the list page. The fetch runs
// once the debounce delay passes without another keystroke, and its results
// are pushed to the session's topic.
func (h *ResourceHandler) Search(c echo.Context) error {
	sess, m, err := h.manager(c)
	if err != nil {
		return err
	}
	h.watch(sess, m)
	m.SetSearch(strings.TrimSpace(c.QueryParam("q")))
	return c.NoContent(http.StatusAccepted)
}

// watch subscribes the session to m's fetches once.
func (h *ResourceHandler) watch(sess *Session, m entity.Managed) {
	if h.publisher == nil || h.renderer == nil {
		return
	}
	sess.watch(h.meta.Slug, func() func() {
		return m.Subscribe(func(tbl entity.Table) { h.pushResults(sess.ID, tbl) })
	})
}

// pushResults sends the re-rendered list to one session.
func (h *ResourceHandler) pushResults(sessionID string, tbl entity.Table) {
	var buf bytes.Buffer
	if err := h.renderer.Fragment(&buf, tmplList, "results", newListPage(tbl)); err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to render results")
		return
	}
	err := h.publisher.Publish(context.Background(), websocket.Event{
		Type:     websocket.EventResults,
		Topic:    websocket.SessionTopic(sessionID),
		Resource: h.meta.Slug,
		HTML:     buf.String(),
		URL:      listURL(h.meta.Slug, tbl.Query),
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to push results")
	}
}

// queryFromRequest builds the list query from the URL. A missing per_page
// keeps the session's current page size.
func (h *ResourceHandler) queryFromRequest(c echo.Context, current resource.QueryState) resource.QueryState {
	params := pagination.FromContext(c)
	if c.QueryParam("per_page") == "" {
		params.PerPage = pagination.ClampPerPage(current.PerPage)
	}

	q := resource.QueryState{
		Page:    params.Page,
		PerPage: params.PerPage,
		Search:  strings.TrimSpace(c.QueryParam("search")),
	}
	for _, f := range h.meta.Filters {
		if v := c.QueryParam(f.Key); v != "" {
			if q.Filters == nil {
				q.Filters = map[string]any{}
			}
			q.Filters[f.Key] = v
		}
	}
	return q
}

// New renders an empty create form.
func (h *ResourceHandler) New(c echo.Context) error {
	sess, _, err := h.manager(c)
	if err != nil {
		return err
	}
	body := newFormPage(h.meta, "/"+h.meta.Slug, "", url.Values{}, nil)
	return c.Render(http.StatusOK, tmplForm, h.page(sess, "New "+h.meta.Name, body))
}

// Create submits a create and returns to the list. A failed create shows
// the form again with what was entered.
func (h *ResourceHandler) Create(c echo.Context) error {
	sess, m, err := h.manager(c)
	if err != nil {
		return err
	}
	form, err := formValues(c)
	if err != nil {
		return err
	}

	if err := m.Create(c.Request().Context(), form); err != nil {
		body := newFormPage(h.meta, "/"+h.meta.Slug, "", form, fieldProblems(err))
		return c.Render(failureStatus(err), tmplForm, h.page(sess, "New "+h.meta.Name, body))
	}
	h.changed(c.Request().Context(), "")
	return c.Redirect(http.StatusSeeOther, listURL(h.meta.Slug, m.Query()))
}

// Edit renders the edit form filled from the backend's current record.
func (h *ResourceHandler) Edit(c echo.Context) error {
	sess, m, err := h.manager(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	values, err := m.Values(c.Request().Context(), id)
	if err != nil {
		return h.backToList(c, sess, m, err)
	}
	body := newFormPage(h.meta, h.recordPath(id), id, values, nil)
	return c.Render(http.StatusOK, tmplForm, h.page(sess, "Edit "+h.meta.Name, body))
}

// Update submits an update and returns to the list.
func (h *ResourceHandler) Update(c echo.Context) error {
	sess, m, err := h.manager(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	form, err := formValues(c)
	if err != nil {
		return err
	}

	if err := m.Update(c.Request().Context(), id, form); err != nil {
		body := newFormPage(h.meta, h.recordPath(id), id, form, fieldProblems(err))
		return c.Render(failureStatus(err), tmplForm, h.page(sess, "Edit "+h.meta.Name, body))
	}
	h.changed(c.Request().Context(), id)
	return c.Redirect(http.StatusSeeOther, listURL(h.meta.Slug, m.Query()))
}

// ConfirmDelete asks before deleting. Nothing is sent to the backend until
// the confirmation is posted.
func (h *ResourceHandler) ConfirmDelete(c echo.Context) error {
	sess, m, err := h.manager(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	values, err := m.Values(c.Request().Context(), id)
	if err != nil {
		return h.backToList(c, sess, m, err)
	}
	body := DeletePage{
		Meta:     h.meta,
		Action:   h.recordPath(id) + "/delete",
		RecordID: id,
		Details:  details(h.meta, values),
	}
	return c.Render(http.StatusOK, tmplDelete, h.page(sess, "Delete "+h.meta.Name, body))
}

// Delete submits a confirmed delete. Success and failure both return to the
// list, where the toast explains what happened.
func (h *ResourceHandler) Delete(c echo.Context) error {
	_, m, err := h.manager(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	if err := m.Delete(c.Request().Context(), id); err != nil {
		h.logger.Warn().Err(err).Str("record_id", id).Str("request_id", requestID(c)).Msg("delete failed")
	} else {
		h.changed(c.Request().Context(), id)
	}
	return c.Redirect(http.StatusSeeOther, listURL(h.meta.Slug, m.Query()))
}

// backToList queues err as a toast and redirects to the list.
func (h *ResourceHandler) backToList(c echo.Context, sess *Session, m entity.Managed, err error) error {
	h.logger.Warn().Err(err).Str("record_id", c.Param("id")).Str("request_id", requestID(c)).Msg("load record failed")
	sess.Toasts.Notify(resource.LevelError, resource.UserMessage(err))
	return c.Redirect(http.StatusSeeOther, listURL(h.meta.Slug, m.Query()))
}

// changed tells other open tabs that the list has changed.
func (h *ResourceHandler) changed(ctx context.Context, id string) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.Publish(ctx, websocket.Event{
		Type:     websocket.EventChanged,
		Topic:    websocket.ResourceTopic(h.meta.Slug),
		Resource: h.meta.Slug,
		RecordID: id,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to publish change")
	}
}

func (h *ResourceHandler) recordPath(id string) string {
	return "/" + h.meta.Slug + "/" + url.PathEscape(id)
}

func formValues(c echo.Context) (url.Values, error) {
	form, err := c.FormParams()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	return form, nil
}

// fieldProblems returns the per-field messages carried by a validation
// failure.
func fieldProblems(err error) map[string]string {
	var ve *resource.ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

func failureStatus(err error) int {
	switch resource.Classify(err) {
	case resource.KindValidation:
		return http.StatusUnprocessableEntity
	case resource.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func requestID(c echo.Context) string {
	id, _ := c.Get("request_id").(string)
	return id
}
