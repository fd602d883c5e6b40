package web

import (
	"net/http"
	"strconv"

	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	deps      ops.Deps
	container string
	renderer  *Renderer
}

func (h *Handlers) page(title, nav string) PageData {
	return PageData{
		Title:     title,
		Version:   h.renderer.version,
		Container: h.container,
		Nav:       nav,
	}
}

// HandleList handles GET /scripts: every container entry in order.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	result, err := ops.List(r.Context(), h.deps, ops.ListInput{ContainerPath: h.container})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData:   h.page("Scripts", "scripts"),
		Entries:    result.Entries,
		Records:    result.Records,
		Opaque:     result.Opaque,
		Undecoded:  result.Undecoded,
		Collisions: result.Collisions,
	})
}

// HandleDetail handles GET /scripts/{index}: one script's source.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("index must be a non-negative integer"))
		return
	}

	shown, err := ops.Show(r.Context(), h.deps, ops.ShowInput{ContainerPath: h.container, Index: &index})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, shown)
		return
	}

	prev, next := h.neighbors(r, index)
	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:     h.page(shown.Name, "scripts"),
		Script:       shown,
		RenderedHTML: renderSource(shown.Source),
		Lines:        countLines(shown.Source),
		Prev:         prev,
		Next:         next,
	})
}

// neighbors finds the closest record positions before and after index.
func (h *Handlers) neighbors(r *http.Request, index int) (prev, next int) {
	prev, next = -1, -1
	listing, err := ops.List(r.Context(), h.deps, ops.ListInput{ContainerPath: h.container})
	if err != nil {
		return prev, next
	}
	for _, e := range listing.Entries {
		if e.Kind != ops.KindRecord {
			continue
		}
		if e.Index < index {
			prev = e.Index
		}
		if e.Index > index {
			next = e.Index
			break
		}
	}
	return prev, next
}

// HandleSearch handles GET /scripts/search?q=: scripts defining a method.
// With no match the page lists every defined identifier instead.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	data := SearchPageData{
		PageData: h.page("Search", "search"),
		Query:    query,
		Precise:  parseBoolParam(r, "precise"),
		HasQuery: query != "",
	}

	if query == "" {
		h.renderer.renderPage(w, r, "search", data)
		return
	}

	result, err := ops.Search(r.Context(), h.deps, ops.SearchInput{
		ContainerPath: h.container,
		Identifier:    query,
		Precise:       data.Precise,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data.Matches = result.Matches
	data.Identifiers = result.Identifiers
	data.Skipped = result.Skipped
	h.renderer.renderPage(w, r, "search", data)
}

// HandleHistory handles GET /history: journaled runs on this container.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	data := HistoryPageData{
		PageData: h.page("History", "history"),
		Enabled:  h.deps.DB != nil,
	}

	if data.Enabled {
		result, err := ops.History(h.deps, ops.HistoryInput{
			ContainerPath: h.container,
			Limit:         parseIntParam(r, "limit", 50),
		})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		data.Runs = result.Runs
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, data.Runs)
		return
	}

	h.renderer.renderPage(w, r, "history", data)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1" || s == "on"
}

func countLines(src string) int {
	if src == "" {
		return 0
	}
	n := 1
	for i := 0; i < len(src)-1; i++ {
		if src[i] == '\n' {
			n++
		}
	}
	return n
}
