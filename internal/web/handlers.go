package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/Ojasdixit/boltdiy/internal/errors"
	"github.com/Ojasdixit/boltdiy/internal/identity"
	"github.com/Ojasdixit/boltdiy/internal/ops"
	"github.com/Ojasdixit/boltdiy/internal/sandbox"
)

// HeaderUserID carries the caller's user id, set by the fronting identity proxy.
const HeaderUserID = "X-User-ID"

// maxBodyBytes bounds JSON request bodies before decoding.
const maxBodyBytes = 16 << 20

// Handlers contains HTTP route handlers.
type Handlers struct {
	facade    *ops.Facade
	sandboxes *sandbox.Manager
	renderer  *Renderer
}

// codeSaveRequest is the body of PUT /code.
type codeSaveRequest struct {
	Content  *string `json:"code_content"`
	Language string  `json:"language,omitempty"`
	FilePath string  `json:"file_path,omitempty"`
}

// sessionCreateRequest is the body of POST /sessions.
type sessionCreateRequest struct {
	Name string `json:"session_name"`
}

// HandleCodeSave handles PUT /code.
func (h *Handlers) HandleCodeSave(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var body codeSaveRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if body.Content == nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("code_content is required"))
		return
	}

	result, err := h.facade.SaveCode(r.Context(), p, ops.SaveCodeInput{
		Content:  *body.Content,
		Language: body.Language,
		Path:     body.FilePath,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, result)
}

// HandleCodeLoad handles GET /code?path=.
func (h *Handlers) HandleCodeLoad(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	path := r.URL.Query().Get("path")
	result, err := h.facade.LoadCode(r.Context(), p, path)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	out := map[string]any{"found": result != nil, "file_path": path}
	if result != nil {
		out["file_path"] = result.FilePath
		out["code_state"] = result
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleCodeList handles GET /code/all.
func (h *Handlers) HandleCodeList(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	items, err := h.facade.ListCode(r.Context(), p)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// HandleSessionCreate handles POST /sessions.
func (h *Handlers) HandleSessionCreate(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var body sessionCreateRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := h.facade.CreateSession(r.Context(), p, body.Name)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, result)
}

// HandleSessionList handles GET /sessions.
func (h *Handlers) HandleSessionList(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	items, err := h.facade.ListSessions(r.Context(), p)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// HandleSandboxEnsure handles POST /sandboxes/ensure. Responds 201 when a new
// sandbox was created and 200 when an existing one was reused.
func (h *Handlers) HandleSandboxEnsure(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	sb, created, err := h.sandboxes.Ensure(r.Context(), p)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	renderJSON(w, status, map[string]any{"created": created, "sandbox": sb})
}

// HandleSandboxActive handles GET /sandboxes/active.
func (h *Handlers) HandleSandboxActive(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	sb, err := h.facade.GetActiveSandbox(r.Context(), p)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	out := map[string]any{"found": sb != nil}
	if sb != nil {
		out["sandbox"] = sb
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleSandboxList handles GET /sandboxes.
func (h *Handlers) HandleSandboxList(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	items, err := h.facade.ListSandboxes(r.Context(), p)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// HandleSandboxDeactivate handles POST /sandboxes/{id}/deactivate.
func (h *Handlers) HandleSandboxDeactivate(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if err := h.facade.DeactivateSandbox(r.Context(), p, r.PathValue("id")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSandboxSweep handles POST /sandboxes/sweep.
func (h *Handlers) HandleSandboxSweep(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := h.facade.SweepExpiredSandboxes(r.Context(), p)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandlePreview handles GET /preview?path=: the saved code for path shown
// next to the caller's live sandbox, if any. It never creates a sandbox;
// the page's form posts to HandlePreviewStart for that.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	path := r.URL.Query().Get("path")
	cs, err := h.facade.LoadCode(r.Context(), p, path)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := PreviewPageData{
		PageData: PageData{
			Title:   "Preview",
			Version: h.renderer.version,
		},
		FilePath: h.facade.Config().DefaultFilePath,
		Language: h.facade.Config().DefaultLanguage,
	}
	if strings.TrimSpace(path) != "" {
		data.FilePath = path
	}
	code := ""
	if cs != nil {
		data.Saved = true
		data.FilePath = cs.FilePath
		data.Language = cs.Language
		data.LastModified = cs.LastModified
		code = cs.Content
	}
	data.RenderedCode = renderCode(code, data.Language)

	sb, err := h.facade.GetActiveSandbox(r.Context(), p)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data.Sandbox = sb

	h.renderer.renderPage(w, http.StatusOK, "preview", data)
}

// HandlePreviewStart handles POST /preview. It gets or creates the caller's
// sandbox, then sends the browser back to the read-only preview page.
func (h *Handlers) HandlePreviewStart(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Require(r.Context(), identity.Context)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	target := "/preview"
	if path := r.URL.Query().Get("path"); strings.TrimSpace(path) != "" {
		target += "?" + url.Values{"path": {path}}.Encode()
	}

	if _, err := h.sandboxes.Preview(r.Context(), p, "", nil); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// decodeBody decodes a size-limited JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequest("invalid request body: " + err.Error())
	}
	return nil
}
