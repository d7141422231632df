package channels

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/config"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/transcript"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/widget"
)

const (
	sessionCookie = "chatbot_session"
	sessionTTL    = 24 * time.Hour

	maxUploadBytes = 32 << 20
)

// WebChatChannel serves the chat widget to a browser. All pages share one view, and
// therefore one session id and one transcript.
type WebChatChannel struct {
	*BaseChannel
	config    config.WebChatConfig
	view      *widget.View
	marker    *widget.Marker
	questions widget.QuestionSource
	hub       *hub
	server    *http.Server
	addr      string
	sessions  map[string]time.Time // token -> expiry
	mu        sync.RWMutex

	unsubscribe func()
}

type sendRequest struct {
	Message string `json:"message"`
}

type visibilityRequest struct {
	Open bool `json:"open"`
}

type wireAttachment struct {
	Name     string        `json:"name"`
	MIMEType string        `json:"mime_type"`
	Category string        `json:"category"`
	Size     int           `json:"size"`
	URL      string        `json:"url"`
	Preview  template.HTML `json:"preview"`
}

type wireMessage struct {
	Index      int             `json:"index"`
	Sender     string          `json:"sender"`
	Text       string          `json:"text"`
	HTML       template.HTML   `json:"html,omitempty"`
	Time       string          `json:"time"`
	Attachment *wireAttachment `json:"attachment,omitempty"`
}

type pollResponse struct {
	SessionID string          `json:"session_id"`
	Open      bool            `json:"open"`
	State     string          `json:"state"`
	Pending   *wireAttachment `json:"pending,omitempty"`
	Messages  []wireMessage   `json:"messages"`
}

func NewWebChatChannel(cfg config.WebChatConfig, sessionID string, backend Backend) *WebChatChannel {
	c := &WebChatChannel{
		BaseChannel: NewBaseChannel("webchat"),
		config:      cfg,
		marker:      widget.NewMarker(widget.DefaultMarker),
		questions:   backend,
		hub:         newHub(cfg.AllowOrigins),
		sessions:    make(map[string]time.Time),
	}
	c.view = widget.New(widget.Options{
		SessionID:  sessionID,
		Backend:    backend,
		Visibility: c,
		Scroller: widget.ScrollFunc(func() {
			c.hub.broadcast(wsEvent{Event: "scroll"})
		}),
	})
	c.unsubscribe = c.view.Transcript().Subscribe(func(i int, m transcript.Message) {
		wm := toWireMessage(i, m)
		c.hub.broadcast(wsEvent{Event: "message", Message: &wm})
	})
	return c
}

// View exposes the widget state the pages render.
func (c *WebChatChannel) View() *widget.View {
	return c.view
}

// SetOpen toggles the document marker and tells every open page.
func (c *WebChatChannel) SetOpen(open bool) {
	c.marker.SetOpen(open)
	c.hub.broadcast(wsEvent{Event: "visibility", Open: &open})
}

// Addr is the address the server is listening on once started.
func (c *WebChatChannel) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// authEnabled returns true when both username and password are configured.
func (c *WebChatChannel) authEnabled() bool {
	return c.config.Username != "" && c.config.Password != ""
}

func (c *WebChatChannel) createSession() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("webchat: session token: %w", err)
	}
	token := hex.EncodeToString(b)
	c.mu.Lock()
	c.sessions[token] = time.Now().Add(sessionTTL)
	c.mu.Unlock()
	return token, nil
}

func (c *WebChatChannel) validSession(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	c.mu.RLock()
	expiry, ok := c.sessions[cookie.Value]
	c.mu.RUnlock()
	return ok && time.Now().Before(expiry)
}

// requireAuth redirects to the login page. It passes everything through when auth is off.
func (c *WebChatChannel) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.authEnabled() || c.validSession(r) {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

// requireAuthAPI is like requireAuth but answers 401 JSON.
func (c *WebChatChannel) requireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.authEnabled() || c.validSession(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeJSONResponse(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.DebugCF("webchat", "Request", map[string]interface{}{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
		})
	})
}

// Handler builds the router. Start serves it; tests can mount it directly.
func (c *WebChatChannel) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/login", c.handleLoginPage)
	r.Post("/login", c.handleLogin)
	r.Get("/logout", c.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(c.requireAuth)
		r.Get("/", c.handleUI)
		r.Get("/unanswered", c.handleUnanswered)
	})

	r.Route("/chat", func(r chi.Router) {
		r.Use(c.requireAuthAPI)
		r.Post("/send", c.handleSend)
		r.Get("/poll", c.handlePoll)
		r.Get("/ws", c.handleWS)
		r.Post("/visibility", c.handleVisibility)
		r.Get("/attachment", c.handlePendingPreview)
		r.Post("/attachment", c.handleAttach)
		r.Delete("/attachment", c.handleDetach)
		r.Get("/attachment/blob", c.handlePendingBlob)
		r.Get("/attachments/{index}", c.handleAttachmentBlob)
	})

	return r
}

func (c *WebChatChannel) Start(ctx context.Context) error {
	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("webchat: listen on %s: %w", addr, err)
	}

	c.mu.Lock()
	c.addr = ln.Addr().String()
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := c.server
	c.mu.Unlock()
	c.setRunning(true)

	if c.authEnabled() {
		logger.InfoCF("webchat", "WebChat started (auth enabled)", map[string]interface{}{"addr": c.Addr()})
	} else {
		logger.InfoCF("webchat", "WebChat started (no auth)", map[string]interface{}{"addr": c.Addr()})
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("webchat", "WebChat server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	return nil
}

// Stop tears the view down, so replies still in flight are dropped, then closes the
// server and every websocket.
func (c *WebChatChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	c.view.Teardown()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}

	c.mu.RLock()
	server := c.server
	c.mu.RUnlock()

	var err error
	if server != nil {
		err = server.Shutdown(ctx)
	}
	c.hub.shutdown()
	return err
}

func (c *WebChatChannel) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if !c.authEnabled() || c.validSession(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderHTML(w, http.StatusOK, loginTmpl, loginData{})
}

func (c *WebChatChannel) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !c.authEnabled() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	isJSON := r.Header.Get("Content-Type") == "application/json"
	if isJSON {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body.Username = r.FormValue("username")
		body.Password = r.FormValue("password")
	}

	usernameMatch := subtle.ConstantTimeCompare([]byte(body.Username), []byte(c.config.Username)) == 1
	passwordMatch := subtle.ConstantTimeCompare([]byte(body.Password), []byte(c.config.Password)) == 1

	if !usernameMatch || !passwordMatch {
		logger.WarnCF("webchat", "WebChat login failed", map[string]interface{}{
			"remote": r.RemoteAddr,
		})
		if isJSON {
			writeJSONResponse(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		renderHTML(w, http.StatusUnauthorized, loginTmpl, loginData{Error: "Invalid username or password"})
		return
	}

	token, err := c.createSession()
	if err != nil {
		logger.ErrorCF("webchat", "Could not create login session", map[string]interface{}{"error": err.Error()})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL / time.Second),
	})

	if isJSON {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (c *WebChatChannel) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		c.mu.Lock()
		delete(c.sessions, cookie.Value)
		c.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (c *WebChatChannel) handleUI(w http.ResponseWriter, r *http.Request) {
	snap := c.view.Snapshot()
	data := pageData{
		SessionID: snap.SessionID,
		BodyClass: c.marker.Class(),
		Marker:    c.marker.Name(),
		Open:      snap.Open,
		Auth:      c.authEnabled(),
	}
	for _, cat := range []attachment.Category{attachment.Image, attachment.Video, attachment.Audio, attachment.Document} {
		data.Categories = append(data.Categories, categoryOption{Name: cat.String(), Accept: cat.Accept()})
	}
	renderHTML(w, http.StatusOK, pageTmpl, data)
}

func (c *WebChatChannel) handleUnanswered(w http.ResponseWriter, r *http.Request) {
	// Every page load is a fresh mount.
	listing := widget.NewListing(c.questions)
	_ = listing.Load(r.Context())

	renderHTML(w, http.StatusOK, unansweredTmpl, unansweredData{
		State: listing.State().String(),
		Error: listing.ErrorMessage(),
		Rows:  listing.Rows(),
	})
}

func (c *WebChatChannel) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	if !c.view.Send(req.Message) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	writeJSONResponse(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (c *WebChatChannel) handlePoll(w http.ResponseWriter, r *http.Request) {
	snap := c.view.Snapshot()
	resp := pollResponse{
		SessionID: snap.SessionID,
		Open:      snap.Open,
		State:     snap.State.String(),
		Pending:   pendingWire(snap.Pending),
		Messages:  make([]wireMessage, 0, len(snap.Messages)),
	}
	for i, m := range snap.Messages {
		resp.Messages = append(resp.Messages, toWireMessage(i, m))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (c *WebChatChannel) handleWS(w http.ResponseWriter, r *http.Request) {
	msgs := c.view.Transcript().Messages()
	backlog := make([]wireMessage, 0, len(msgs))
	for i, m := range msgs {
		backlog = append(backlog, toWireMessage(i, m))
	}
	c.hub.serve(w, r, backlog)
}

func (c *WebChatChannel) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	if req.Open {
		c.view.Open()
	} else {
		c.view.Close()
	}
	writeJSONResponse(w, http.StatusOK, map[string]bool{"open": c.view.IsOpen()})
}

func (c *WebChatChannel) handleAttach(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "bad multipart form"})
		return
	}

	cat, err := attachment.ParseCategory(r.FormValue("category"))
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "missing file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "could not read file"})
		return
	}

	sel := c.view.Selector()
	sel.Request(cat)
	a := attachment.FromBytes(hdr.Filename, data)
	if err := sel.Select(a, cat); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, attachment.ErrNotAccepted) {
			status = http.StatusUnsupportedMediaType
		}
		writeJSONResponse(w, status, map[string]string{"error": err.Error()})
		return
	}

	logger.DebugCF("webchat", "Attachment staged", map[string]interface{}{
		"name":     a.Name,
		"mime":     a.MIMEType,
		"category": sel.Pending().Category.String(),
		"size":     a.Size(),
	})
	writeJSONResponse(w, http.StatusOK, pendingWire(sel.Pending()))
}

func (c *WebChatChannel) handleDetach(w http.ResponseWriter, r *http.Request) {
	c.view.Selector().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (c *WebChatChannel) handlePendingPreview(w http.ResponseWriter, r *http.Request) {
	a := c.view.Selector().Pending()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if a == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, _ = io.WriteString(w, string(attachment.RenderHTML(a, pendingBlobURL)))
}

func (c *WebChatChannel) handlePendingBlob(w http.ResponseWriter, r *http.Request) {
	writeBlob(w, c.view.Selector().Pending())
}

func (c *WebChatChannel) handleAttachmentBlob(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	m, ok := c.view.Transcript().At(i)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeBlob(w, m.Attachment)
}

const pendingBlobURL = "/chat/attachment/blob"

func attachmentURL(index int) string {
	return fmt.Sprintf("/chat/attachments/%d", index)
}

func toWireAttachment(a *attachment.Attachment, url string) *wireAttachment {
	if a == nil {
		return nil
	}
	return &wireAttachment{
		Name:     a.Name,
		MIMEType: a.MIMEType,
		Category: a.Category.String(),
		Size:     a.Size(),
		URL:      url,
		Preview:  attachment.RenderHTML(a, url),
	}
}

func pendingWire(a *attachment.Attachment) *wireAttachment {
	return toWireAttachment(a, pendingBlobURL)
}

func toWireMessage(i int, m transcript.Message) wireMessage {
	wm := wireMessage{
		Index:      i,
		Sender:     string(m.Sender),
		Text:       m.Text,
		Time:       m.Time.Format("15:04:05"),
		Attachment: toWireAttachment(m.Attachment, attachmentURL(i)),
	}
	if m.Sender == transcript.Bot {
		wm.HTML = renderMarkdown(m.Text)
	}
	return wm
}

func writeBlob(w http.ResponseWriter, a *attachment.Attachment) {
	if a == nil {
		http.Error(w, "no attachment", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", a.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(a.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", a.Name))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(a.Data)
}

func writeJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.DebugCF("webchat", "Could not write JSON response", map[string]interface{}{"error": err.Error()})
	}
}

func renderHTML(w http.ResponseWriter, status int, tmpl *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		logger.ErrorCF("webchat", "Template render failed", map[string]interface{}{
			"template": tmpl.Name(),
			"error":    err.Error(),
		})
	}
}
