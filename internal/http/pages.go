package http

import (
	"html/template"
	"log/slog"
	"net/http"

	"authgate/internal/auth"
)

// PageHandler renders the minimal HTML surface: the login page and the
// protected page.
type PageHandler struct {
	logger *slog.Logger
}

// NewPageHandler creates a handler.
func NewPageHandler(logger *slog.Logger) *PageHandler {
	return &PageHandler{logger: logger}
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><title>authgate</title></head>
<body>
{{if .Identity}}
<p>Signed in as {{.Identity.DisplayName}}.</p>
<p><a href="/protected">Protected area</a></p>
<form method="post" action="/auth/logout"><button type="submit">Sign out</button></form>
{{else}}
<p><a href="/auth/login">Login with Google</a></p>
{{end}}
</body>
</html>
`))

var protectedTemplate = template.Must(template.New("protected").Parse(`<!DOCTYPE html>
<html>
<head><title>Protected</title></head>
<body>
<h1>Hello, {{.DisplayName}}</h1>
{{if .Emails}}<p>Email: {{index .Emails 0}}</p>{{end}}
<form method="post" action="/auth/logout"><button type="submit">Sign out</button></form>
</body>
</html>
`))

// Home handles GET /. It shows a login link, or who is signed in.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	data := struct {
		Identity *auth.Identity
	}{}
	if sess != nil {
		data.Identity = sess.Identity
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homeTemplate.Execute(w, data); err != nil {
		h.logger.Error("render home", "error", err)
	}
}

// Protected handles GET /protected, behind the auth guard.
func (h *PageHandler) Protected(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		// The guard should make this unreachable.
		writeError(w, http.StatusInternalServerError, "no identity in context")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := protectedTemplate.Execute(w, identity); err != nil {
		h.logger.Error("render protected", "error", err)
	}
}
