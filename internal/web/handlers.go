// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package web

import (
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/samber/oops"

	"github.com/yoshisuproject/simpleauth/internal/auth"
	"github.com/yoshisuproject/simpleauth/internal/config"
	"github.com/yoshisuproject/simpleauth/internal/mail"
	"github.com/yoshisuproject/simpleauth/internal/observability"
	"github.com/yoshisuproject/simpleauth/pkg/errutil"
)

// Flash messages shown after redirects. The reset notice is identical for
// known and unknown addresses so responses cannot be used to enumerate
// accounts.
const (
	msgLoginFailed    = "Invalid email or password"
	msgResetRequested = "If an account exists for that email, a password reset link has been sent."
	msgResetInvalid   = "invalid or expired password reset link"
	msgResetDone      = "Your password has been reset. Please sign in."
)

// Handlers implements the authentication endpoints.
type Handlers struct {
	svc     *auth.Service
	resets  *auth.PasswordResetService
	mailer  mail.Mailer
	cookies *CookieManager
	baseURL string
	urls    config.URLConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewHandlers creates the endpoint handlers. urls controls the redirect
// targets after login, logout, and reset; empty fields fall back to the
// built-in routes.
func NewHandlers(
	svc *auth.Service,
	resets *auth.PasswordResetService,
	mailer mail.Mailer,
	cookies *CookieManager,
	baseURL string,
	urls config.URLConfig,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Handlers, error) {
	if svc == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("auth service is required")
	}
	if resets == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("password reset service is required")
	}
	if mailer == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("mailer is required")
	}
	if cookies == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("cookie manager is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if urls.Login == "" {
		urls.Login = "/session/new"
	}
	if urls.Home == "" {
		urls.Home = "/"
	}
	if urls.Logout == "" {
		urls.Logout = urls.Login
	}
	return &Handlers{
		svc:     svc,
		resets:  resets,
		mailer:  mailer,
		cookies: cookies,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		urls:    urls,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Home renders the landing page with the viewer's authentication state.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data := pageData{Title: "Home"}
	if identity, ok := auth.IdentityFrom(r.Context()); ok {
		data.Email = identity.User.Email
	}
	h.render(w, homeTemplate, data)
}

// ShowLogin renders the login form.
func (h *Handlers) ShowLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.render(w, loginTemplate, pageData{
		Title:  "Sign in",
		Error:  r.URL.Query().Get("error"),
		Notice: r.URL.Query().Get("notice"),
	})
}

// Login authenticates the submitted credentials and starts a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	user, err := h.svc.AuthenticateUser(r.Context(), email, password)
	if err != nil {
		if errutil.Code(err) == "AUTH_INVALID_CREDENTIALS" {
			h.metrics.RecordLogin("failure")
			redirect(w, r, h.urls.Login, "error", msgLoginFailed)
			return
		}
		h.serverError(w, "login failed", err)
		return
	}

	session, err := h.svc.StartSession(r.Context(), user, clientIP(r), r.UserAgent())
	if err != nil {
		h.serverError(w, "start session failed", err)
		return
	}

	h.metrics.RecordLogin("success")
	h.cookies.Write(w, session.Token)
	http.Redirect(w, r, h.urls.Home, http.StatusSeeOther)
}

// Logout terminates the current session and clears the cookie. Requests
// without a session just get the cookie cleared.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if identity, ok := auth.IdentityFrom(r.Context()); ok {
		if err := h.svc.TerminateSession(r.Context(), identity.Session); err != nil {
			h.serverError(w, "terminate session failed", err)
			return
		}
	}
	h.cookies.Clear(w)
	http.Redirect(w, r, h.urls.Logout, http.StatusSeeOther)
}

// ShowResetRequest renders the "forgot password" form.
func (h *Handlers) ShowResetRequest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.render(w, resetRequestTemplate, pageData{
		Title:  "Reset password",
		Error:  r.URL.Query().Get("error"),
		Notice: r.URL.Query().Get("notice"),
	})
}

// RequestReset issues a reset token for the submitted email and mails the
// link. The response is the same whether or not the address is known, and
// mail failures are logged rather than surfaced.
func (h *Handlers) RequestReset(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	credential, user, err := h.resets.RequestReset(r.Context(), r.PostFormValue("email"))
	if err != nil {
		h.serverError(w, "request reset failed", err)
		return
	}

	if credential != "" {
		h.metrics.RecordPasswordReset("requested")
		resetURL := h.baseURL + "/passwords/" + url.PathEscape(credential) + "/edit"
		if err := h.mailer.SendPasswordReset(r.Context(), user.Email, resetURL); err != nil {
			errutil.LogError(h.logger, "sending password reset mail failed", err)
		}
	}

	redirect(w, r, h.urls.Login, "notice", msgResetRequested)
}

// PasswordsDispatch serves GET /passwords/:token. The router cannot hold a
// static "new" next to the ":token" wildcard, so the request form is
// dispatched here; any other value redirects to its edit form.
func (h *Handlers) PasswordsDispatch(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	token := ps.ByName("token")
	if token == "new" {
		h.ShowResetRequest(w, r, ps)
		return
	}
	http.Redirect(w, r, "/passwords/"+url.PathEscape(token)+"/edit", http.StatusSeeOther)
}

// ShowResetForm validates the token from the link and renders the new
// password form. Invalid or expired tokens bounce back to the request form.
func (h *Handlers) ShowResetForm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	token := ps.ByName("token")

	if _, err := h.resets.VerifyToken(r.Context(), token); err != nil {
		if errutil.Code(err) == "RESET_TOKEN_INVALID" {
			redirect(w, r, "/passwords/new", "error", msgResetInvalid)
			return
		}
		h.serverError(w, "verify reset token failed", err)
		return
	}

	h.render(w, resetFormTemplate, pageData{
		Title: "Choose a new password",
		Token: token,
		Error: r.URL.Query().Get("error"),
	})
}

// CompleteReset consumes the token and sets the new password.
func (h *Handlers) CompleteReset(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	token := ps.ByName("token")
	password := r.PostFormValue("password")
	confirmation := r.PostFormValue("password_confirmation")

	err := h.resets.CompleteReset(r.Context(), token, password, confirmation)
	if err == nil {
		h.metrics.RecordPasswordReset("completed")
		redirect(w, r, h.urls.Login, "notice", msgResetDone)
		return
	}

	switch errutil.Code(err) {
	case "RESET_TOKEN_INVALID":
		h.metrics.RecordPasswordReset("rejected")
		redirect(w, r, "/passwords/new", "error", msgResetInvalid)
	case "RESET_PASSWORD_MISMATCH", "RESET_PASSWORD_TOO_SHORT":
		redirect(w, r, "/passwords/"+url.PathEscape(token)+"/edit", "error", err.Error())
	default:
		h.serverError(w, "complete reset failed", err)
	}
}

// PostsIndex is a demo public page under an otherwise protected group.
func (h *Handlers) PostsIndex(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	h.render(w, postsTemplate, pageData{Title: "Posts"})
}

// PostsShow is a demo protected page; the middleware guarantees a viewer.
func (h *Handlers) PostsShow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	h.render(w, postTemplate, pageData{
		Title: "Post " + ps.ByName("id"),
		Email: identity.User.Email,
	})
}

func (h *Handlers) serverError(w http.ResponseWriter, msg string, err error) {
	errutil.LogError(h.logger, msg, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (h *Handlers) render(w http.ResponseWriter, tmpl *template.Template, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		errutil.LogError(h.logger, "rendering template failed", err)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, path, param, msg string) {
	http.Redirect(w, r, path+"?"+param+"="+url.QueryEscape(msg), http.StatusSeeOther)
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type pageData struct {
	Title  string
	Email  string
	Token  string
	Error  string
	Notice string
}

const pageShell = `<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
%s
</body>
</html>
`

func mustPage(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(strings.Replace(pageShell, "%s", body, 1)))
}

var (
	homeTemplate = mustPage("home", `<h1>Home</h1>
{{if .Email}}<p>Signed in as {{.Email}}</p><a href="/session/destroy">Sign out</a>
{{else}}<a href="/session/new">Sign in</a>{{end}}`)

	loginTemplate = mustPage("login", `<h1>Sign in</h1>
<form method="post" action="/session">
<input type="email" name="email" placeholder="Email" required>
<input type="password" name="password" placeholder="Password" required>
<button type="submit">Sign in</button>
</form>
<a href="/passwords/new">Forgot your password?</a>`)

	resetRequestTemplate = mustPage("reset_request", `<h1>Reset password</h1>
<form method="post" action="/passwords">
<input type="email" name="email" placeholder="Email" required>
<button type="submit">Send reset link</button>
</form>`)

	resetFormTemplate = mustPage("reset_form", `<h1>Choose a new password</h1>
<form method="post" action="/passwords/{{.Token}}">
<input type="password" name="password" placeholder="New password" required>
<input type="password" name="password_confirmation" placeholder="Confirm password" required>
<button type="submit">Reset password</button>
</form>`)

	postsTemplate = mustPage("posts", `<h1>Posts</h1>
<p>Public index.</p>
<a href="/posts/1">First post</a>`)

	postTemplate = mustPage("post", `<h1>{{.Title}}</h1>
<p>Visible to {{.Email}} only.</p>`)
)
