// Package ui serves the server-rendered login page and dashboard.
package ui

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vidcast/internal/playlist"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// LoadTemplates parses the embedded HTML templates.
func LoadTemplates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.html")
}

type UI struct {
	auth    *auth.Service
	store   db.Store
	cookies middleware.CookieConfig
	tmpl    *template.Template
	now     func() time.Time
}

func New(svc *auth.Service, store db.Store, cookies middleware.CookieConfig) (*UI, error) {
	tmpl, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	if cookies.TTL <= 0 {
		cookies.TTL = svc.SessionTTL()
	}
	return &UI{auth: svc, store: store, cookies: cookies, tmpl: tmpl, now: time.Now}, nil
}

// Register mounts the pages. loginLimit, when set, guards POST /login.
func (u *UI) Register(r gin.IRoutes, loginLimit gin.HandlerFunc) {
	static, _ := fs.Sub(staticFS, "static")

	r.GET("/login", u.loginPage)
	if loginLimit != nil {
		r.POST("/login", loginLimit, u.loginSubmit)
	} else {
		r.POST("/login", u.loginSubmit)
	}
	r.GET("/logout", u.logoutPage)
	r.POST("/logout", u.logout)
	r.GET("/", u.dashboard)
	r.StaticFS("/static", http.FS(static))
	r.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

// SafeNext keeps post-login redirects on this site.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") ||
		strings.HasPrefix(next, `/\`) || strings.ContainsAny(next, "\r\n") {
		return "/"
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return "/"
	}
	if parsed.Path == "/login" || parsed.Path == "/logout" {
		return "/"
	}
	return next
}

type loginData struct {
	Error    string
	Next     string
	Username string
}

func (u *UI) render(c *gin.Context, code int, name string, data any) {
	c.Render(code, render.HTML{Template: u.tmpl, Name: name, Data: data})
}

// GET /login
func (u *UI) loginPage(c *gin.Context) {
	next := SafeNext(c.Query("next"))
	if token, _ := middleware.SessionToken(c); token != "" {
		if p, err := u.auth.VerifySession(c.Request.Context(), token); err == nil && p != nil {
			c.Redirect(http.StatusFound, next)
			return
		}
	}
	u.render(c, http.StatusOK, "login.html", loginData{Next: next})
}

func loginMessage(err error) string {
	switch errs.KindOf(err) {
	case errs.KindNotFound, errs.KindInvalidCredentials:
		return "Invalid username or password."
	case errs.KindAccountDisabled:
		return "This account has been disabled."
	}
	return "Sign in is unavailable right now. Please try again."
}

// POST /login
func (u *UI) loginSubmit(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	next := SafeNext(c.PostForm("next"))
	data := loginData{Next: next, Username: username}

	if username == "" || password == "" {
		data.Error = "Username and password are required."
		u.render(c, http.StatusBadRequest, "login.html", data)
		return
	}

	user, err := u.auth.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		log.Info().Str("login", username).Str("ip", c.ClientIP()).Str("reason", errs.KindOf(err).String()).
			Msg("[ui] login refused")
		data.Error = loginMessage(err)
		status := http.StatusUnauthorized
		if k := errs.KindOf(err); k != errs.KindNotFound && k != errs.KindInvalidCredentials && k != errs.KindAccountDisabled {
			status = http.StatusServiceUnavailable
		}
		u.render(c, status, "login.html", data)
		return
	}

	sess, err := u.auth.CreateSession(c.Request.Context(), user.ID, c.ClientIP(), c.Request.UserAgent(), 0)
	if err != nil {
		log.Error().Err(err).Int("user_id", user.ID).Msg("[ui] could not create session")
		data.Error = loginMessage(err)
		u.render(c, http.StatusServiceUnavailable, "login.html", data)
		return
	}
	middleware.SetSessionCookie(c, u.cookies, sess.Token)
	log.Info().Int("user_id", user.ID).Str("ip", c.ClientIP()).Msg("[ui] user logged in")
	c.Redirect(http.StatusFound, next)
}

// GET /logout only asks for confirmation; the session is revoked by the POST.
func (u *UI) logoutPage(c *gin.Context) {
	if token, _ := middleware.SessionToken(c); token == "" {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	u.render(c, http.StatusOK, "logout.html", nil)
}

// POST /logout
func (u *UI) logout(c *gin.Context) {
	if token, _ := middleware.SessionToken(c); token != "" {
		if _, err := u.auth.RevokeSession(c.Request.Context(), token); err != nil {
			log.Error().Err(err).Msg("[ui] logout: could not revoke session")
		}
	}
	middleware.ClearSessionCookie(c, u.cookies)
	c.Redirect(http.StatusFound, "/login")
}

type deviceRow struct {
	DeviceID  string
	Name      string
	StoreCode string
	LastSeen  string
	Active    bool
	Online    bool
}

type dashboardData struct {
	Username        string
	IsAdmin         bool
	Devices         int
	Online          int
	Videos          int
	Playlists       int
	ActivePlaylists int
	Stores          int
	DeviceRows      []deviceRow
}

// onlineWindow matches the device list in the API
const onlineWindow = 10 * time.Minute

// GET /
func (u *UI) dashboard(c *gin.Context) {
	principal, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	ctx := c.Request.Context()
	now := u.now()

	devices, err := u.store.ListDevices(ctx, db.DeviceFilter{})
	if err != nil {
		u.fail(c, err)
		return
	}
	videos, err := u.store.ListVideos(ctx, db.VideoFilter{Now: now})
	if err != nil {
		u.fail(c, err)
		return
	}
	playlists, err := u.store.ListPlaylists(ctx, db.PlaylistFilter{Now: now})
	if err != nil {
		u.fail(c, err)
		return
	}
	stores, err := u.store.CountStores(ctx, "")
	if err != nil {
		u.fail(c, err)
		return
	}

	data := dashboardData{
		Username:  principal.Username,
		IsAdmin:   principal.IsAdmin,
		Devices:   len(devices),
		Videos:    len(videos),
		Playlists: len(playlists),
		Stores:    stores,
	}
	for i := range playlists {
		if playlist.IsPlaylistActive(&playlists[i], now) {
			data.ActivePlaylists++
		}
	}
	for _, d := range devices {
		row := deviceRow{DeviceID: d.DeviceID, Name: d.Name, Active: d.IsActive, LastSeen: "never"}
		if d.StoreCode != nil {
			row.StoreCode = *d.StoreCode
		}
		if d.LastSeen != nil {
			row.LastSeen = d.LastSeen.Local().Format("2006-01-02 15:04")
			row.Online = now.Sub(*d.LastSeen) <= onlineWindow
		}
		if row.Online && row.Active {
			data.Online++
		}
		data.DeviceRows = append(data.DeviceRows, row)
	}
	u.render(c, http.StatusOK, "dashboard.html", data)
}

func (u *UI) fail(c *gin.Context, err error) {
	log.Error().Err(err).Msg("[ui] dashboard: could not load data")
	c.String(http.StatusInternalServerError, "internal server error")
}
