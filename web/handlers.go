package web

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/etnz/loandash"
	"github.com/etnz/loandash/dashboard"
	"github.com/etnz/loandash/renderer"
)

// flash is an upload outcome shown once by the next dashboard render.
type flash struct {
	Message string
	Error   bool
}

// flashKey scopes flash messages to the session they were produced for.
func (s *Server) flashKey() string {
	return "upload:" + s.store.Get().Token
}

// page opens a page instance for the request. The returned redirect is set
// when the gate sends the user to login.
func (s *Server) page(c *gin.Context) (p *dashboard.Page, redirect *string) {
	redirect = new(string)
	nav := dashboard.NavigatorFunc(func(reason string) {
		*redirect = "/login?reason=" + url.QueryEscape(reason)
	})
	p = dashboard.NewPage(c.Request.Context(), s.backend, s.store, nav, dashboard.Options{
		Public: s.opts.Public,
		Now:    s.opts.Now,
		Logger: s.logger,
	})
	return p, redirect
}

func (s *Server) showDashboard(c *gin.Context) {
	p, redirect := s.page(c)
	defer p.Close()

	if !p.Open() && *redirect != "" {
		c.Redirect(http.StatusSeeOther, *redirect)
		return
	}
	st := p.Status()
	key := s.flashKey()
	if v, ok := s.flash.Get(key); ok {
		f := v.(flash)
		st.Message, st.Error = f.Message, f.Error
		s.flash.Delete(key)
	}

	body, err := renderer.HTML(renderer.Markdown(renderer.NewView(p.Snapshot()), st))
	if err != nil {
		s.logger.Error("cannot render dashboard", zap.Error(err))
		c.String(http.StatusInternalServerError, "cannot render dashboard")
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Body":   template.HTML(body),
		"Public": s.opts.Public,
		"Month":  loandash.DefaultMonthLabel(s.opts.Now()),
	})
}

func (s *Server) upload(c *gin.Context) {
	p, redirect := s.page(c)
	defer p.Close()

	if p.Gate != nil && p.Gate.Enter(c.Request.Context()) != dashboard.Authenticated {
		c.Redirect(http.StatusSeeOther, *redirect)
		return
	}
	if !s.uploads.TryAcquire(1) {
		s.flash.Set(s.flashKey(), flash{Message: dashboard.BusyMessage}, cache.DefaultExpiration)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	defer s.uploads.Release(1)

	fh, err := c.FormFile("file")
	if err != nil {
		// nothing selected, same as a submit without a file
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.flash.Set(s.flashKey(), flash{Message: "Error: " + err.Error(), Error: true}, cache.DefaultExpiration)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	defer f.Close()

	p.Submit(&dashboard.File{Name: fh.Filename, Content: f}, c.PostForm("month"))
	if *redirect != "" {
		c.Redirect(http.StatusSeeOther, *redirect)
		return
	}
	if st := p.Status(); st.Message != "" {
		s.flash.Set(s.flashKey(), flash{Message: st.Message, Error: st.Error}, cache.DefaultExpiration)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) showLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Message": c.Query("reason")})
}

func (s *Server) login(c *gin.Context) {
	email, password := c.PostForm("email"), c.PostForm("password")
	res, err := s.backend.Login(c.Request.Context(), email, password)
	if err != nil {
		s.logger.Info("login failed", zap.String("email", email), zap.Error(err))
		status, msg := http.StatusBadGateway, "Cannot reach the server, try again later"
		var verr *loandash.ValidationError
		if errors.As(err, &verr) {
			status, msg = http.StatusUnauthorized, verr.Message
		}
		c.HTML(status, "login.html", gin.H{"Message": msg, "Email": email, "Error": true})
		return
	}
	if err := s.store.Set(res.Token, res.UserID, res.Email); err != nil {
		s.logger.Error("cannot save session", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"Message": "Cannot save the session", "Error": true})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) logout(c *gin.Context) {
	token := s.store.Get().Token
	if err := s.backend.Logout(c.Request.Context(), token); err != nil {
		s.logger.Warn("backend logout failed", zap.Error(err))
	}
	s.flash.Delete(s.flashKey())
	if err := s.store.Clear(); err != nil {
		s.logger.Error("cannot clear session", zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, "/login")
}
