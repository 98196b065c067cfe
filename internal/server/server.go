// Package server serves packages on demand for development, rendering each
// request through the current Packager instead of reading precached files.
package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/davidrichards/ram/internal/core"
	"github.com/davidrichards/ram/internal/packager"
)

const (
	contentTypeJS  = "application/javascript; charset=utf-8"
	contentTypeCSS = "text/css; charset=utf-8"
)

// ErrorResponse is the JSON body of a failed package request.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Options configure a Server.
type Options struct {
	// ReloadEachRequest rebuilds the packager on every request so new files
	// matching existing globs are picked up. Otherwise the packager is
	// rebuilt only when the manifest changes.
	ReloadEachRequest bool
}

// Server is the on-demand package HTTP server.
type Server struct {
	holder *packager.Holder
	log    *logrus.Logger
	opts   Options
	engine *gin.Engine
}

// New creates a Server backed by holder.
func New(holder *packager.Holder, logger *logrus.Logger, opts Options) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{holder: holder, log: logger, opts: opts, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.logRequests())
	s.engine.GET("/health-check", func(c *gin.Context) {
		c.JSON(http.StatusOK, "ok")
	})
	// Package paths come from the manifest, which may change while serving,
	// so assets are matched in the fallback handler rather than as routes.
	s.engine.NoRoute(s.servePackage)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.WithField("addr", addr).Info("serving packages")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) packager() (*packager.Packager, error) {
	if s.opts.ReloadEachRequest {
		return s.holder.Reload()
	}
	return s.holder.Refresh()
}

func (s *Server) servePackage(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, ErrorResponse{Code: "method_not_allowed", Error: "only GET is supported"})
		return
	}
	p, err := s.packager()
	if err != nil {
		s.fail(c, err)
		return
	}
	settings := p.Settings()

	prefix := "/" + settings.PackagePath + "/"
	file, ok := strings.CutPrefix(c.Request.URL.Path, prefix)
	if !ok || file == "" || strings.Contains(file, "/") {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Error: "not found"})
		return
	}

	ext := path.Ext(file)
	name := strings.TrimSuffix(file, ext)
	var (
		body        []byte
		contentType string
	)
	switch ext {
	case ".js":
		contentType = contentTypeJS
		body, err = p.Pack(name, core.Script, core.VariantPlain, "")
	case ".css":
		contentType = contentTypeCSS
		variant, pkg := splitVariant(name)
		param := ""
		if variant == core.VariantLegacyFallback {
			param = requestURL(c.Request)
		}
		body, err = p.Pack(pkg, core.Style, variant, param)
	case "." + settings.TemplateExtension:
		contentType = contentTypeJS
		body, err = p.PackTemplates(name)
	default:
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Error: "not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, contentType, body)
}

// variantSuffixes maps stylesheet name suffixes to variants. "-mhtml" is
// accepted as an alias for the legacy fallback.
var variantSuffixes = []struct {
	suffix  string
	variant core.Variant
}{
	{"-" + core.VariantDataURI.Suffix(), core.VariantDataURI},
	{"-" + core.VariantLegacyFallback.Suffix(), core.VariantLegacyFallback},
	{"-mhtml", core.VariantLegacyFallback},
}

// splitVariant separates a variant suffix from a stylesheet name.
func splitVariant(name string) (core.Variant, string) {
	for _, vs := range variantSuffixes {
		if pkg, ok := strings.CutSuffix(name, vs.suffix); ok && pkg != "" {
			return vs.variant, pkg
		}
	}
	return core.VariantPlain, name
}

// requestURL is the absolute URL the client used, which MHTML references
// must point back to.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, core.ErrPackageNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Code: "package_not_found", Error: err.Error()})
		return
	}
	s.log.WithError(err).WithField("path", c.Request.URL.Path).Error("package request failed")
	code := "internal"
	switch {
	case errors.Is(err, core.ErrMissingConfiguration), errors.Is(err, core.ErrDeprecated):
		code = "configuration"
	case errors.Is(err, core.ErrTransform):
		code = "transform"
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Code: code, Error: err.Error()})
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"duration": time.Since(start).String(),
			"bytes":    c.Writer.Size(),
		}).Debug("request")
	}
}
