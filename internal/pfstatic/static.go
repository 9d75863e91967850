package pfstatic

import (
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"portfolio/internal/pflog"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

//go:embed ressources/tracker.js
var staticFS embed.FS

const (
	trackerFile  = "ressources/tracker.js"
	resumeFile   = "resume.pdf"
	cacheControl = "public, max-age=86400"
)

type asset struct {
	content []byte
	etag    string
}

// Tracker sert le script de suivi embarqué, minifié une seule fois au démarrage
type Tracker struct {
	asset asset
}

func NewTracker() (*Tracker, error) {
	content, err := fs.ReadFile(staticFS, trackerFile)
	if err != nil {
		return nil, err
	}

	m := minify.New()
	m.AddFunc("application/javascript", js.Minify)
	minified, err := m.Bytes("application/javascript", content)
	if err != nil {
		log.Warn().Err(err).Msg("minification du tracker impossible, script servi brut")
	} else {
		content = minified
	}

	return &Tracker{asset: asset{content: content, etag: generateETag(content)}}, nil
}

func (t *Tracker) Serve(c *gin.Context) {
	c.Header("Cache-Control", cacheControl)
	c.Header("ETag", t.asset.etag)

	if c.GetHeader("If-None-Match") == t.asset.etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "application/javascript; charset=utf-8", t.asset.content)
}

// ResumeHandler sert <staticPath>/resume.pdf en inline
func ResumeHandler(staticPath string) gin.HandlerFunc {
	path := filepath.Join(staticPath, resumeFile)

	return func(c *gin.Context) {
		content, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				pflog.Ctx(c.Request.Context()).Error().Err(err).Str("path", path).Msg("lecture du CV impossible")
			}
			c.String(http.StatusNotFound, "Resume not found")
			return
		}

		c.Header("Content-Disposition", "inline; filename="+resumeFile)
		c.Data(http.StatusOK, "application/pdf", content)
	}
}

func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf(`"%x"`, hash[:16])
}
