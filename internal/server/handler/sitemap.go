package handler

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// ActiveLister returns the markets published in the directory.
type ActiveLister interface {
	Active(ctx context.Context) ([]domain.Market, error)
	Now() time.Time
}

// SitemapHandler serves /sitemap.xml and /robots.txt for the public site.
type SitemapHandler struct {
	markets ActiveLister
	baseURL string
	logger  *slog.Logger
}

func NewSitemapHandler(markets ActiveLister, baseURL string, logger *slog.Logger) *SitemapHandler {
	return &SitemapHandler{
		markets: markets,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq,omitempty"`
	Priority   float64 `xml:"priority"`
}

var staticPages = []struct {
	path     string
	freq     string
	priority float64
}{
	{"", "daily", 1.0},
	{"/markets", "daily", 0.9},
	{"/about", "monthly", 0.5},
	{"/contributors", "monthly", 0.5},
}

// Sitemap lists the static pages and one page per active market.
// GET /sitemap.xml
func (h *SitemapHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.Active(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: sitemap", slog.String("error", err.Error()))
		http.Error(w, "failed to build sitemap", http.StatusInternalServerError)
		return
	}

	today := h.markets.Now().In(time.UTC).Format(time.DateOnly)
	set := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(staticPages)+len(markets)),
	}
	for _, p := range staticPages {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        h.baseURL + p.path,
			LastMod:    today,
			ChangeFreq: p.freq,
			Priority:   p.priority,
		})
	}
	for _, m := range markets {
		mod := today
		if !m.UpdatedAt.IsZero() {
			mod = m.UpdatedAt.UTC().Format(time.DateOnly)
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        h.baseURL + "/markets/" + url.PathEscape(m.ID),
			LastMod:    mod,
			ChangeFreq: "weekly",
			Priority:   0.8,
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		http.Error(w, "failed to build sitemap", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write([]byte(xml.Header))
	w.Write(out)
}

// Robots allows everything and points crawlers at the sitemap.
// GET /robots.txt
func (h *SitemapHandler) Robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("User-agent: *\nAllow: /\n\nSitemap: " + h.baseURL + "/sitemap.xml\n"))
}
