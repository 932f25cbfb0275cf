package views

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/cassandrablog/internal/flash"
	"example.com/cassandrablog/internal/logger"
	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/search"
	"github.com/cespare/xxhash/v2"
	"github.com/russross/blackfriday/v2"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var logg = logger.New()

//go:embed templates
var templatesFS embed.FS

var pageNames = []string{"index", "new", "edit", "show", "login", "error"}

// SearchOption is one entry of the search type select box.
type SearchOption struct {
	Value string
	Label string
}

var SearchTypes = []SearchOption{
	{"title,body", "Title, Body"},
	{"title", "Title"},
	{"body", "Body"},
	{"author", "Author"},
	{"author!", "Author (exact)"},
}

// Pagination describes the page links under the listing.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	MaxPage     int   `json:"maxPage"`
	Limit       int   `json:"limit"`
	Pages       []int `json:"-"`
}

// Page is the view model every template receives. JSON clients get the
// same struct encoded.
type Page struct {
	Title       string            `json:"-"`
	CurrentUser *models.User      `json:"currentUser,omitempty"`
	State       search.State      `json:"-"`
	SearchType  string            `json:"searchType,omitempty"`
	SearchText  string            `json:"searchText,omitempty"`
	Posts       []models.Post     `json:"posts,omitempty"`
	Post        *models.Post      `json:"post,omitempty"`
	Pagination  *Pagination       `json:"pagination,omitempty"`
	Form        *flash.PostForm   `json:"form,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
	AuthorPosts int64             `json:"authorPostCount,omitempty"`
	Status      int               `json:"status,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// SearchTypes feeds the search select box.
func (p Page) SearchTypes() []SearchOption {
	return SearchTypes
}

// NewPagination lists every page number from 1 to maxPage.
func NewPagination(current, maxPage, limit int) *Pagination {
	p := &Pagination{CurrentPage: current, MaxPage: maxPage, Limit: limit}
	for i := 1; i <= maxPage; i++ {
		p.Pages = append(p.Pages, i)
	}
	return p
}

var mdRenderer = blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
	Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML | blackfriday.Safelink,
})

var functions = template.FuncMap{
	"markdown": func(s string) template.HTML {
		return template.HTML(blackfriday.Run([]byte(s), blackfriday.WithRenderer(mdRenderer)))
	},
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006, 15:04")
	},
	"query": func(s search.State) string {
		return s.Encode()
	},
	"atPage": func(s search.State, page int) search.State {
		return s.WithPage(strconv.Itoa(page))
	},
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages    map[string]*template.Template
	minifier *minify.M
}

// New parses every page together with the layout once at startup.
func New() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		ts, err := template.New(name).Funcs(functions).ParseFS(templatesFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = ts
	}

	m := minify.New()
	m.AddFunc("text/html", html.Minify)

	return &Renderer{pages: pages, minifier: m}, nil
}

// WantsJSON reports whether the client asked for JSON instead of HTML.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logg.Error("views", "Failed to encode JSON response", err)
	}
}

// Render writes the page as HTML, or as JSON when the client asked for it.
// Successful GET responses carry an ETag and answer 304 when it matches.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data *Page) {
	if data == nil {
		data = &Page{}
	}
	data.SearchType = data.State.SearchType
	data.SearchText = data.State.SearchText

	if WantsJSON(r) {
		WriteJSON(w, data, status)
		return
	}

	ts, ok := v.pages[name]
	if !ok {
		logg.Error("views", "Unknown template "+name, nil)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := ts.ExecuteTemplate(&buf, "layout", data); err != nil {
		logg.Error("views", "Failed to execute template "+name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	body := buf.Bytes()
	var out bytes.Buffer
	if err := v.minifier.Minify("text/html", &out, bytes.NewReader(body)); err != nil {
		logg.Error("views", "Failed to minify "+name, err)
	} else {
		body = out.Bytes()
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")

	if status == http.StatusOK && r.Method == http.MethodGet {
		etag := ETag(body)
		h.Set("ETag", etag)
		h.Set("Cache-Control", "no-cache")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logg.Error("views", "Failed to write response", err)
	}
}

// ETag is the quoted base64 of the body's xxhash.
func ETag(body []byte) string {
	d := make([]byte, 8)
	binary.BigEndian.PutUint64(d, xxhash.Sum64(body))
	return "\"" + base64.StdEncoding.EncodeToString(d) + "\""
}
