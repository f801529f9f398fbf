package echoweb

import (
	"html/template"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/course"
	appfs "github.com/trezcool/academia/fs"
)

const (
	templatesDir = "templates"
	baseTemplate = "_base.gohtml"
	templateExt  = ".gohtml"
)

var templateFuncs = template.FuncMap{
	"date":  func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"grade": course.FormatGrade,
	"score": func(g float64) string { return strconv.FormatFloat(g, 'f', -1, 64) + "%" },
}

// page is the data of every template.
type page struct {
	AppName  string
	Title    string
	Path     string
	Demo     bool
	Identity *auth.Identity
	Profile  *auth.Profile

	Error   string
	Success string
	Fields  map[string]string // field name -> error
	Form    interface{}
	Data    interface{}
}

// renderer renders the pages embedded in appfs, each within the base layout.
type renderer struct {
	files fs.FS
	debug bool

	once      sync.Once
	templates map[string]*template.Template // by page name (file name without ext)
	err       error
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer(debug bool) *renderer {
	return &renderer{files: appfs.FS, debug: debug}
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	r.once.Do(r.parse) // only parse once, during the first request
	if r.err != nil {
		return r.err
	}
	tmpl, ok := r.templates[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

func (r *renderer) parse() {
	r.templates = make(map[string]*template.Template)

	entries, err := fs.ReadDir(r.files, templatesDir)
	if err != nil {
		r.err = errors.Wrap(err, "reading templates")
		return
	}
	for _, entry := range entries {
		fname := entry.Name()
		if entry.IsDir() || strings.HasPrefix(fname, "_") || path.Ext(fname) != templateExt {
			continue
		}
		name := strings.TrimSuffix(fname, templateExt)

		tmpl, err := template.New(name).
			Funcs(templateFuncs).
			ParseFS(r.files, path.Join(templatesDir, baseTemplate), path.Join(templatesDir, fname))
		if err != nil {
			r.err = errors.Wrapf(err, "parsing template %s", fname)
			return
		}
		if r.debug {
			tmpl = tmpl.Option("missingkey=error")
		}
		r.templates[name] = tmpl
	}
}
