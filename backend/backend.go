package backend

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/wansing/moderation/core"
	"go.uber.org/zap"
)

// we need the CoreDB in the backend
type context struct {
	*core.Request
	Prefix  string // with trailing slash
	db      *core.CoreDB
	filters []Filter
}

func (ctx *context) PolicyTypes() []string {
	return ctx.db.Policies.All()
}

func middleware(b *backend, requireLoggedIn bool, f func(http.ResponseWriter, *http.Request, *context, httprouter.Params) error) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {

		var request = b.db.NewRequest(w, req)

		var ctx = &context{
			Prefix:  b.prefix + "/backend/",
			Request: request,
			db:      b.db,
			filters: b.filters,
		}
		defer ctx.Cleanup()

		if requireLoggedIn && !ctx.LoggedIn() {
			ctx.SeeOther("/login")
			return
		}

		if err := f(w, req, ctx, params); err != nil {
			if !core.Expected(err) && err != core.ErrUnauthorized {
				b.db.Log().Error("backend", zap.String("path", req.URL.Path), zap.Error(err))
			}
			// probably no template has been executed, so execute error template
			errorTmpl.Execute(w, struct {
				*context
				Err error
			}{
				context: ctx,
				Err:     err,
			})
		}
	}
}

var errorTmpl = tmpl(`
	<div class="alert alert-danger" role="alert">
		{{ .Err }}
	</div>`)

type backend struct {
	db      *core.CoreDB
	prefix  string
	filters []Filter
}

// NewBackendRouter returns the moderation admin surface. The queue offers the given filters in the given order.
func NewBackendRouter(db *core.CoreDB, prefix string, filters []Filter) http.Handler {

	var b = &backend{
		db:      db,
		prefix:  prefix,
		filters: filters,
	}

	var router = httprouter.New()

	var GETAndPOST = func(path string, handle httprouter.Handle) {
		router.GET(path, handle)
		router.POST(path, handle)
	}

	// public
	router.GET("/", middleware(b, false, root))
	GETAndPOST("/login", middleware(b, false, login))

	// private
	router.GET("/logout", middleware(b, true, logout))
	GETAndPOST("/moderate/:id", middleware(b, true, moderate))
	GETAndPOST("/object/:type/:id", middleware(b, true, object))
	router.GET("/objects/:type", middleware(b, true, objects))
	GETAndPOST("/queue/:page", middleware(b, true, queue))
	GETAndPOST("/user", middleware(b, true, user))

	return router
}

func tmpl(text string) *template.Template {
	t := template.Must(backendTmpl.Clone())
	t = template.Must(t.Parse(`{{ define "content" }}` + text + `{{ end }}`))
	return t
}

var backendTmpl = template.Must(template.New("backend").Funcs(
	template.FuncMap{
		"EntityLink": func(e *core.Entity) template.HTML {
			return template.HTML(fmt.Sprintf(`<a href="moderate/%s">%s</a>`, e.ID, template.HTMLEscapeString(e.ObjectType+"/"+e.ObjectID)))
		},
		"RenderValue": RenderValue,
		"StatusBadge": StatusBadge,
		"Summary":     Summary,
		"TypeLink": func(objectType string) template.HTML {
			return template.HTML(fmt.Sprintf(`<a href="objects/%s">%s</a>`, template.URLQueryEscaper(objectType), template.HTMLEscapeString(objectType)))
		},
	},
).Parse(`
<!DOCTYPE html>
<html lang="{{ .Language }}">
	<head>
		<base href="{{.Prefix}}">
		<meta charset="utf-8">
		<meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no">
		<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap@4.4.1/dist/css/bootstrap.min.css">
		<title>Moderation</title>

		<style>

			/* bootstrap enhancements */

			.alert-inline {
				display: inline-block;
				border: 1px solid transparent;
				border-radius: .2rem;
				padding: .15rem .3rem;
			}

			.bg-light, .table-light, .table-light > td, .table-light > th {
				background-color: #f4f5f6 !important;
			}

			.col-form-label {
				text-align: right;
			}

			/* diff */

			.change-old {
				background-color: #fbe9eb;
			}

			.change-new {
				background-color: #ecfdf0;
			}

			/* html tags */

			body {
				padding-bottom: 1rem;
			}

			h1 {
				font-size: 1.5rem !important;
				margin: 1rem 0 0.7rem !important;
			}

			h2 {
				font-size: 1.3rem !important;
				margin: 0.2rem 0 0.5rem !important;
			}

			table {
				margin-top: 0.5rem;
				border-bottom: 1px solid #dee2e6;
			}

			textarea {
				tab-size: 4;
				-moz-tab-size: 4;
			}

		</style>
	</head>
	<body>

		{{ if .LoggedIn }}

			<nav class="navbar navbar-expand-md bg-light">
				<ul class="navbar-nav">
					{{ if .IsStaff }}
						<li class="nav-item">
							<a class="nav-link" href="queue/1">Queue</a>
						</li>
					{{ end }}
					{{ range .PolicyTypes }}
						<li class="nav-item">
							<a class="nav-link" href="objects/{{ . }}">{{ . }}</a>
						</li>
					{{ end }}
					<li class="nav-item">
						<a class="nav-link" href="user">{{ .User.Name }}</a>
					</li>
					<li class="nav-item">
						<a class="nav-link" href="logout">Logout</a>
					</li>
				</ul>
			</nav>

		{{ end }}

		<div class="container pt-3">
			{{ .RenderNotifications }}
			{{ template "content" . }}
		</div>
	</body>
</html>`))
