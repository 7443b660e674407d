package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/wansing/moderation/core"
)

var objectsTmpl = tmpl(`<h1>{{ .Policy.Type }}</h1>

	<a class="btn btn-sm btn-primary" href="object/{{ .Policy.Type }}/new">Create</a>

	<div class="table-responsive">
		<table class="table">
			<thead>
				<tr>
					<th>Status</th>
					<th>ID</th>
					<th>Summary</th>
					<th>Changed</th>
				</tr>
			</thead>
			<tbody>
				{{ range .Rows }}
					<tr>
						<td>{{ StatusBadge .Entity }}</td>
						<td><a href="object/{{ .Object.Type }}/{{ .Object.ID }}">{{ .Object.ID }}</a></td>
						<td>{{ Summary $.Policy .Object.Fields }}</td>
						<td>{{ $.FormatDateTime .Object.TsChanged }}</td>
					</tr>
				{{ else }}
					<tr>
						<td colspan="4">none</td>
					</tr>
				{{ end }}
			</tbody>
		</table>
	</div>`)

type objectRow struct {
	Object *core.Object
	Entity *core.Entity // nil if not moderated yet
}

type objectsData struct {
	*context
	Policy *core.Policy
	Rows   []objectRow
}

// objects lists all objects of a type, including hidden ones.
func objects(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	policy, err := ctx.db.Policies.Lookup(params.ByName("type"))
	if err != nil {
		return err
	}

	objs, err := ctx.db.QueryUnderlying(req.Context(), policy.Type)
	if err != nil {
		return err
	}

	var rows = make([]objectRow, 0, len(objs))
	for _, obj := range objs {
		e, err := ctx.db.GetEntityFor(req.Context(), obj.Type, obj.ID)
		if err != nil && !core.IsNotFound(err) {
			return err
		}
		rows = append(rows, objectRow{
			Object: obj,
			Entity: e,
		})
	}

	return objectsTmpl.Execute(w, &objectsData{
		context: ctx,
		Policy:  policy,
		Rows:    rows,
	})
}
