package backend

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/wansing/moderation/core"
)

var objectTmpl = tmpl(`<h1>{{ .Policy.Type }} &raquo;{{ if .IsNew }}new{{ else }}{{ .ID }}{{ end }}&laquo;</h1>

	{{ with .Message }}
		<div class="alert alert-info" role="alert">{{ . }}</div>
	{{ end }}

	{{ if and .Entity .IsStaff }}
		<p><a href="moderate/{{ .Entity.ID }}">Moderate</a></p>
	{{ end }}

	<form method="post">
		{{ range .Inputs }}
			<div class="form-group row">
				<label class="col-sm-3 col-form-label">{{ .Name }}</label>
				<div class="col-sm-9">
					{{ if eq .Type "markdown" }}
						<textarea class="form-control" name="{{ .Name }}" rows="8">{{ .Value }}</textarea>
					{{ else if eq .Type "bool" }}
						<input type="checkbox" name="{{ .Name }}" value="true"{{ if eq .Value "true" }} checked{{ end }}>
					{{ else if eq .Type "number" }}
						<input type="number" step="any" class="form-control" name="{{ .Name }}" value="{{ .Value }}">
					{{ else }}
						<input type="text" class="form-control" name="{{ .Name }}" value="{{ .Value }}">
						{{ if eq .Type "list" }}<small class="form-text text-muted">comma-separated</small>{{ end }}
					{{ end }}
				</div>
			</div>
		{{ end }}
		<div class="form-group">
			<button type="submit" class="btn btn-primary" name="action" value="save">Save</button>
			<button type="submit" class="btn btn-secondary" name="action" value="draft">Save as draft</button>
		</div>
	</form>`)

type objectInput struct {
	Name  string
	Type  string
	Value string
}

type objectData struct {
	*context
	Policy  *core.Policy
	ID      string
	IsNew   bool
	Object  *core.Object
	Entity  *core.Entity
	Message string
}

// Inputs returns one form input per schema field.
func (data *objectData) Inputs() []objectInput {
	var inputs = []objectInput{}
	for _, field := range data.Policy.Schema {
		var input = objectInput{
			Name: field.Name,
			Type: string(field.Type),
		}
		if data.Object != nil {
			input.Value = FormatValue(data.Object.Fields[field.Name])
		}
		inputs = append(inputs, input)
	}
	return inputs
}

// parseFields keeps undeclared fields of the existing object, so they survive the form round-trip.
func parseFields(policy *core.Policy, existing *core.Object, form url.Values) (core.Snapshot, error) {
	var fields = core.Snapshot{}
	if existing != nil {
		fields = existing.Fields.Clone()
	}
	for _, field := range policy.Schema {
		value, err := ParseValue(field.Type, form.Get(field.Name))
		if err != nil {
			return nil, &core.ValidationError{Field: field.Name, Message: err.Error()}
		}
		fields[field.Name] = value
	}
	return fields, nil
}

// object shows and saves a domain object. Saving puts it under moderation.
func object(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	policy, err := ctx.db.Policies.Lookup(params.ByName("type"))
	if err != nil {
		return err
	}

	var data = &objectData{
		context: ctx,
		Policy:  policy,
		ID:      params.ByName("id"),
	}
	data.IsNew = data.ID == "new"

	if !data.IsNew {
		data.Object, err = ctx.db.GetObject(req.Context(), policy.Type, data.ID)
		if err != nil {
			return err
		}
	}

	if req.Method == http.MethodPost {

		if err := req.ParseForm(); err != nil {
			return err
		}

		fields, err := parseFields(policy, data.Object, req.PostForm)
		if err != nil {
			return err
		}

		if data.IsNew {
			data.ID = uuid.New().String()
		}

		_, message, err := ctx.db.Submit(ctx.Context(), policy.Type, data.ID, fields, ctx.User, req.PostFormValue("action") == "draft")
		if err != nil {
			return err
		}

		ctx.Success("%s", message)
		ctx.SeeOther("/object/%s/%s", url.PathEscape(policy.Type), url.PathEscape(data.ID))
		return nil
	}

	if !data.IsNew {
		data.Entity, err = ctx.db.GetEntityFor(req.Context(), policy.Type, data.ID)
		if err != nil && !core.IsNotFound(err) {
			return err
		}
		data.Message, err = ctx.db.StatusMessage(ctx.Context(), policy.Type, data.ID)
		if err != nil {
			return err
		}
	}

	return objectTmpl.Execute(w, data)
}
