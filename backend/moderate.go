package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/wansing/moderation/core"
)

var moderateTmpl = tmpl(`<h1>Moderate {{ .Entity.ObjectType }} &raquo;{{ .Entity.ObjectID }}&laquo;</h1>

	<p>{{ StatusBadge .Entity }} {{ .Message }}</p>

	<dl class="row">
		<dt class="col-sm-3">Created</dt>
		<dd class="col-sm-9">{{ .FormatDateTime .Entity.CreatedAt }}</dd>
		{{ if .Entity.Decided }}
			<dt class="col-sm-3">Moderated by</dt>
			<dd class="col-sm-9">{{ .Entity.ModeratorName }}, {{ .FormatDateTime .Entity.DecidedAt }}</dd>
		{{ end }}
		{{ with .Entity.Reason }}
			<dt class="col-sm-3">Reason</dt>
			<dd class="col-sm-9">{{ . }}</dd>
		{{ end }}
	</dl>

	<h2>Changes</h2>

	<div class="table-responsive">
		<table class="table">
			<thead>
				<tr>
					<th>Field</th>
					<th>Before</th>
					<th>After</th>
				</tr>
			</thead>
			<tbody>
				{{ range .Changes }}
					<tr>
						<td>{{ .Field }}</td>
						<td class="change-old">{{ RenderValue .Type .Old }}</td>
						<td class="change-new">{{ RenderValue .Type .New }}</td>
					</tr>
				{{ else }}
					<tr>
						<td colspan="3">no changes</td>
					</tr>
				{{ end }}
			</tbody>
		</table>
	</div>

	<form method="post">
		<div class="form-group">
			<label>Reason</label>
			<textarea class="form-control" name="reason" rows="3">{{ .Entity.Reason }}</textarea>
		</div>
		<div class="form-group">
			{{ if ne .Entity.Status.String "approved" }}
				<button type="submit" class="btn btn-success" name="action" value="approve">Approve</button>
			{{ end }}
			{{ if ne .Entity.Status.String "rejected" }}
				<button type="submit" class="btn btn-danger" name="action" value="reject">Reject</button>
			{{ end }}
			{{ if ne .Entity.Status.String "pending" }}
				<button type="submit" class="btn btn-secondary" name="action" value="pending">Set to pending</button>
			{{ end }}
			<a class="btn btn-link" href="object/{{ .Entity.ObjectType }}/{{ .Entity.ObjectID }}">Edit object</a>
		</div>
	</form>

	<h2>History</h2>

	<div class="table-responsive">
		<table class="table table-sm">
			<thead>
				<tr>
					<th>Time</th>
					<th>From</th>
					<th>To</th>
					<th>By</th>
					<th>Reason</th>
				</tr>
			</thead>
			<tbody>
				{{ range .History }}
					<tr>
						<td>{{ $.FormatDateTime .At }}</td>
						<td>{{ .From }}</td>
						<td>{{ .To }}</td>
						<td>{{ .ActorName }}</td>
						<td>{{ .Reason }}</td>
					</tr>
				{{ end }}
			</tbody>
		</table>
	</div>`)

type moderateData struct {
	*context
	Entity  *core.Entity
	Changes core.ChangeSet
	Message string
	History []core.HistoryEntry
}

func moderate(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	if !ctx.IsStaff() {
		return core.ErrUnauthorized
	}

	id, err := uuid.Parse(params.ByName("id"))
	if err != nil {
		return &core.NotFoundError{What: "moderated entity", Key: params.ByName("id")}
	}

	entity, err := ctx.db.GetEntity(req.Context(), id)
	if err != nil {
		return err
	}

	if req.Method == http.MethodPost {

		var reason = req.PostFormValue("reason")
		var message string

		switch req.PostFormValue("action") {
		case "approve":
			message, err = ctx.db.Approve(ctx.Context(), entity, ctx.User, reason)
		case "reject":
			message, err = ctx.db.Reject(ctx.Context(), entity, ctx.User, reason)
		case "pending":
			message, err = ctx.db.SetPending(ctx.Context(), entity, ctx.User)
		default:
			err = fmt.Errorf("unknown action %q", req.PostFormValue("action"))
		}

		if err != nil {
			var validationErr *core.ValidationError
			if errors.As(err, &validationErr) {
				ctx.Danger(err)
				ctx.SeeOther("/moderate/%s", entity.ID)
				return nil
			}
			return err
		}

		ctx.Success("%s", message)

		// back to the queue after a decision, stay here after set-pending
		if entity.Status == core.Pending {
			ctx.SeeOther("/moderate/%s", entity.ID)
		} else {
			ctx.SeeOther("/queue/1")
		}
		return nil
	}

	changes, policy, _, err := ctx.db.ChangesFor(req.Context(), entity)
	if err != nil {
		return err
	}

	history, err := ctx.db.History(req.Context(), entity.ID)
	if err != nil {
		return err
	}

	return moderateTmpl.Execute(w, &moderateData{
		context: ctx,
		Entity:  entity,
		Changes: changes,
		Message: core.Message(ctx.Request.Printer(), entity.Status, entity.Reason, policy.VisibleUntilRejected),
		History: history,
	})
}
