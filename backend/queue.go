package backend

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/wansing/moderation/core"
	"github.com/wansing/moderation/util"
)

const QueuePerPage = 20

var queueTmpl = tmpl(`<h1>Moderation queue</h1>

	<div class="row">
		{{ range .FilterViews }}
			<div class="col-sm">
				<strong>{{ .Title }}</strong>
				<ul class="nav nav-pills">
					{{ range .Options }}
						<li class="nav-item">
							<a class="nav-link{{ if .Selected }} active{{ end }}" href="queue/1?{{ .Query }}">{{ .Title }}</a>
						</li>
					{{ end }}
				</ul>
			</div>
		{{ end }}
	</div>

	<form method="post">
		<div class="table-responsive">
			<table class="table">
				<thead>
					<tr>
						<th></th>
						<th>Status</th>
						<th>Object</th>
						<th>Type</th>
						<th>Created</th>
						<th>Moderated by</th>
						<th>Moderated</th>
					</tr>
				</thead>
				<tbody>
					{{ range .Entities }}
						<tr>
							<td><input type="checkbox" name="id" value="{{ .ID }}"></td>
							<td>{{ StatusBadge . }}</td>
							<td>{{ EntityLink . }}</td>
							<td>{{ .ObjectType }}</td>
							<td>{{ $.FormatDateTime .CreatedAt }}</td>
							<td>{{ .ModeratorName }}</td>
							<td>{{ $.FormatDateTime .DecidedAt }}</td>
						</tr>
					{{ else }}
						<tr>
							<td colspan="7">none</td>
						</tr>
					{{ end }}
				</tbody>
			</table>
		</div>

		<div class="form-group">
			<input type="text" class="form-control" name="reason" placeholder="Reason (required for rejecting)">
		</div>
		<div class="form-group">
			<button type="submit" class="btn btn-success" name="action" value="approve">Approve selected</button>
			<button type="submit" class="btn btn-danger" name="action" value="reject">Reject selected</button>
			<button type="submit" class="btn btn-secondary" name="action" value="pending">Set selected to pending</button>
		</div>
	</form>

	<nav>
		<ul class="pagination justify-content-center">
			{{ range .PageLinks }}
				{{ . }}
			{{ end }}
		</ul>
	</nav>`)

type filterOptionView struct {
	Title    string
	Query    string
	Selected bool
}

type filterView struct {
	Title   string
	Options []filterOptionView
}

type queueData struct {
	*context
	page   util.Pagination
	query  url.Values
	filter core.QueueFilter
	req    *http.Request
}

func (data *queueData) Entities() ([]*core.Entity, error) {
	return data.db.Queue(data.req.Context(), data.filter, data.page.PerPage, data.page.Offset())
}

// FilterViews keeps the selection of the other filters in every link.
func (data *queueData) FilterViews() []filterView {
	var views = make([]filterView, 0, len(data.filters))
	for _, f := range data.filters {
		var view = filterView{Title: f.Title()}
		for _, option := range f.Options(data.db) {
			var query = url.Values{}
			for k, v := range data.query {
				query[k] = v
			}
			if option.Value == "" {
				query.Del(f.Param())
			} else {
				query.Set(f.Param(), option.Value)
			}
			view.Options = append(view.Options, filterOptionView{
				Title:    option.Title,
				Query:    query.Encode(),
				Selected: data.query.Get(f.Param()) == option.Value,
			})
		}
		views = append(views, view)
	}
	return views
}

func (data *queueData) PageLinks() []template.HTML {

	var pagination = data.page
	if count, err := data.db.CountQueue(data.req.Context(), data.filter); err == nil {
		pagination.Total = count
	}

	var query = template.HTMLEscapeString(data.query.Encode())

	return pagination.Links(
		func(page int, name string) string {
			return fmt.Sprintf(`<li class="page-item"><a class="page-link" href="queue/%d?%s">%s</a></li>`, page, query, name)
		},
		func(page int) string {
			return fmt.Sprintf(`<li class="page-item active"><span class="page-link">%d</span></li>`, page)
		},
	)
}

func queue(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	if !ctx.IsStaff() {
		return core.ErrUnauthorized
	}

	var page = util.NewPagination(params.ByName("page"), QueuePerPage)

	if req.Method == http.MethodPost {

		if err := req.ParseForm(); err != nil {
			return err
		}

		var ids = []uuid.UUID{}
		for _, s := range req.PostForm["id"] {
			id, err := uuid.Parse(s)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		if len(ids) == 0 {
			ctx.Info("Please select at least one object.")
			ctx.SeeOther("/queue/%d?%s", page.Page, req.URL.RawQuery)
			return nil
		}

		var reason = req.PostFormValue("reason")
		var results []core.BulkResult

		switch req.PostFormValue("action") {
		case "approve":
			results = ctx.db.BulkApprove(ctx.Context(), ids, ctx.User, reason)
		case "reject":
			results = ctx.db.BulkReject(ctx.Context(), ids, ctx.User, reason)
		case "pending":
			results = ctx.db.BulkSetPending(ctx.Context(), ids, ctx.User)
		default:
			return fmt.Errorf("unknown action %q", req.PostFormValue("action"))
		}

		// one message per entity
		for _, result := range results {
			if result.Err != nil {
				ctx.Danger(fmt.Errorf("%s: %w", result.EntityID, result.Err))
			} else {
				ctx.Success("%s: %s", result.EntityID, result.Message)
			}
		}

		ctx.SeeOther("/queue/%d?%s", page.Page, req.URL.RawQuery)
		return nil
	}

	var query = req.URL.Query()

	return queueTmpl.Execute(w, &queueData{
		context: ctx,
		page:    page,
		query:   query,
		filter:  queueFilter(ctx.filters, query),
		req:     req,
	})
}
