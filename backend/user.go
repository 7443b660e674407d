package backend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

var userTmpl = tmpl(`<h1>User &raquo;{{ .User.Name }}&laquo;</h1>

	<p>{{ if .IsStaff }}You are a moderator.{{ else }}Your submissions are moderated.{{ end }}</p>

	<h2>Change Password</h2>

	<form method="post">

		<div class="form-group row">
			<label class="col-sm-6 col-form-label">Current password</label>
			<div class="col-sm-6">
				<input type="password" class="form-control" name="old">
			</div>
		</div>

		<div class="form-group row">
			<label class="col-sm-6 col-form-label">New password</label>
			<div class="col-sm-6">
				<input type="password" class="form-control" name="new1">
			</div>
		</div>

		<div class="form-group row">
			<label class="col-sm-6 col-form-label">Repeat new password</label>
			<div class="col-sm-6">
				<input type="password" class="form-control" name="new2">
			</div>
		</div>

		<button type="submit" class="btn btn-primary" name="change">Change password</button>

	</form>`)

func user(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	if req.Method == http.MethodPost {

		var new1 = req.PostFormValue("new1")
		var new2 = req.PostFormValue("new2")

		if new1 != new2 {
			return errors.New("new passwords don't match")
		}

		if strings.TrimSpace(new1) == "" {
			return errors.New("new password is empty")
		}

		if _, err := ctx.db.LoginUser(req.Context(), ctx.User.Name(), req.PostFormValue("old")); err != nil {
			return errors.New("wrong current password")
		}

		if err := ctx.db.SetPassword(req.Context(), ctx.User, new1); err != nil {
			return err
		}

		ctx.Success("password of %s has been changed", ctx.User.Name())
		ctx.SeeOther("/user")
		return nil
	}

	return userTmpl.Execute(w, ctx)
}
