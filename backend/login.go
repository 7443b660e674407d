package backend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

var ErrLogin = errors.New("wrong username or password")

var loginTmpl = tmpl(`<h1>Login</h1>
	<form method="post" style="max-width: 20rem; margin: auto;">
		<div class="form-group">
			<label>Name</label>
			<input type="text" class="form-control" name="name" value="{{ .Name }}" maxlength="128" required autofocus>
		</div>
		<div class="form-group">
			<label>Password</label>
			<input type="password" class="form-control" name="password" required>
		</div>
		<div class="form-group">
			<button type="submit" class="btn btn-primary" name="login">Login</button>
		</div>
	</form>`)

type loginData struct {
	*context
	Name string
}

// cleanName normalizes a user name like the user table does, so the form shows what is looked up.
func cleanName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func login(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	if ctx.LoggedIn() {
		ctx.SeeOther("/")
		return nil
	}

	var name string

	if req.Method == http.MethodPost {

		name = cleanName(req.PostFormValue("name"))
		password := req.PostFormValue("password")

		if name != "" && password != "" {
			err := ctx.Login(name, password)
			if err == nil {
				ctx.SeeOther("/")
				return nil
			}
			ctx.db.Log().Info("login failed", zap.String("user", name), zap.Error(err))
		}

		ctx.Danger(ErrLogin) // name is kept in the form
	}

	return loginTmpl.Execute(w, &loginData{
		context: ctx,
		Name:    name,
	})
}
