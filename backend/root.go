package backend

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func root(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	switch {
	case ctx.IsStaff():
		ctx.SeeOther("/queue/1")
	case ctx.LoggedIn():
		ctx.SeeOther("/user")
	default:
		ctx.SeeOther("/login")
	}
	return nil
}
