package backend

import (
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/julienschmidt/httprouter"
	"github.com/wansing/moderation/core"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type apiObject struct {
	ID      string        `json:"id"`
	Fields  core.Snapshot `json:"fields"`
	Created time.Time     `json:"created"`
	Changed time.Time     `json:"changed"`
}

type apiError struct {
	Error string `json:"error"`
}

// NewAPIRouter returns a public read-only JSON API which lists the visible objects of a type.
func NewAPIRouter(db *core.CoreDB) http.Handler {
	var router = httprouter.New()
	router.GET("/:type", func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {

		objs, err := db.QueryModerated(req.Context(), params.ByName("type"))
		if err != nil {
			db.Log().Error("api", zap.String("type", params.ByName("type")), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, apiError{"internal error"})
			return
		}

		var result = make([]apiObject, 0, len(objs))
		for _, obj := range objs {
			result = append(result, apiObject{
				ID:      obj.ID,
				Fields:  obj.Fields,
				Created: obj.TsCreated,
				Changed: obj.TsChanged,
			})
		}
		writeJSON(w, http.StatusOK, result)
	})
	return router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
