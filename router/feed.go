package router

import (
	"encoding/json"
	"net/http"

	"github.com/pictura/pictura/model"
	"github.com/pictura/pictura/view"
)

// feedPage is what every feed endpoint responds with
type feedPage struct {
	Posts   []model.Post `json:"posts"`
	HasMore bool         `json:"has_more"`
}

// FeedHandler re-routes to the requested feed operation
func (app *App) FeedHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorMethodNotAllowed,
		})
		return
	}

	switch req.URL.Path {
	case "/feed", "/feed/":
		app.servePage(w, req, func(v *view.View) error {
			if v.Loaded() {
				return nil
			}
			return v.Load(req.Context())
		})
	case "/feed/next":
		app.servePage(w, req, func(v *view.View) error {
			if !v.Loaded() {
				return v.Load(req.Context())
			}
			return v.More(req.Context())
		})
	case "/feed/refresh":
		app.servePage(w, req, func(v *view.View) error {
			return v.Reset(req.Context())
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidView,
		})
	}
}

// servePage runs one feed operation against the caller's view
// and answers with the view's local list
func (app *App) servePage(w http.ResponseWriter, req *http.Request, op func(*view.View) error) {
	w.Header().Set("Content-Type", "application/json")

	user, signed := app.identify(req)

	// The global feed is public; owner-scoped views are not
	wanted := req.URL.Query().Get("view")
	if (wanted == "mine" || wanted == "saved") && !signed {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidToken,
		})
		return
	}

	s := app.Views.Session(user.Id)
	v := app.viewFor(req, s)

	if err := op(v); err != nil {
		jsonError(w, err, ErrorInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(feedPage{
		Posts:   v.Posts(),
		HasMore: v.HasMore(),
	})
}
