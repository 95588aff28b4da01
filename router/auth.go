package router

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pictura/pictura/model"
)

// tokenResponse carries a fresh session token back to the client
type tokenResponse struct {
	Token string `json:"token"`
}

// SignUpHandler creates an account from an email, a password and
// a display name
func (app *App) SignUpHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorMethodNotAllowed,
		})
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorUnableReadBody,
		})
		return
	}

	var signup model.SignUpBody
	if err := json.Unmarshal(body, &signup); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidBody,
		})
		return
	}

	uid, err := app.Auth.SignUp(req.Context(), signup.Email, signup.Password, signup.DisplayName)
	if err != nil {
		jsonError(w, err, ErrorInvalidBody)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(model.RequestError{
		Error:   false,
		Message: uid,
	})
}

// SignInHandler exchanges credentials for a session token
func (app *App) SignInHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorMethodNotAllowed,
		})
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorUnableReadBody,
		})
		return
	}

	var signin model.SignInBody
	if err := json.Unmarshal(body, &signin); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidBody,
		})
		return
	}

	token, err := app.Auth.SignIn(req.Context(), signin.Email, signin.Password)
	if err != nil {
		jsonError(w, err, ErrorInvalidBody)
		return
	}

	json.NewEncoder(w).Encode(tokenResponse{Token: token})
}

// SignOutHandler drops the caller's identity and views
func (app *App) SignOutHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorMethodNotAllowed,
		})
		return
	}

	user, signed := app.identify(req)
	if !signed {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidToken,
		})
		return
	}

	app.Views.Drop(user.Id)
	app.Auth.SignOut()

	json.NewEncoder(w).Encode(model.RequestError{
		Error:   false,
		Message: Ok,
	})
}
