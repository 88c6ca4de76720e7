package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/selfauth"
)

// sessionCookieName carries the opaque session token. It is also returned
// in the login JSON for clients that do not keep cookies.
const sessionCookieName = "session_token"

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

type credentialsBody struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	TwoFactorCode string `json:"two_factor_code"`
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decode(w, r, &body) {
		return
	}
	id, err := a.engine.Register(r.Context(), selfauth.RegisterRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.FullName,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, id)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decode(w, r, &body) {
		return
	}
	res, err := a.engine.Login(r.Context(), selfauth.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
		TOTPCode: body.TwoFactorCode,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	setSessionCookie(w, res.SessionToken, res.SessionExpiresAt)
	writeJSON(w, http.StatusOK, res)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Logout(r.Context(), identity(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, message{Message: "Successfully logged out"})
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identity(r))
}

func (a *api) session(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionToken string `json:"session_token"`
	}
	if !decode(w, r, &body) {
		return
	}
	token := body.SessionToken
	if token == "" {
		if c, err := r.Cookie(sessionCookieName); err == nil {
			token = c.Value
		}
	}
	sess, err := a.engine.ResolveSession(r.Context(), token)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *api) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decode(w, r, &body) {
		return
	}
	msg, err := a.engine.RequestPasswordReset(r.Context(), body.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: msg})
}

func (a *api) passwordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := a.engine.ConfirmPasswordReset(r.Context(), body.Token, body.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Password has been reset successfully"})
}

func (a *api) magicLinkRequest(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decode(w, r, &body) {
		return
	}
	msg, err := a.engine.RequestMagicLink(r.Context(), body.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: msg})
}

func (a *api) magicLinkLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token         string `json:"token"`
		TwoFactorCode string `json:"two_factor_code"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, err := a.engine.LoginWithMagicLink(r.Context(), selfauth.MagicLinkLoginRequest{
		Token:    body.Token,
		TOTPCode: body.TwoFactorCode,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	setSessionCookie(w, res.SessionToken, res.SessionExpiresAt)
	writeJSON(w, http.StatusOK, res)
}

type codeBody struct {
	Code string `json:"code"`
}

func (a *api) totpSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := a.engine.SetupTOTP(r.Context(), identity(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setup)
}

func (a *api) totpVerify(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if !decode(w, r, &body) {
		return
	}
	if err := a.engine.VerifyTOTP(r.Context(), identity(r), body.Code); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Two-factor authentication enabled successfully"})
}

func (a *api) totpDisable(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if !decode(w, r, &body) {
		return
	}
	if err := a.engine.DisableTOTP(r.Context(), identity(r), body.Code); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Two-factor authentication disabled successfully"})
}

func (a *api) updateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName *string `json:"full_name"`
	}
	if !decode(w, r, &body) {
		return
	}
	id, err := a.engine.UpdateProfile(r.Context(), identity(r), selfauth.ProfileUpdate{DisplayName: body.FullName})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (a *api) changePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := a.engine.ChangePassword(r.Context(), identity(r), body.CurrentPassword, body.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Password changed successfully"})
}

func (a *api) adminGet(w http.ResponseWriter, r *http.Request) {
	id, err := a.engine.AdminGetUser(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (a *api) adminUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsActive *bool `json:"is_active"`
		IsAdmin  *bool `json:"is_admin"`
	}
	if !decode(w, r, &body) {
		return
	}
	id, err := a.engine.AdminUpdateUser(r.Context(), identity(r), r.PathValue("id"), selfauth.AdminUpdate{
		Active: body.IsActive,
		Admin:  body.IsAdmin,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (a *api) adminDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.AdminDeleteUser(r.Context(), identity(r), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "User deleted successfully"})
}
