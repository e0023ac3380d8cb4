package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Evian1k/school12k/core"
	"github.com/Evian1k/school12k/core/auth"
	"github.com/Evian1k/school12k/core/identity"
)

type authApi struct {
	conf     *core.Config
	idSvc    identity.Service
	issuer   *auth.Issuer
	sessions *auth.Manager
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *authApi) {
	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login-code", api.requestLoginCode)
	ag.POST("/register-code", api.requestRegistrationCode)
	ag.POST("/verify", api.verifyCode)
	ag.POST("/resend", api.resendCode)

	// authed endpoints
	authed := ag.Group("", jwt)
	authed.GET("/me", api.me)
	authed.POST("/logout", api.logout)
}

// Handlers

func (api *authApi) requestLoginCode(ctx echo.Context) error {
	var data CodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CodeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	vr, err := api.issuer.RequestCode(data.Email, auth.PurposeLogin, nil)
	if err != nil && err != auth.ErrDeliveryFailed {
		return err
	}
	return ctx.JSON(http.StatusOK, newCodeResponse(vr, err))
}

func (api *authApi) requestRegistrationCode(ctx echo.Context) error {
	var data identity.NewIdentity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewIdentity")
	}
	if err := data.Validate(api.validate, api.idSvc); err != nil {
		return err
	}

	pending, err := api.idSvc.Register(data)
	if err != nil {
		return errors.Wrap(err, "registering pending identity")
	}

	vr, err := api.issuer.RequestCode(pending.Email, auth.PurposeRegistration, &pending)
	if err != nil && err != auth.ErrDeliveryFailed {
		return err
	}
	return ctx.JSON(http.StatusOK, newCodeResponse(vr, err))
}

func (api *authApi) verifyCode(ctx echo.Context) error {
	var data VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	idn, err := api.issuer.Verify(data.Code)
	if err != nil {
		return err
	}

	cred, err := api.sessions.Issue(idn)
	if err != nil {
		return errors.Wrap(err, "issuing session credential")
	}

	return ctx.JSON(http.StatusOK, VerifyResponse{
		Token:     cred.Token,
		ExpiresAt: cred.ExpiresAt,
		Identity:  idn,
	})
}

func (api *authApi) resendCode(ctx echo.Context) error {
	vr, err := api.issuer.Resend()
	if err != nil && err != auth.ErrDeliveryFailed {
		return err
	}
	return ctx.JSON(http.StatusOK, newCodeResponse(vr, err))
}

func (api *authApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	idn, err := api.idSvc.GetByID(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding identity by ID")
	}
	return ctx.JSON(http.StatusOK, idn)
}

func (api *authApi) logout(ctx echo.Context) error {
	if err := api.sessions.Revoke(); err != nil {
		return errors.Wrap(err, "revoking session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Bindings

type (
	CodeRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	CodeResponse struct {
		Email     string    `json:"email"`
		Purpose   string    `json:"purpose"`
		ExpiresAt time.Time `json:"expires_at"`
		Delivered bool      `json:"delivered"`
		Warning   string    `json:"warning,omitempty"`
	}

	VerifyRequest struct {
		Code string `json:"code" validate:"required,len=6,numeric"`
	}

	VerifyResponse struct {
		Token     string            `json:"token"`
		ExpiresAt time.Time         `json:"expires_at"`
		Identity  identity.Identity `json:"identity"`
	}
)

func (cr *CodeRequest) Validate(validate *validator.Validate) error {
	cr.Email = core.CleanString(cr.Email, true /* lower */)
	return validate.Struct(cr)
}

func (vr *VerifyRequest) Validate(validate *validator.Validate) error {
	vr.Code = core.CleanString(vr.Code)
	return validate.Struct(vr)
}

// newCodeResponse reports a created request; a delivery failure is a
// warning, not a hard error - the code is still live.
func newCodeResponse(vr auth.VerificationRequest, err error) CodeResponse {
	resp := CodeResponse{
		Email:     vr.Email,
		Purpose:   string(vr.Purpose),
		ExpiresAt: vr.ExpiresAt,
		Delivered: err == nil,
	}
	if err == auth.ErrDeliveryFailed {
		resp.Warning = err.Error()
	}
	return resp
}
