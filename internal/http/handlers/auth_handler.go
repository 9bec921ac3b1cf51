package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telehealth-backend/internal/services"
)

// RegisterRequest is the account creation payload.
type RegisterRequest struct {
	Name     string `json:"name"     example:"Jane Doe"`
	Email    string `json:"email"    example:"jane@example.com"`
	Password string `json:"password" example:"s3cret!"`
	// Role is patient (default) or doctor.
	Role string `json:"role,omitempty" example:"patient" enums:"patient,doctor"`
}

// LoginRequest is the credentials payload.
type LoginRequest struct {
	Email    string `json:"email"    example:"jane@example.com"`
	Password string `json:"password" example:"s3cret!"`
}

// Register godoc
// @ID          register
// @Summary     Register an account
// @Description Creates a patient or doctor account and returns a bearer token for it.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account"
// @Success     201   {object}  services.AuthResult
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed or email taken"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Exchanges email and password for a bearer token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  services.AuthResult
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     404  {object}  handlers.ErrorResponse  "User deleted"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.auth.Me(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
