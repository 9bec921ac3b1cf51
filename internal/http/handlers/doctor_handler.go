// Doctor directory HTTP handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telehealth-backend/internal/services"
	"github.com/tbourn/go-telehealth-backend/internal/utils"
)

const maxDoctorLimit = 100

// ProfileRequest creates the caller's doctor profile.
type ProfileRequest struct {
	Specialization string  `json:"specialization" example:"Cardiology"`
	Experience     int     `json:"experience"     example:"8"`
	Fees           float64 `json:"fees"           example:"45"`
	Bio            string  `json:"bio"            example:"Board-certified cardiologist."`
}

// RatingRequest scores a doctor.
type RatingRequest struct {
	Score   int    `json:"score"   example:"5" minimum:"1" maximum:"5"`
	Comment string `json:"comment,omitempty" example:"Very thorough."`
}

// ListDoctors godoc
// @ID          listDoctors
// @Summary     List doctors
// @Description Public directory. With q, profiles are ranked by relevance over specialization, bio and name.
// @Tags        Doctors
// @Produce     json
// @Param       q      query  string  false  "Free-text search"  example(cardio)
// @Param       limit  query  int     false  "Max results"       minimum(1) maximum(100)
// @Success     200  {array}   domain.DoctorProfile
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /doctors [get]
func (h *Handlers) ListDoctors(c *gin.Context) {
	limit := utils.ParseLimit(c.Query("limit"), 0, maxDoctorLimit)
	items, err := h.doctors.List(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetDoctor godoc
// @ID          getDoctor
// @Summary     Get a doctor profile
// @Tags        Doctors
// @Produce     json
// @Param       id   path      string  true  "Doctor profile ID"  format(uuid)
// @Success     200  {object}  domain.DoctorProfile
// @Failure     404  {object}  handlers.ErrorResponse  "Doctor not found"
// @Router      /doctors/{id} [get]
func (h *Handlers) GetDoctor(c *gin.Context) {
	d, err := h.doctors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// CreateDoctorProfile godoc
// @ID          createDoctorProfile
// @Summary     Create my doctor profile
// @Tags        Doctors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ProfileRequest  true  "Profile"
// @Success     201   {object}  domain.DoctorProfile
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed or profile exists"
// @Failure     403   {object}  handlers.ErrorResponse  "Doctors only"
// @Router      /doctors/profile [post]
func (h *Handlers) CreateDoctorProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	d, err := h.doctors.CreateProfile(c.Request.Context(), userID(c), services.ProfileInput{
		Specialization: req.Specialization,
		Experience:     req.Experience,
		Fees:           req.Fees,
		Bio:            req.Bio,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, d)
}

// VerifyDoctor godoc
// @ID          verifyDoctor
// @Summary     Verify a doctor
// @Description Marks the profile and its user as verified in one transaction. Admin only.
// @Tags        Doctors
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Doctor profile ID"  format(uuid)
// @Success     200  {object}  handlers.MsgResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Admins only"
// @Failure     404  {object}  handlers.ErrorResponse  "Doctor not found"
// @Router      /doctors/verify/{id} [post]
func (h *Handlers) VerifyDoctor(c *gin.Context) {
	if err := h.doctors.Verify(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MsgResponse{Msg: "Doctor verified"})
}

// RateDoctor godoc
// @ID          rateDoctor
// @Summary     Rate a doctor
// @Description Creates or replaces the caller's rating. Patients only.
// @Tags        Doctors
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                  true  "Doctor profile ID"  format(uuid)
// @Param       body  body      handlers.RatingRequest  true  "Rating"
// @Success     200   {object}  domain.DoctorProfile
// @Failure     400   {object}  handlers.ErrorResponse  "Score out of range"
// @Failure     404   {object}  handlers.ErrorResponse  "Doctor not found"
// @Router      /doctors/{id}/ratings [post]
func (h *Handlers) RateDoctor(c *gin.Context) {
	var req RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	d, err := h.doctors.Rate(c.Request.Context(), userID(c), c.Param("id"), req.Score, req.Comment)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}
