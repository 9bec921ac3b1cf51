// Appointment HTTP handlers.
//
//   - POST  /appointments                 (book)
//   - GET   /appointments/my              (mine, as patient or doctor)
//   - PUT   /appointments/reschedule/{id} (new date, status back to requested)
//   - POST  /appointments/cancel/{id}     (patient or admin)
//   - PATCH /appointments/payment/{id}    (payment status)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telehealth-backend/internal/services"
)

// CreateAppointmentRequest books an appointment with a doctor user.
type CreateAppointmentRequest struct {
	// Doctor is the doctor's user id.
	Doctor string `json:"doctor" example:"7d0c6b7e-3c52-4a8e-9d8b-2f0e6f1f6a10"`
	// Date is RFC 3339 or YYYY-MM-DD.
	Date   string `json:"date"   example:"2026-11-02T09:30:00Z"`
	Reason string `json:"reason,omitempty" example:"Follow-up on blood work"`
}

// RescheduleRequest carries the new appointment date.
type RescheduleRequest struct {
	Date string `json:"date" example:"2026-11-03T14:00:00Z"`
}

// PaymentStatusRequest sets an appointment's payment status.
type PaymentStatusRequest struct {
	Status string `json:"status" example:"paid" enums:"unpaid,paid,refunded,failed"`
}

// CreateAppointment godoc
// @ID          createAppointment
// @Summary     Book an appointment
// @Description Books an appointment with status requested and payment unpaid. The doctor is notified by email.
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateAppointmentRequest  true  "Booking"
// @Success     201   {object}  domain.Appointment
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /appointments [post]
func (h *Handlers) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.appts.Create(c.Request.Context(), userID(c), services.CreateAppointmentInput{
		DoctorID: req.Doctor,
		Date:     req.Date,
		Reason:   req.Reason,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// MyAppointments godoc
// @ID          myAppointments
// @Summary     List my appointments
// @Description Appointments where the caller is the patient or the doctor, by date ascending.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
// @Success     200  {array}   domain.Appointment
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /appointments/my [get]
func (h *Handlers) MyAppointments(c *gin.Context) {
	items, err := h.appts.ListMine(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// RescheduleAppointment godoc
// @ID          rescheduleAppointment
// @Summary     Reschedule an appointment
// @Description Sets a new date and resets the status to requested. Patient or doctor only.
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                       true  "Appointment ID"  format(uuid)
// @Param       body  body      handlers.RescheduleRequest   true  "New date"
// @Success     200   {object}  domain.Appointment
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403   {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404   {object}  handlers.ErrorResponse  "Appointment not found"
// @Router      /appointments/reschedule/{id} [put]
func (h *Handlers) RescheduleAppointment(c *gin.Context) {
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.appts.Reschedule(c.Request.Context(), userID(c), c.Param("id"), req.Date)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// CancelAppointment godoc
// @ID          cancelAppointment
// @Summary     Cancel an appointment
// @Description Patient or admin only. Cancelling twice succeeds both times.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Appointment ID"  format(uuid)
// @Success     200  {object}  handlers.MsgResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not the patient or an admin"
// @Failure     404  {object}  handlers.ErrorResponse  "Appointment not found"
// @Router      /appointments/cancel/{id} [post]
func (h *Handlers) CancelAppointment(c *gin.Context) {
	if err := h.appts.Cancel(c.Request.Context(), userID(c), userRole(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MsgResponse{Msg: "Appointment cancelled"})
}

// UpdateAppointmentPayment godoc
// @ID          updateAppointmentPayment
// @Summary     Update payment status
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                          true  "Appointment ID"  format(uuid)
// @Param       body  body      handlers.PaymentStatusRequest   true  "Status"
// @Success     200   {object}  domain.Appointment
// @Failure     400   {object}  handlers.ErrorResponse  "Unknown status"
// @Failure     403   {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404   {object}  handlers.ErrorResponse  "Appointment not found"
// @Router      /appointments/payment/{id} [patch]
func (h *Handlers) UpdateAppointmentPayment(c *gin.Context) {
	var req PaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.appts.UpdatePayment(c.Request.Context(), userID(c), userRole(c), c.Param("id"), req.Status)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}
