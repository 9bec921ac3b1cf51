package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Seed godoc
// @ID          devSeed
// @Summary     Seed development data
// @Description Idempotently creates a test patient, doctor, appointment and report, and returns a token for the patient. Disabled in production.
// @Tags        Dev
// @Produce     json
// @Success     200  {object}  services.AuthResult
// @Failure     403  {object}  handlers.ErrorResponse  "Not allowed in production"
// @Router      /dev/seed [post]
func (h *Handlers) Seed(c *gin.Context) {
	res, err := h.seed.Seed(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
