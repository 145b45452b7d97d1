package handler

import (
	"context"
	"net/http"
	"strconv"

	"partsreserve/internal/middleware"
	"partsreserve/internal/model"
	"partsreserve/internal/service"
	"partsreserve/pkg/pagination"
	"partsreserve/pkg/response"

	"github.com/gin-gonic/gin"
)

// SweepTrigger runs the expiration sweep on demand.
type SweepTrigger interface {
	Trigger(ctx context.Context, actor model.Actor) (service.SweepResult, error)
}

type ReservationHandler struct {
	reservationService  service.ReservationService
	verificationService service.VerificationService
	sweeper             SweepTrigger
	verifyLimiter       gin.HandlerFunc
}

func NewReservationHandler(
	reservationService service.ReservationService,
	verificationService service.VerificationService,
	sweeper SweepTrigger,
	verifyLimiter gin.HandlerFunc,
) *ReservationHandler {
	if verifyLimiter == nil {
		verifyLimiter = func(c *gin.Context) { c.Next() }
	}
	return &ReservationHandler{
		reservationService:  reservationService,
		verificationService: verificationService,
		sweeper:             sweeper,
		verifyLimiter:       verifyLimiter,
	}
}

// RegisterRoutes expects router to be behind middleware.Authenticate.
func (h *ReservationHandler) RegisterRoutes(router *gin.RouterGroup) {
	reservations := router.Group("/reservations")
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	{
		reservations.POST("", h.CreateReservation)
		reservations.GET("", h.ListReservations)
		reservations.GET("/verify", adminOnly, h.verifyLimiter, h.VerifyReservation)
		reservations.POST("/verify", adminOnly, h.verifyLimiter, h.CompleteReservation)
		reservations.GET("/check-expiring", adminOnly, h.CheckExpiring)
		reservations.GET("/:id", h.GetReservation)
		reservations.PATCH("/:id", h.TransitionReservation)
	}
}

// CreateReservation holds stock for the caller
// @Summary      Create reservation
// @Description  Reserves stock for the caller. DEPOSIT reservations require a payment proof reference.
// @Tags         reservations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateReservationRequest  true  "Reservation payload"
// @Success      201      {object}  response.Response{data=model.Reservation}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/reservations [post]
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	reservation, err := h.reservationService.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, reservation))
}

// ListReservations lists reservations visible to the caller
// @Summary      List reservations
// @Description  Customers see their own reservations, admins see all. Newest first.
// @Tags         reservations
// @Security     BearerAuth
// @Produce      json
// @Param        status      query     string  false  "Filter by status"
// @Param        product_id  query     string  false  "Filter by product"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=object}
// @Failure      400         {object}  response.Response
// @Router       /api/reservations [get]
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	reservations, meta, err := h.reservationService.List(c.Request.Context(), actor, service.ReservationListFilter{
		Status:    c.Query("status"),
		ProductID: c.Query("product_id"),
		Page:      p.Page,
		Limit:     p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"reservations": reservations,
		"meta":         meta,
	}))
}

// GetReservation returns one reservation
// @Summary      Get reservation
// @Tags         reservations
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Reservation ID"
// @Success      200  {object}  response.Response{data=model.Reservation}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/reservations/{id} [get]
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	reservation, err := h.reservationService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, reservation))
}

// TransitionReservation drives the reservation state machine
// @Summary      Apply reservation action
// @Description  Actions: cancel (owner or admin), verify_deposit, approve, reject, complete (admin).
// @Tags         reservations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Reservation ID"
// @Param        payload  body      service.TransitionRequest  true  "Action payload"
// @Success      200      {object}  response.Response{data=model.Reservation}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/reservations/{id} [patch]
func (h *ReservationHandler) TransitionReservation(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	reservation, err := h.reservationService.Transition(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, reservation))
}

// VerifyReservation resolves a pickup code
// @Summary      Look up reservation by code
// @Description  Read-only. Returns the reservation with is_expired and can_complete flags.
// @Tags         verification
// @Security     BearerAuth
// @Produce      json
// @Param        code  query     string  true  "Verification code"
// @Success      200   {object}  response.Response{data=service.VerificationResult}
// @Failure      404   {object}  response.Response
// @Failure      429   {object}  response.Response
// @Router       /api/reservations/verify [get]
func (h *ReservationHandler) VerifyReservation(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	result, err := h.verificationService.Lookup(c.Request.Context(), actor, c.Query("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CompleteReservation completes a reservation at the counter
// @Summary      Complete reservation by code
// @Tags         verification
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.VerifyCompleteRequest  true  "Code payload"
// @Success      200      {object}  response.Response{data=model.Reservation}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /api/reservations/verify [post]
func (h *ReservationHandler) CompleteReservation(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.VerifyCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	reservation, err := h.verificationService.Complete(c.Request.Context(), actor, req.Code, req.AdminNotes)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, reservation))
}

// CheckExpiring runs the expiration sweep now
// @Summary      Run expiration sweep
// @Description  Idempotent. Expires overdue reservations and emits expiring-soon warnings.
// @Tags         reservations
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.SweepResult}
// @Failure      403  {object}  response.Response
// @Router       /api/reservations/check-expiring [get]
func (h *ReservationHandler) CheckExpiring(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	result, err := h.sweeper.Trigger(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("X-Expired-Count", strconv.Itoa(len(result.ExpiredIDs)))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
