package workdayapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/utils"
	"github.com/montron/pm_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Handler struct {
	DB       *gorm.DB
	Pins     *workflow.PinGuard
	Releaser *workflow.Releaser
	Logger   *logrus.Logger
	validate *validator.Validate
}

func New(db *gorm.DB, pins *workflow.PinGuard, releaser *workflow.Releaser, logger *logrus.Logger) *Handler {
	return &Handler{
		DB:       db,
		Pins:     pins,
		Releaser: releaser,
		Logger:   config.LoggerOrDefault(logger),
		validate: newValidator(),
	}
}

func actorFrom(c *gin.Context) (workflow.Actor, bool) {
	ctx := c.Request.Context()
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return workflow.Actor{}, false
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return workflow.Actor{}, false
	}
	return workflow.Actor{CompanyId: companyId, UserId: userId}, true
}

// withActor aborts with 401 when the request carries no tenant.
func withActor(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return actor, ok
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) ListEmployeeWorkdays(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	workdays, err := workflow.ListEmployeeWorkdays(c.Request.Context(), h.DB, actor.CompanyId,
		c.Param("employeeId"), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workdays": workdays})
}

func (h *Handler) GetWorkday(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	detail, err := workflow.GetWorkdayDetail(c.Request.Context(), h.DB, actor.CompanyId, c.Param("workdayId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) PatchTb(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	var patch workflow.TbPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := workflow.PatchTb(c.Request.Context(), h.DB, actor, c.Param("workdayId"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) PatchRs(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	var patch workflow.RsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := workflow.PatchRs(c.Request.Context(), h.DB, actor, c.Param("workdayId"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) Recalculate(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	issues, err := workflow.Recalculate(c.Request.Context(), h.DB, actor.CompanyId, c.Param("workdayId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

func (h *Handler) EventStatus(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	status, err := workflow.GetWorkdayEventStatus(c.Request.Context(), h.DB, actor.CompanyId, c.Param("workdayId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) ReplayEvents(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	status, err := workflow.ReplayWorkdayEvents(c.Request.Context(), h.DB, actor, c.Param("workdayId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, status)
}

func (h *Handler) Release(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	var req ReleaseRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.Releaser.ReleaseWorkday(c.Request.Context(), workflow.ReleaseCommand{
		Actor:          actor,
		WorkdayId:      c.Param("workdayId"),
		Pin:            req.Pin,
		ForceRelease:   req.ForceRelease,
		OverrideReason: req.OverrideReason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) PinStatus(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	status, err := h.Pins.Status(c.Request.Context(), actor.CompanyId, actor.UserId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) SetPin(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	var req PinRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.Pins.SetPin(c.Request.Context(), actor.CompanyId, actor.UserId, req.Pin); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) VerifyPin(c *gin.Context) {
	actor, ok := withActor(c)
	if !ok {
		return
	}
	var req PinRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.Pins.Verify(c.Request.Context(), actor.CompanyId, actor.UserId, req.Pin); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
