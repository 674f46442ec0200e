package workdayapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Register mounts the workday routes on a group that already runs the auth
// middleware. handler may return nil while the service is still starting;
// those requests get 503.
func Register(api *gin.RouterGroup, handler func() *Handler) {
	route := func(action func(*Handler, *gin.Context)) gin.HandlerFunc {
		return func(c *gin.Context) {
			h := handler()
			if h == nil {
				c.AbortWithStatus(http.StatusServiceUnavailable)
				return
			}
			action(h, c)
		}
	}

	api.GET("/employees/:employeeId/workdays", route((*Handler).ListEmployeeWorkdays))

	workdays := api.Group("/workdays/:workdayId")
	workdays.GET("", route((*Handler).GetWorkday))
	workdays.PATCH("/tb", route((*Handler).PatchTb))
	workdays.PATCH("/rs", route((*Handler).PatchRs))
	workdays.POST("/recalculate", route((*Handler).Recalculate))
	workdays.POST("/release", route((*Handler).Release))
	workdays.GET("/events", route((*Handler).EventStatus))
	workdays.POST("/events/replay", route((*Handler).ReplayEvents))

	me := api.Group("/me")
	me.GET("/pin", route((*Handler).PinStatus))
	me.PUT("/pin", route((*Handler).SetPin))
	me.POST("/pin/verify", route((*Handler).VerifyPin))
}
