package http

import (
	"errors"
	"golang-scheduled-task/internal/dto"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/pkg/utils"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupScheduledTasks(base *echo.Group) {
	v1 := base.Group("/v1/scheduled-tasks")
	{
		v1.GET("", h.ListScheduledTasks)
		v1.GET("/:id/executions", h.ListExecutions)
		v1.POST("/run", h.RunScheduledTasks)
		v1.POST("/:id/run", h.RunScheduledTask)
		v1.POST("/validate", h.ValidateScheduledTask)
	}
}

func (h *HttpAPIHandler) ListScheduledTasks(c echo.Context) error {
	var (
		groupID uint
		active  bool
		limit   int
	)
	err := echo.QueryParamsBinder(c).
		Uint("group_id", &groupID).
		Bool("is_active", &active).
		Int("limit", &limit).
		BindError()
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	var param model.ListScheduledTaskParam
	if c.QueryParam("group_id") != "" {
		param.GroupID = &groupID
	}
	if c.QueryParam("is_active") != "" {
		param.IsActive = &active
	}
	if limit > 0 {
		param.Limit = &limit
	}

	tasks, err := h.service.SchedulerService.List(c.Request().Context(), param)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Scheduled tasks", tasks))
}

func (h *HttpAPIHandler) ListExecutions(c echo.Context) error {
	var (
		id    uint
		limit int
	)
	if err := echo.PathParamsBinder(c).MustUint("id", &id).BindError(); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid scheduled task id"))
	}
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	executions, err := h.service.SchedulerService.History(c.Request().Context(), id, limit)
	if err != nil {
		if errors.Is(err, model.ErrScheduledTaskNotFound) {
			return c.JSON(http.StatusNotFound, dto.NewBaseResponse(http.StatusNotFound, err.Error(), nil))
		}
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Scheduled task executions", executions))
}

func (h *HttpAPIHandler) RunScheduledTasks(c echo.Context) error {
	asOf, errResp := h.bindRunRequest(c, nil)
	if errResp != nil {
		return c.JSON(errResp.Code, errResp)
	}

	report, err := h.service.SchedulerService.RunBatch(c.Request().Context(), asOf)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), report))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Scheduled task run completed", report))
}

func (h *HttpAPIHandler) RunScheduledTask(c echo.Context) error {
	var id uint
	if err := echo.PathParamsBinder(c).MustUint("id", &id).BindError(); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid scheduled task id"))
	}
	var req dto.RunRequest
	asOf, errResp := h.bindRunRequest(c, &req)
	if errResp != nil {
		return c.JSON(errResp.Code, errResp)
	}

	outcome, err := h.service.SchedulerService.RunOne(c.Request().Context(), id, asOf, req.Force)
	if err != nil {
		if errors.Is(err, model.ErrScheduledTaskNotFound) {
			return c.JSON(http.StatusNotFound, dto.NewBaseResponse(http.StatusNotFound, err.Error(), nil))
		}
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	if outcome.Kind == dto.OutcomeFailed {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, outcome.Error, outcome))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(string(outcome.Kind), outcome))
}

func (h *HttpAPIHandler) ValidateScheduledTask(c echo.Context) error {
	var req dto.ScheduledTaskInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	task, err := h.service.ScheduledTaskService.Validate(c.Request().Context(), req)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, dto.NewBaseResponse(http.StatusBadRequest, verr.Error(), verr))
		}
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Scheduled task is valid", task))
}

// bindRunRequest reads an optional run request body. A missing as_of means now.
func (h *HttpAPIHandler) bindRunRequest(c echo.Context, req *dto.RunRequest) (time.Time, *dto.BaseResponse) {
	if req == nil {
		req = &dto.RunRequest{}
	}
	if err := c.Bind(req); err != nil {
		return time.Time{}, dto.NewBadRequestResponse(err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		return time.Time{}, dto.NewBadRequestResponse(err.Error())
	}

	loc := h.service.SchedulerService.Location()
	if req.AsOf == "" {
		return utils.TimeNowIn(loc), nil
	}
	asOf, err := utils.ParseAsOf(req.AsOf, loc)
	if err != nil {
		return time.Time{}, dto.NewBadRequestResponse(err.Error())
	}
	return asOf, nil
}
