package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/export"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/runner"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/utils"
)

// runRequest 中没有给出的参数使用配置中的默认值
type runRequest struct {
	Name                       string   `json:"name" validate:"max=100"`
	PopulationSize             *int     `json:"populationSize" validate:"omitempty,min=1"`
	MinimumGenerations         *int     `json:"minimumGenerations" validate:"omitempty,min=0"`
	MaximumGenerations         *int     `json:"maximumGenerations" validate:"omitempty,min=1"`
	InitialMutationProbability *float64 `json:"initialMutationProbability" validate:"omitempty,gt=0,lt=1"`
	CrossoverMethod            *string  `json:"crossoverMethod" validate:"omitempty,oneof=single_point uniform"`
	ElitismCount               *int     `json:"elitismCount" validate:"omitempty,min=0"`
	UseAdaptiveMutation        *bool    `json:"useAdaptiveMutation"`
	Seed                       *uint64  `json:"seed"`
}

func (req *runRequest) parameters(defaults domain.RunParameters) domain.RunParameters {
	p := defaults
	if req.PopulationSize != nil {
		p.PopulationSize = *req.PopulationSize
	}
	if req.MinimumGenerations != nil {
		p.MinimumGenerations = *req.MinimumGenerations
	}
	if req.MaximumGenerations != nil {
		p.MaximumGenerations = *req.MaximumGenerations
	}
	if req.InitialMutationProbability != nil {
		p.InitialMutationProbability = *req.InitialMutationProbability
	}
	if req.CrossoverMethod != nil {
		p.CrossoverMethod = domain.CrossoverMethod(*req.CrossoverMethod)
	}
	if req.ElitismCount != nil {
		p.ElitismCount = *req.ElitismCount
	}
	if req.UseAdaptiveMutation != nil {
		p.UseAdaptiveMutation = *req.UseAdaptiveMutation
	}
	if req.Seed != nil {
		p.Seed = *req.Seed
	}
	return p
}

// newRunFromRequest 读取并校验请求，返回尚未持久化的运行
func (h *Handler) newRunFromRequest(w http.ResponseWriter, r *http.Request) (*domain.SchedulingRun, bool) {
	var req runRequest

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}

	params := req.parameters(runner.DefaultRunParameters(h.config))
	if err := utils.ValidateRunParameters(&params, h.config.Scheduler.MinPopulationSize); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	name := req.Name
	if name == "" {
		name = utils.DefaultRunName(time.Now())
	}

	return &domain.SchedulingRun{
		Name:       name,
		Parameters: params,
		CreatedBy:  myInfo.ID,
	}, true
}

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request, run *domain.SchedulingRun) bool {
	if err := h.repository.CreateSchedulingRun(run); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "scheduling_runs_created_by_fkey":
			h.errorResponse(w, r, "用户不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return false
	}
	return true
}

func (h *Handler) GetAllSchedulingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetAllSchedulingRuns()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取所有排课运行成功", runs)
}

// CreateSchedulingRun 创建运行并投递到排课队列
func (h *Handler) CreateSchedulingRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.newRunFromRequest(w, r)
	if !ok {
		return
	}
	if !h.createRun(w, r, run) {
		return
	}

	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	if _, err := h.enqueueSchedulingJob(r.Context(), run, myInfo.Email); err != nil {
		// 投递失败的运行永远不会被执行，直接标记为失败
		if updateErr := h.repository.UpdateSchedulingRunStatus(run.ID, domain.RunStatusFailed, "投递排课任务失败"); updateErr != nil {
			h.logInternalServerError(r, updateErr)
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "已提交排课任务", run)
}

// GenerateSchedulingRun 同步执行一次排课，同一时间只允许一个同步排课
func (h *Handler) GenerateSchedulingRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.newRunFromRequest(w, r)
	if !ok {
		return
	}

	release, err := h.acquireRunLock(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrRunLocked):
			h.errorResponse(w, r, err.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	defer release()

	if !h.createRun(w, r, run) {
		return
	}

	if err := h.runner.Execute(run); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrInvalidParameters):
			h.badRequest(w, r, err)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.cacheSchedulingRun(r.Context(), run)

	h.successResponse(w, r, "排课成功", run)
}

func (h *Handler) GetSchedulingRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(SchedulingRunCtx).(*domain.SchedulingRun)

	h.successResponse(w, r, "获取排课运行成功", run)
}

func (h *Handler) DeleteSchedulingRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(SchedulingRunCtx).(*domain.SchedulingRun)

	if run.Status == domain.RunStatusRunning {
		h.errorResponse(w, r, "排课运行正在执行，无法删除")
		return
	}

	if err := h.repository.DeleteSchedulingRun(run.ID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "排课运行不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.invalidateSchedulingRun(r.Context(), run.ID)

	h.successResponse(w, r, "删除排课运行成功", nil)
}

func (h *Handler) GetSchedulingRunHistory(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(SchedulingRunCtx).(*domain.SchedulingRun)

	history, err := h.repository.GetSchedulingRunHistory(run.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取迭代历史成功", history)
}

// ExportSchedulingRun 以文件形式下载运行结果，格式由 format 查询参数决定
func (h *Handler) ExportSchedulingRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(SchedulingRunCtx).(*domain.SchedulingRun)

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	if run.Status != domain.RunStatusSucceeded {
		h.errorResponse(w, r, "排课运行尚未成功完成")
		return
	}

	report := export.ReportFromRun(run)
	if format == export.FormatHistoryCSV || format == export.FormatWorkbook {
		report.History, err = h.repository.GetSchedulingRunHistory(run.ID)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	filename := utils.ReportFileName(run.ID, run.Name, format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.Write(w, format, report); err != nil {
		h.logInternalServerError(r, err)
	}
}
