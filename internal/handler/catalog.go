package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/utils"
)

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取排课目录成功", h.catalog)
}

type assignmentRequest struct {
	Activity    string `json:"activity" validate:"required"`
	Room        string `json:"room" validate:"required"`
	TimeSlot    string `json:"timeSlot" validate:"required"`
	Facilitator string `json:"facilitator" validate:"required"`
}

type evaluationResult struct {
	Fitness         float64        `json:"fitness"`
	Violations      map[string]int `json:"violations"`
	TotalViolations int            `json:"totalViolations"`
}

// EvaluateSchedule 计算一张完整排课表的适应度和违反统计
func (h *Handler) EvaluateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Assignments []assignmentRequest `json:"assignments" validate:"required,min=1,dive"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	rows := make([]domain.ScheduledActivity, len(req.Assignments))
	for i, a := range req.Assignments {
		rows[i] = domain.ScheduledActivity(a)
	}

	if err := utils.ValidateAssignmentsWithCatalog(rows, h.catalog); err != nil {
		h.badRequest(w, r, err)
		return
	}

	schedule, err := scheduler.ScheduleFromRows(h.catalog, rows)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	violations := h.evaluator.Violations(schedule)
	h.successResponse(w, r, "评估排课表成功", evaluationResult{
		Fitness:         h.evaluator.Score(schedule),
		Violations:      violations.ToMap(),
		TotalViolations: violations.Total(),
	})
}
