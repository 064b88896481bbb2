package utils

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

// ValidateAssignmentsWithCatalog 检查提交的排课表是否恰好覆盖目录中的每个活动，且取值都来自目录
func ValidateAssignmentsWithCatalog(rows []domain.ScheduledActivity, catalog *domain.Catalog) error {
	if len(rows) != len(catalog.Activities) {
		return fmt.Errorf("排课表中有 %d 个活动，目录中有 %d 个活动", len(rows), len(catalog.Activities))
	}

	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if catalog.ActivityIndex(row.Activity) < 0 {
			return fmt.Errorf("第 %d 项的活动 %s 不存在于目录中", i+1, row.Activity)
		}
		if seen[row.Activity] {
			return fmt.Errorf("活动 %s 重复", row.Activity)
		}
		seen[row.Activity] = true

		if _, ok := catalog.RoomCapacity(row.Room); !ok {
			return fmt.Errorf("活动 %s 的教室 %s 不存在于目录中", row.Activity, row.Room)
		}
		if catalog.TimeSlotIndex(row.TimeSlot) < 0 {
			return fmt.Errorf("活动 %s 的时间段 %s 不存在于目录中", row.Activity, row.TimeSlot)
		}
		if !catalog.HasFacilitator(row.Facilitator) {
			return fmt.Errorf("活动 %s 的负责人 %s 不存在于目录中", row.Activity, row.Facilitator)
		}
	}

	return nil
}

// ValidateRunParameters 在运行入队之前检查参数，避免 worker 拿到一定会失败的任务
func ValidateRunParameters(p *domain.RunParameters, minPopulationSize int) error {
	if p.PopulationSize < minPopulationSize {
		return fmt.Errorf("种群大小至少为 %d", minPopulationSize)
	}
	if p.ElitismCount < 0 || p.ElitismCount >= p.PopulationSize {
		return errors.New("精英数量必须小于种群大小")
	}
	if p.MinimumGenerations > p.MaximumGenerations {
		return errors.New("最少迭代次数不能大于最大迭代次数")
	}
	if p.CrossoverMethod != domain.CrossoverSinglePoint && p.CrossoverMethod != domain.CrossoverUniform {
		return fmt.Errorf("未知的交叉方式 %s", p.CrossoverMethod)
	}
	return nil
}
