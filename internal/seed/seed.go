package seed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/repository"
)

var (
	commonPreferred  = []string{"Glen", "Lock", "Banks"}
	commonAcceptable = []string{"Numen", "Richards", "Shaw", "Singer"}
	upperPreferred   = []string{"Glen", "Banks", "Zeldin", "Lock", "Singer"}
	upperAcceptable  = []string{"Richards", "Uther", "Shaw"}
)

// DefaultCatalog 返回 SLA 的真实排课目录，每次调用都返回一份新的拷贝
func DefaultCatalog() *domain.Catalog {
	return &domain.Catalog{
		Facilitators: []string{
			"Lock", "Glen", "Banks", "Richards", "Shaw",
			"Singer", "Uther", "Tyler", "Numen", "Zeldin",
		},
		TimeSlots: []string{"10 AM", "11 AM", "12 PM", "1 PM", "2 PM", "3 PM"},
		Rooms: []domain.Room{
			{Name: "Beach 201", Capacity: 18},
			{Name: "Beach 301", Capacity: 25},
			{Name: "Frank 119", Capacity: 95},
			{Name: "Loft 206", Capacity: 55},
			{Name: "Loft 310", Capacity: 48},
			{Name: "James 325", Capacity: 110},
			{Name: "Roman 201", Capacity: 40},
			{Name: "Roman 216", Capacity: 80},
			{Name: "Slater 003", Capacity: 32},
		},
		Activities: []domain.Activity{
			newActivity("SLA101A", 40, commonPreferred, commonAcceptable),
			newActivity("SLA101B", 35, commonPreferred, commonAcceptable),
			newActivity("SLA191A", 45, commonPreferred, commonAcceptable),
			newActivity("SLA191B", 40, commonPreferred, commonAcceptable),
			newActivity("SLA201", 60, upperPreferred, upperAcceptable),
			newActivity("SLA291", 50, upperPreferred, upperAcceptable),
			newActivity("SLA303", 25, []string{"Glen", "Zeldin"}, []string{"Banks"}),
			newActivity("SLA304", 20, []string{"Singer", "Uther"}, []string{"Richards"}),
			newActivity("SLA394", 15, []string{"Tyler", "Singer"}, []string{"Richards", "Zeldin"}),
			newActivity("SLA449", 30, []string{"Tyler", "Zeldin", "Uther"}, []string{"Zeldin", "Shaw"}),
			newActivity("SLA451", 90, []string{"Lock", "Banks", "Zeldin"}, []string{"Tyler", "Singer", "Shaw", "Glen"}),
		},
		SameCoursePairs: []domain.SectionPair{
			{First: "SLA101A", Second: "SLA101B"},
			{First: "SLA191A", Second: "SLA191B"},
		},
		CrossCoursePairs: []domain.SectionPair{
			{First: "SLA101A", Second: "SLA191A"},
			{First: "SLA101A", Second: "SLA191B"},
			{First: "SLA101B", Second: "SLA191A"},
			{First: "SLA101B", Second: "SLA191B"},
		},
		SpecialBuildings:       []string{"Beach", "Roman"},
		ReducedLoadFacilitator: "Tyler",
	}
}

func newActivity(name string, expected int, preferred []string, acceptable []string) domain.Activity {
	return domain.Activity{
		Name:                   name,
		ExpectedEnrollment:     expected,
		PreferredFacilitators:  append([]string{}, preferred...),
		AcceptableFacilitators: append([]string{}, acceptable...),
	}
}

// LoadCatalogFile 从 JSON 文件中读取目录，格式与 domain.Catalog 的 JSON 表示一致
func LoadCatalogFile(path string) (*domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	catalog := &domain.Catalog{}
	if err := json.Unmarshal(data, catalog); err != nil {
		return nil, fmt.Errorf("解析目录文件 %s 失败: %w", path, err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	return catalog, nil
}

func SeedCatalog(r *repository.Repository, catalog *domain.Catalog) {
	if err := catalog.Validate(); err != nil {
		slog.Error("目录不合法", "error", err)
		return
	}

	if err := r.InsertCatalog("sla", catalog); err != nil {
		slog.Error("插入目录失败", "error", err)
		return
	}

	slog.Info("插入目录完成", slog.Int("activities", len(catalog.Activities)), slog.Int("rooms", len(catalog.Rooms)))
}
