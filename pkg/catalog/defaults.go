package catalog

import "github.com/paitai/paitai/pkg/model"

// 运营常量（分钟）
const (
	DefaultDayStart     = 8 * 60  // 08:00
	DefaultDayEnd       = 20 * 60 // 20:00，允许加班超出
	DefaultHorizon      = 24 * 60 // 求解时域 00:00-24:00
	DefaultTurnover     = 30      // 手术室清洁时间
	DefaultSurgeonBreak = 30      // 医生强制休息时间
)

// Default 返回默认的医院资源目录
// 13间手术室（含急诊创伤间）、10名医生（每个专科留一名备班）、
// 4台C臂机和1台手术机器人
func Default() *Catalog {
	rooms := []*model.Room{
		// 专科手术室（严格准入）
		{ID: 1, Name: "OR-1 (Neuro)", Supported: []string{model.TypeNeurological, model.TypeSpinal}},
		{ID: 2, Name: "OR-2 (Neuro)", Supported: []string{model.TypeNeurological, model.TypeSpinal}},
		{ID: 3, Name: "OR-3 (Cardio)", Supported: []string{model.TypeCardiovascular, model.TypeThoracic}},
		{ID: 4, Name: "OR-4 (Cardio)", Supported: []string{model.TypeCardiovascular, model.TypeThoracic}},

		// 通用手术室（灵活准入）
		{ID: 5, Name: "OR-5 (General)", Supported: []string{model.TypeGeneral, model.TypeOrthopedic, model.TypeCosmetic}},
		{ID: 6, Name: "OR-6 (General)", Supported: []string{model.TypeGeneral, model.TypeOrthopedic, model.TypeCosmetic}},
		{ID: 7, Name: "OR-7 (Ortho)", Supported: []string{model.TypeOrthopedic, model.TypeGeneral}},
		{ID: 8, Name: "OR-8 (Ortho)", Supported: []string{model.TypeOrthopedic, model.TypeGeneral}},
		{ID: 9, Name: "OR-9 (Hybrid)", Supported: []string{model.TypeGeneral, model.TypeUrology, model.TypeCosmetic}},
		{ID: 10, Name: "OR-10 (Robot)", Supported: []string{model.TypeGeneral, model.TypeUrology}},
		{ID: 11, Name: "OR-11 (General)", Supported: []string{model.TypeGeneral, model.TypeOrthopedic, model.TypeCardiovascular}},
		{ID: 12, Name: "OR-12 (Cosmetic)", Supported: []string{model.TypeCosmetic, model.TypeGeneral}},

		// 急诊创伤间，仅用于Code Red直接预约
		{ID: 13, Name: "OR-13 (Trauma Bay)", EmergencyOnly: true,
			Supported: []string{model.TypeNeurological, model.TypeCardiovascular, model.TypeOrthopedic, model.TypeGeneral, model.TypeCosmetic, model.TypeUrology}},
	}

	surgeons := []*model.Surgeon{
		{Name: "Dr. Strange", Specialties: []string{model.TypeNeurological}},
		{Name: "Dr. Shepherd", Specialties: []string{model.TypeNeurological}},
		{Name: "Dr. Yang", Specialties: []string{model.TypeCardiovascular}},
		{Name: "Dr. Burke", Specialties: []string{model.TypeCardiovascular}},
		{Name: "Dr. House", Specialties: []string{model.TypeGeneral, model.TypeOrthopedic}},
		{Name: "Dr. Grey", Specialties: []string{model.TypeGeneral}},
		{Name: "Dr. Torres", Specialties: []string{model.TypeOrthopedic}},
		{Name: "Dr. Lincoln", Specialties: []string{model.TypeOrthopedic}},
		{Name: "Dr. Avery", Specialties: []string{model.TypeCosmetic, model.TypeGeneral}},
		{Name: "Dr. Bailey", Specialties: []string{model.TypeGeneral}},
	}

	// 每个专科的备班医生，专门留给急诊直接预约
	reserve := map[string]string{
		model.TypeNeurological:   "Dr. Shepherd",
		model.TypeCardiovascular: "Dr. Burke",
		model.TypeOrthopedic:     "Dr. Lincoln",
		model.TypeGeneral:        "Dr. Grey",
		model.TypeCosmetic:       "Dr. Avery",
		model.TypeUrology:        "Dr. Grey",
	}

	equipment := []*model.Equipment{
		{Name: model.EquipmentCArm, Capacity: 4},
		{Name: model.EquipmentRobot, Capacity: 1},
	}

	c, err := New(rooms, surgeons, equipment, reserve, model.TypeGeneral)
	if err != nil {
		// 默认目录是静态数据，构建失败属于程序缺陷
		panic(err)
	}
	return c
}
