// Package model 定义手术排台引擎的核心数据模型
package model

// CaseType 手术类型标签
type CaseType = string

const (
	TypeNeurological   CaseType = "Neurological"
	TypeSpinal         CaseType = "Spinal"
	TypeCardiovascular CaseType = "Cardiovascular"
	TypeThoracic       CaseType = "Thoracic"
	TypeGeneral        CaseType = "General"
	TypeOrthopedic     CaseType = "Orthopedic"
	TypeCosmetic       CaseType = "Cosmetic"
	TypeUrology        CaseType = "Urology"
)

// Room 手术室资源
// 当日内不可变，临时不可用窗口记录在病例的约束集合上
type Room struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Supported     []string `json:"supported"`      // 支持的手术类型（有序）
	EmergencyOnly bool     `json:"emergency_only"` // 仅用于急诊直接预约
}

// SupportsType 检查手术室是否支持指定手术类型
func (r *Room) SupportsType(caseType string) bool {
	for _, t := range r.Supported {
		if t == caseType {
			return true
		}
	}
	return false
}

// Surgeon 外科医生资源
type Surgeon struct {
	Name        string   `json:"name"`
	Specialties []string `json:"specialties"`
	Reserve     bool     `json:"reserve"` // 急诊备班医生，不参与常规排台
}

// HasSpecialty 检查医生是否具备指定专科
func (s *Surgeon) HasSpecialty(caseType string) bool {
	for _, t := range s.Specialties {
		if t == caseType {
			return true
		}
	}
	return false
}

// Equipment 共享设备资源
// 设备是累积资源：并发占用数不超过容量即可，与手术室的独占语义不同
type Equipment struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"` // 可互换单元数量
}

// 设备名称
const (
	EquipmentCArm  = "C-Arm"
	EquipmentRobot = "Robot"
)
