// Package catalog 提供只读的资源目录
// 手术室、外科医生和共享设备在当日初始化后不再变化，
// 急诊备用的手术室和医生在构建时即从常规资源池中剥离。
package catalog

import (
	"fmt"

	"github.com/paitai/paitai/pkg/model"
)

// Catalog 资源目录
type Catalog struct {
	rooms            []*model.Room // 常规手术室（有序）
	emergencyRoom    *model.Room   // 急诊专用手术室，不参与常规求解
	surgeons         []*model.Surgeon
	reserveSurgeons  map[string]string // 专科 -> 备班医生
	equipment        map[string]int
	reserveFallback  string // 备班医生查找失败时的兜底专科
}

// New 创建资源目录
// reserveSurgeons 中列出的医生会被标记为备班并从常规池剥离；
// emergencyOnly 的手术室同样不进入常规池。
func New(rooms []*model.Room, surgeons []*model.Surgeon, equipment []*model.Equipment,
	reserveSurgeons map[string]string, reserveFallback string) (*Catalog, error) {

	c := &Catalog{
		reserveSurgeons: reserveSurgeons,
		equipment:       make(map[string]int, len(equipment)),
		reserveFallback: reserveFallback,
	}

	for _, r := range rooms {
		if r.EmergencyOnly {
			if c.emergencyRoom != nil {
				return nil, fmt.Errorf("急诊手术室只能有一间: %s 与 %s", c.emergencyRoom.Name, r.Name)
			}
			c.emergencyRoom = r
			continue
		}
		c.rooms = append(c.rooms, r)
	}
	if c.emergencyRoom == nil {
		return nil, fmt.Errorf("缺少急诊专用手术室")
	}

	reserved := make(map[string]bool, len(reserveSurgeons))
	for _, name := range reserveSurgeons {
		reserved[name] = true
	}
	for _, s := range surgeons {
		if reserved[s.Name] {
			s.Reserve = true
		}
		c.surgeons = append(c.surgeons, s)
	}

	for _, e := range equipment {
		c.equipment[e.Name] = e.Capacity
	}

	return c, nil
}

// CompatibleRooms 返回支持指定手术类型的常规手术室（保持目录顺序）
// 未知类型返回空集，由求解器按"无法排入"处理而不是报错
func (c *Catalog) CompatibleRooms(caseType string) []*model.Room {
	var compatible []*model.Room
	for _, r := range c.rooms {
		if r.SupportsType(caseType) {
			compatible = append(compatible, r)
		}
	}
	return compatible
}

// CompatibleSurgeons 返回具备指定专科的常规医生
func (c *Catalog) CompatibleSurgeons(caseType string) []*model.Surgeon {
	var compatible []*model.Surgeon
	for _, s := range c.surgeons {
		if s.Reserve {
			continue
		}
		if s.HasSpecialty(caseType) {
			compatible = append(compatible, s)
		}
	}
	return compatible
}

// EquipmentCapacity 返回设备容量（未知设备返回0）
func (c *Catalog) EquipmentCapacity(name string) int {
	return c.equipment[name]
}

// Equipment 返回全部设备容量
func (c *Catalog) Equipment() map[string]int {
	out := make(map[string]int, len(c.equipment))
	for k, v := range c.equipment {
		out[k] = v
	}
	return out
}

// Rooms 返回常规手术室列表
func (c *Catalog) Rooms() []*model.Room {
	return c.rooms
}

// RoomByName 按名称查找手术室（包括急诊手术室）
func (c *Catalog) RoomByName(name string) *model.Room {
	for _, r := range c.rooms {
		if r.Name == name {
			return r
		}
	}
	if c.emergencyRoom != nil && c.emergencyRoom.Name == name {
		return c.emergencyRoom
	}
	return nil
}

// EmergencyRoom 返回急诊专用手术室
func (c *Catalog) EmergencyRoom() *model.Room {
	return c.emergencyRoom
}

// ReserveSurgeon 返回指定手术类型的备班医生
// 专科无备班医生时回退到兜底专科的备班医生
func (c *Catalog) ReserveSurgeon(caseType string) string {
	if name, ok := c.reserveSurgeons[caseType]; ok {
		return name
	}
	return c.reserveSurgeons[c.reserveFallback]
}
