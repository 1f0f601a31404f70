// Package predictor 封装时长预测协作方
// 预测服务是外部黑盒：属性进、分钟数出。服务不可用时降级为固定兜底时长，绝不中断排台。
package predictor

import (
	"github.com/paitai/paitai/pkg/logger"
	"github.com/paitai/paitai/pkg/model"
)

// 兜底时长（分钟）
const (
	FallbackDuration = 90  // 单次预测失败
	NoModelDuration  = 120 // 预测模型完全不可用
)

// Attributes 病例属性（预测输入）
type Attributes struct {
	PatientID      string  `json:"patient_id"`
	Age            int     `json:"age"`
	Gender         string  `json:"gender"`
	BMI            float64 `json:"bmi"`
	SurgeryType    string  `json:"surgery_type"`
	AnesthesiaType string  `json:"anesthesia_type"`
	HasComorbidity bool    `json:"has_comorbidity"`
	ASAScore       int     `json:"asa_score"`
}

// Predictor 时长预测接口
type Predictor interface {
	// Predict 预测手术时长（分钟）
	Predict(attrs Attributes) (int, error)
}

// PredictOrFallback 预测时长，失败时降级为兜底常量
// p 为 nil 表示模型完全不可用
func PredictOrFallback(p Predictor, attrs Attributes) int {
	if p == nil {
		return NoModelDuration
	}
	mins, err := p.Predict(attrs)
	if err != nil || mins <= 0 {
		logger.Warn().
			Str("patient_id", attrs.PatientID).
			Err(err).
			Int("fallback", FallbackDuration).
			Msg("时长预测失败，使用兜底时长")
		return FallbackDuration
	}
	return mins
}

// Heuristic 启发式预测器
// 在外部模型产物缺失时提供确定性的线性估计
type Heuristic struct{}

// 各手术类型的基准时长（分钟）
var baseDurations = map[string]int{
	model.TypeNeurological:   180,
	model.TypeSpinal:         150,
	model.TypeCardiovascular: 200,
	model.TypeThoracic:       170,
	model.TypeGeneral:        90,
	model.TypeOrthopedic:     120,
	model.TypeCosmetic:       75,
	model.TypeUrology:        100,
}

// Predict 预测手术时长
func (h *Heuristic) Predict(attrs Attributes) (int, error) {
	base, ok := baseDurations[attrs.SurgeryType]
	if !ok {
		base = FallbackDuration
	}

	mins := base
	mins += (attrs.ASAScore - 1) * 12
	if attrs.HasComorbidity {
		mins += 15
	}
	if attrs.AnesthesiaType == "General" {
		mins += 10
	}
	if attrs.BMI >= 35 || attrs.BMI > 0 && attrs.BMI < 17 {
		mins += 20
	}
	if attrs.Age >= 70 {
		mins += 10
	}

	return mins, nil
}
