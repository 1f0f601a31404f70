// Package intake 解析与校验当日病例清单
// 支持 CSV 与 JSON 两种入口形态，统一转换为调度用的病例记录，
// 手术时长在转换时经由预测器补全。
package intake

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/paitai/paitai/pkg/errors"
	"github.com/paitai/paitai/pkg/model"
	"github.com/paitai/paitai/pkg/predictor"
)

// Record 病例清单记录
type Record struct {
	PatientID      string  `json:"patient_id" validate:"required"`
	Age            int     `json:"age" validate:"gte=0,lte=120"`
	Gender         string  `json:"gender" validate:"omitempty,oneof=M F Male Female"`
	BMI            float64 `json:"bmi" validate:"omitempty,gte=8,lte=80"`
	SurgeryType    string  `json:"surgery_type" validate:"required"`
	AnesthesiaType string  `json:"anesthesia_type"`
	HasComorbidity bool    `json:"has_comorbidity"`
	ASAScore       int     `json:"asa_score" validate:"gte=1,lte=5"`
	Surgeon        string  `json:"surgeon" validate:"required"`
	NeedsCArm      bool    `json:"needs_c_arm"`
	NeedsRobot     bool    `json:"needs_robot"`
}

var validate = validator.New()

// Validate 校验单条记录
func (r *Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return apperrors.New(apperrors.CodeValidationFail, "病例记录校验失败").
			WithCause(err).
			WithField("patient_id", r.PatientID)
	}
	return nil
}

// CSV 列名（大小写不敏感，下划线可省略）
var csvColumns = map[string]string{
	"patientid":      "patient_id",
	"age":            "age",
	"gender":         "gender",
	"bmi":            "bmi",
	"surgerytype":    "surgery_type",
	"anesthesiatype": "anesthesia_type",
	"hascomorbidity": "has_comorbidity",
	"asascore":       "asa_score",
	"surgeon":        "surgeon",
	"needscarm":      "needs_c_arm",
	"needsrobot":     "needs_robot",
}

// ParseCSV 解析病例清单 CSV
// 首行为列头，列序任意；未知列忽略，缺少必填列报错
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.InvalidInput("csv", "无法读取列头").WithCause(err)
	}

	// 列头归一化：去掉下划线和空格后小写匹配
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.NewReplacer("_", "", " ", "", "-", "").Replace(h))
		if col, ok := csvColumns[key]; ok {
			index[col] = i
		}
	}
	for _, required := range []string{"patient_id", "surgery_type", "surgeon", "asa_score"} {
		if _, ok := index[required]; !ok {
			return nil, apperrors.InvalidInput("csv", "缺少必填列: "+required)
		}
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.InvalidInput("csv", fmt.Sprintf("第 %d 行解析失败", line)).WithCause(err)
		}

		rec, err := recordFromRow(row, index)
		if err != nil {
			return nil, apperrors.InvalidInput("csv", fmt.Sprintf("第 %d 行字段无效", line)).WithCause(err)
		}
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, apperrors.InvalidInput("csv", "病例清单为空")
	}
	return records, nil
}

// recordFromRow 按列下标取值并做类型转换
func recordFromRow(row []string, index map[string]int) (Record, error) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rec Record
	var err error

	rec.PatientID = get("patient_id")
	rec.Gender = get("gender")
	rec.SurgeryType = get("surgery_type")
	rec.AnesthesiaType = get("anesthesia_type")
	rec.Surgeon = get("surgeon")

	if v := get("age"); v != "" {
		if rec.Age, err = strconv.Atoi(v); err != nil {
			return rec, fmt.Errorf("age: %w", err)
		}
	}
	if v := get("bmi"); v != "" {
		if rec.BMI, err = strconv.ParseFloat(v, 64); err != nil {
			return rec, fmt.Errorf("bmi: %w", err)
		}
	}
	if v := get("asa_score"); v != "" {
		if rec.ASAScore, err = strconv.Atoi(v); err != nil {
			return rec, fmt.Errorf("asa_score: %w", err)
		}
	}
	if rec.HasComorbidity, err = parseBool(get("has_comorbidity")); err != nil {
		return rec, fmt.Errorf("has_comorbidity: %w", err)
	}
	if rec.NeedsCArm, err = parseBool(get("needs_c_arm")); err != nil {
		return rec, fmt.Errorf("needs_c_arm: %w", err)
	}
	if rec.NeedsRobot, err = parseBool(get("needs_robot")); err != nil {
		return rec, fmt.Errorf("needs_robot: %w", err)
	}

	return rec, nil
}

// parseBool 解析布尔列（空值视为 false）
func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	default:
		return false, fmt.Errorf("无法识别的布尔值: %q", v)
	}
}

// Attributes 转换为预测输入
func (r *Record) Attributes() predictor.Attributes {
	return predictor.Attributes{
		PatientID:      r.PatientID,
		Age:            r.Age,
		Gender:         r.Gender,
		BMI:            r.BMI,
		SurgeryType:    r.SurgeryType,
		AnesthesiaType: r.AnesthesiaType,
		HasComorbidity: r.HasComorbidity,
		ASAScore:       r.ASAScore,
	}
}

// BuildCases 把清单记录转换为调度病例
// 手术时长由预测器补全，风险分取 ASA 分级
func BuildCases(records []Record, pred predictor.Predictor) []*model.CaseRecord {
	cases := make([]*model.CaseRecord, 0, len(records))
	for i := range records {
		rec := &records[i]
		cases = append(cases, &model.CaseRecord{
			ID:         rec.PatientID,
			Type:       rec.SurgeryType,
			Surgeon:    rec.Surgeon,
			Duration:   predictor.PredictOrFallback(pred, rec.Attributes()),
			RiskScore:  rec.ASAScore,
			NeedsCArm:  rec.NeedsCArm,
			NeedsRobot: rec.NeedsRobot,
		})
	}
	return cases
}
