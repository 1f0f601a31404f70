package predictor

import (
	"errors"
	"testing"

	"github.com/paitai/paitai/pkg/model"
)

// failingPredictor 总是失败的预测器
type failingPredictor struct{}

func (failingPredictor) Predict(Attributes) (int, error) {
	return 0, errors.New("模型服务不可用")
}

func TestPredictOrFallback(t *testing.T) {
	attrs := Attributes{PatientID: "P-001", SurgeryType: model.TypeGeneral, ASAScore: 2}

	t.Run("模型完全不可用", func(t *testing.T) {
		if got := PredictOrFallback(nil, attrs); got != NoModelDuration {
			t.Errorf("got %d, expected %d", got, NoModelDuration)
		}
	})

	t.Run("单次预测失败", func(t *testing.T) {
		if got := PredictOrFallback(failingPredictor{}, attrs); got != FallbackDuration {
			t.Errorf("got %d, expected %d", got, FallbackDuration)
		}
	})

	t.Run("预测成功", func(t *testing.T) {
		got := PredictOrFallback(&Heuristic{}, attrs)
		if got <= 0 {
			t.Errorf("预测时长应为正, got %d", got)
		}
	})
}

func TestHeuristic_Predict(t *testing.T) {
	h := &Heuristic{}

	tests := []struct {
		name  string
		attrs Attributes
		want  int
	}{
		{
			name:  "普外基准",
			attrs: Attributes{SurgeryType: model.TypeGeneral, ASAScore: 1},
			want:  90,
		},
		{
			name: "高风险合并症全麻",
			attrs: Attributes{
				SurgeryType: model.TypeCardiovascular, ASAScore: 4,
				HasComorbidity: true, AnesthesiaType: "General",
			},
			want: 200 + 36 + 15 + 10,
		},
		{
			name:  "高龄高BMI",
			attrs: Attributes{SurgeryType: model.TypeOrthopedic, ASAScore: 2, Age: 75, BMI: 38},
			want:  120 + 12 + 20 + 10,
		},
		{
			name:  "未知类型用兜底基准",
			attrs: Attributes{SurgeryType: "Ophthalmology", ASAScore: 1},
			want:  FallbackDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Predict(tt.attrs)
			if err != nil {
				t.Fatalf("Predict失败: %v", err)
			}
			if got != tt.want {
				t.Errorf("Predict() = %d, expected %d", got, tt.want)
			}
		})
	}
}

func TestHeuristic_Deterministic(t *testing.T) {
	h := &Heuristic{}
	attrs := Attributes{SurgeryType: model.TypeNeurological, ASAScore: 3, Age: 60, BMI: 24}

	first, _ := h.Predict(attrs)
	for i := 0; i < 10; i++ {
		if got, _ := h.Predict(attrs); got != first {
			t.Fatalf("预测结果不确定: %d != %d", got, first)
		}
	}
}
