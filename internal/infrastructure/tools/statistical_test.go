package tools

import (
	"context"
	"math"
	"testing"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
)

func TestTTestSignificant(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	// 明確に分離された2群
	data := `[
		{"group": "a", "value": 1.0}, {"group": "a", "value": 1.2},
		{"group": "a", "value": 0.9}, {"group": "a", "value": 1.1},
		{"group": "b", "value": 10.0}, {"group": "b", "value": 10.3},
		{"group": "b", "value": 9.8}, {"group": "b", "value": 10.1}
	]`
	result := asMap(t, execTool(t, sa, map[string]interface{}{
		"data":         data,
		"test_type":    "t_test",
		"group_column": "group",
		"value_column": "value",
	}))

	if result["significant"] != true {
		t.Errorf("significant = %v, want true (p = %v)", result["significant"], result["p_value"])
	}
	if p := result["p_value"].(float64); p >= 0.001 {
		t.Errorf("p_value = %v, want < 0.001", p)
	}
	if result["group1"] != "a" || result["group2"] != "b" {
		t.Errorf("groups = %v/%v, want a/b", result["group1"], result["group2"])
	}
	if m := result["group1_mean"].(float64); math.Abs(m-1.05) > 1e-9 {
		t.Errorf("group1_mean = %v, want 1.05", m)
	}
}

func TestTTestNotSignificant(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	// ほぼ重なる2群
	data := `[
		{"group": "a", "value": 1.0}, {"group": "a", "value": 2.0},
		{"group": "a", "value": 3.0}, {"group": "b", "value": 1.1},
		{"group": "b", "value": 2.1}, {"group": "b", "value": 2.9}
	]`
	result := asMap(t, execTool(t, sa, map[string]interface{}{
		"data":         data,
		"test_type":    "t_test",
		"group_column": "group",
		"value_column": "value",
	}))

	if result["significant"] != false {
		t.Errorf("significant = %v, want false (p = %v)", result["significant"], result["p_value"])
	}
}

func TestTTestRequiresTwoGroups(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	data := `[
		{"group": "a", "value": 1.0}, {"group": "b", "value": 2.0},
		{"group": "c", "value": 3.0}
	]`
	args, err := tool.ValidateArguments(sa.Parameters(), map[string]interface{}{
		"data":         data,
		"test_type":    "t_test",
		"group_column": "group",
		"value_column": "value",
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if _, err := sa.Execute(context.Background(), args); err == nil {
		t.Error("expected error for 3 groups")
	}
}

func TestTTestRequiresColumns(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	args, err := tool.ValidateArguments(sa.Parameters(), map[string]interface{}{
		"data":      `[{"v": 1}, {"v": 2}]`,
		"test_type": "t_test",
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if _, err := sa.Execute(context.Background(), args); err == nil {
		t.Error("expected error when group_column/value_column are missing")
	}
}

func TestAnovaSignificant(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	// 明確に分離された3群
	data := `[
		{"group": "a", "value": 1.0}, {"group": "a", "value": 1.2}, {"group": "a", "value": 0.9},
		{"group": "b", "value": 5.0}, {"group": "b", "value": 5.3}, {"group": "b", "value": 4.8},
		{"group": "c", "value": 10.0}, {"group": "c", "value": 10.2}, {"group": "c", "value": 9.9}
	]`
	result := asMap(t, execTool(t, sa, map[string]interface{}{
		"data":         data,
		"test_type":    "anova",
		"group_column": "group",
		"value_column": "value",
	}))

	if result["significant"] != true {
		t.Errorf("significant = %v, want true (p = %v)", result["significant"], result["p_value"])
	}
	if p := result["p_value"].(float64); p >= 0.001 {
		t.Errorf("p_value = %v, want < 0.001", p)
	}
	groups := result["groups"].([]string)
	if len(groups) != 3 || groups[0] != "a" || groups[2] != "c" {
		t.Errorf("groups = %v, want [a b c]", groups)
	}
	means := result["group_means"].(map[string]float64)
	if math.Abs(means["b"]-5.033333333333333) > 1e-9 {
		t.Errorf("group b mean = %v, want ~5.033", means["b"])
	}
}

func TestAnovaNotSignificant(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	// ほぼ重なる3群
	data := `[
		{"group": "a", "value": 1.0}, {"group": "a", "value": 3.0}, {"group": "a", "value": 5.0},
		{"group": "b", "value": 1.2}, {"group": "b", "value": 3.1}, {"group": "b", "value": 4.9},
		{"group": "c", "value": 0.9}, {"group": "c", "value": 2.8}, {"group": "c", "value": 5.2}
	]`
	result := asMap(t, execTool(t, sa, map[string]interface{}{
		"data":         data,
		"test_type":    "anova",
		"group_column": "group",
		"value_column": "value",
	}))

	if result["significant"] != false {
		t.Errorf("significant = %v, want false (p = %v)", result["significant"], result["p_value"])
	}
}

func TestAnovaRequiresTwoGroups(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	args, err := tool.ValidateArguments(sa.Parameters(), map[string]interface{}{
		"data":         `[{"group": "a", "value": 1.0}, {"group": "a", "value": 2.0}]`,
		"test_type":    "anova",
		"group_column": "group",
		"value_column": "value",
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if _, err := sa.Execute(context.Background(), args); err == nil {
		t.Error("expected error for a single group")
	}
}

func TestChiSquareAssociated(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	// groupとoutcomeが強く連動する分割表
	data := `[
		{"group": "a", "outcome": "x"}, {"group": "a", "outcome": "x"},
		{"group": "a", "outcome": "x"}, {"group": "a", "outcome": "x"},
		{"group": "a", "outcome": "x"}, {"group": "a", "outcome": "x"},
		{"group": "a", "outcome": "x"}, {"group": "a", "outcome": "x"},
		{"group": "a", "outcome": "x"}, {"group": "a", "outcome": "y"},
		{"group": "b", "outcome": "y"}, {"group": "b", "outcome": "y"},
		{"group": "b", "outcome": "y"}, {"group": "b", "outcome": "y"},
		{"group": "b", "outcome": "y"}, {"group": "b", "outcome": "y"},
		{"group": "b", "outcome": "y"}, {"group": "b", "outcome": "y"},
		{"group": "b", "outcome": "y"}, {"group": "b", "outcome": "x"}
	]`
	result := asMap(t, execTool(t, sa, map[string]interface{}{
		"data":         data,
		"test_type":    "chi_square",
		"group_column": "group",
		"value_column": "outcome",
	}))

	if result["significant"] != true {
		t.Errorf("significant = %v, want true (p = %v)", result["significant"], result["p_value"])
	}
	if result["degrees_of_freedom"].(int) != 1 {
		t.Errorf("degrees_of_freedom = %v, want 1", result["degrees_of_freedom"])
	}
	table := result["contingency_table"].(map[string]map[string]int)
	if table["a"]["x"] != 9 || table["b"]["y"] != 9 {
		t.Errorf("contingency table wrong: %v", table)
	}
}

func TestChiSquareIndependent(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	// 各セルの度数が均等なら chi2=0, p=1
	data := `[
		{"group": "a", "outcome": "x"}, {"group": "a", "outcome": "y"},
		{"group": "a", "outcome": "x"}, {"group": "a", "outcome": "y"},
		{"group": "b", "outcome": "x"}, {"group": "b", "outcome": "y"},
		{"group": "b", "outcome": "x"}, {"group": "b", "outcome": "y"}
	]`
	result := asMap(t, execTool(t, sa, map[string]interface{}{
		"data":         data,
		"test_type":    "chi_square",
		"group_column": "group",
		"value_column": "outcome",
	}))

	if result["significant"] != false {
		t.Errorf("significant = %v, want false (p = %v)", result["significant"], result["p_value"])
	}
	if chi2 := result["chi2_statistic"].(float64); math.Abs(chi2) > 1e-9 {
		t.Errorf("chi2_statistic = %v, want 0", chi2)
	}
	if p := result["p_value"].(float64); math.Abs(p-1) > 1e-9 {
		t.Errorf("p_value = %v, want 1", p)
	}
}

func TestChiSquareRequiresTwoCategories(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	args, err := tool.ValidateArguments(sa.Parameters(), map[string]interface{}{
		"data":         `[{"group": "a", "outcome": "x"}, {"group": "a", "outcome": "y"}]`,
		"test_type":    "chi_square",
		"group_column": "group",
		"value_column": "outcome",
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if _, err := sa.Execute(context.Background(), args); err == nil {
		t.Error("expected error for a single category")
	}
}

func TestCorrelationTest(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	// x と y はほぼ完全相関、z は無関係
	data := `[
		{"x": 1, "y": 2.1, "z": 5}, {"x": 2, "y": 3.9, "z": 1},
		{"x": 3, "y": 6.2, "z": 4}, {"x": 4, "y": 7.8, "z": 2},
		{"x": 5, "y": 10.1, "z": 5}, {"x": 6, "y": 11.9, "z": 1},
		{"x": 7, "y": 14.2, "z": 3}, {"x": 8, "y": 15.8, "z": 2}
	]`
	result := asMap(t, execTool(t, sa, map[string]interface{}{
		"data":      data,
		"test_type": "correlation_test",
	}))

	correlations := result["correlations"].(map[string]interface{})
	xy := correlations["x_vs_y"].(map[string]interface{})
	if xy["significant"] != true {
		t.Errorf("x_vs_y significant = %v, want true (p = %v)", xy["significant"], xy["p_value"])
	}
	if r := xy["correlation"].(float64); r < 0.99 {
		t.Errorf("x_vs_y correlation = %v, want > 0.99", r)
	}

	xz := correlations["x_vs_z"].(map[string]interface{})
	if xz["significant"] != false {
		t.Errorf("x_vs_z significant = %v, want false (p = %v)", xz["significant"], xz["p_value"])
	}
}

func TestCorrelationTestRequiresNumericColumns(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	args, err := tool.ValidateArguments(sa.Parameters(), map[string]interface{}{
		"data":      `[{"x": 1, "name": "a"}, {"x": 2, "name": "b"}]`,
		"test_type": "correlation_test",
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if _, err := sa.Execute(context.Background(), args); err == nil {
		t.Error("expected error for fewer than 2 numeric columns")
	}
}

func TestNormalityTest(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	// 対称な分布は正規とみなされる
	data := `[
		{"v": 1}, {"v": 2}, {"v": 3}, {"v": 4}, {"v": 5},
		{"v": 6}, {"v": 7}, {"v": 8}, {"v": 9}, {"v": 10}
	]`
	result := asMap(t, execTool(t, sa, map[string]interface{}{
		"data":         data,
		"test_type":    "normality_test",
		"value_column": "v",
	}))

	if result["is_normal"] != true {
		t.Errorf("is_normal = %v, want true (p = %v)", result["is_normal"], result["p_value"])
	}
	if result["sample_size"].(int) != 10 {
		t.Errorf("sample_size = %v, want 10", result["sample_size"])
	}
}

func TestNormalityTestSkewedData(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	// 極端な外れ値を持つ分布は棄却される
	data := `[
		{"v": 1}, {"v": 1}, {"v": 1}, {"v": 1}, {"v": 1},
		{"v": 1}, {"v": 1}, {"v": 1}, {"v": 1}, {"v": 100}
	]`
	result := asMap(t, execTool(t, sa, map[string]interface{}{
		"data":         data,
		"test_type":    "normality_test",
		"value_column": "v",
	}))

	if result["is_normal"] != false {
		t.Errorf("is_normal = %v, want false (p = %v)", result["is_normal"], result["p_value"])
	}
}

func TestNormalityTestTooFewPoints(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	args, err := tool.ValidateArguments(sa.Parameters(), map[string]interface{}{
		"data":         `[{"v": 1}, {"v": 2}, {"v": 3}]`,
		"test_type":    "normality_test",
		"value_column": "v",
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if _, err := sa.Execute(context.Background(), args); err == nil {
		t.Error("expected error for too few data points")
	}
}

func TestAlphaDefaultApplied(t *testing.T) {
	sa := NewStatisticalAnalysisTool(nil)
	applied, err := tool.ValidateArguments(sa.Parameters(), map[string]interface{}{
		"data":      `[{"v": 1}]`,
		"test_type": "t_test",
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if applied["alpha"] != 0.05 {
		t.Errorf("alpha default = %v, want 0.05", applied["alpha"])
	}
}

func TestTTestPValueBounds(t *testing.T) {
	// t=0 なら p=1、|t| が大きければ p は 0 に近づく
	if p := tTestPValue(0, 10); math.Abs(p-1) > 1e-9 {
		t.Errorf("p(t=0) = %v, want 1", p)
	}
	if p := tTestPValue(50, 10); p > 1e-9 {
		t.Errorf("p(t=50) = %v, want ~0", p)
	}
	// 既知の値: t=2.228, df=10 は p≈0.05
	if p := tTestPValue(2.228, 10); math.Abs(p-0.05) > 0.001 {
		t.Errorf("p(t=2.228, df=10) = %v, want ~0.05", p)
	}
}

func TestFPValueBounds(t *testing.T) {
	if p := fPValue(0, 2, 12); math.Abs(p-1) > 1e-9 {
		t.Errorf("p(f=0) = %v, want 1", p)
	}
	if p := fPValue(1000, 2, 12); p > 1e-6 {
		t.Errorf("p(f=1000) = %v, want ~0", p)
	}
	// 既知の値: F(2,12)の上側5%点は約3.885
	if p := fPValue(3.885, 2, 12); math.Abs(p-0.05) > 0.001 {
		t.Errorf("p(f=3.885, df=2,12) = %v, want ~0.05", p)
	}
}

func TestChiSquarePValueBounds(t *testing.T) {
	if p := chiSquarePValue(0, 1); math.Abs(p-1) > 1e-9 {
		t.Errorf("p(chi2=0) = %v, want 1", p)
	}
	if p := chiSquarePValue(100, 1); p > 1e-9 {
		t.Errorf("p(chi2=100) = %v, want ~0", p)
	}
	// 既知の値: 自由度1の上側5%点は約3.841
	if p := chiSquarePValue(3.841, 1); math.Abs(p-0.05) > 0.001 {
		t.Errorf("p(chi2=3.841, df=1) = %v, want ~0.05", p)
	}
	// 自由度2は閉形式 exp(-x/2) と一致する
	if p := chiSquarePValue(4.2, 2); math.Abs(p-math.Exp(-2.1)) > 1e-9 {
		t.Errorf("p(chi2=4.2, df=2) = %v, want %v", p, math.Exp(-2.1))
	}
}
