package tools

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
)

// execTool は宣言に対する引数検証を通してからツールを実行する
func execTool(t *testing.T, tl tool.Tool, args map[string]interface{}) interface{} {
	t.Helper()
	applied, err := tool.ValidateArguments(tl.Parameters(), args)
	if err != nil {
		t.Fatalf("argument validation failed: %v", err)
	}
	result, err := tl.Execute(context.Background(), applied)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return result
}

func asMap(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	m, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map result, got %T", v)
	}
	return m
}

const salesData = `[
	{"region": "east", "units": 10, "price": 100},
	{"region": "east", "units": 12, "price": 120},
	{"region": "west", "units": 14, "price": 140},
	{"region": "west", "units": 16, "price": 160},
	{"region": "west", "units": 18, "price": null}
]`

func TestDataAnalysisSummary(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	result := asMap(t, execTool(t, da, map[string]interface{}{
		"data":          salesData,
		"analysis_type": "summary",
	}))

	shape := result["shape"].([]int)
	if shape[0] != 5 || shape[1] != 3 {
		t.Errorf("shape = %v, want [5 3]", shape)
	}

	dataTypes := result["data_types"].(map[string]string)
	if dataTypes["units"] != "number" {
		t.Errorf("units data type = %s, want number", dataTypes["units"])
	}
	if dataTypes["region"] != "string" {
		t.Errorf("region data type = %s, want string", dataTypes["region"])
	}

	missing := result["missing_values"].(map[string]int)
	if missing["price"] != 1 {
		t.Errorf("price missing = %d, want 1", missing["price"])
	}
	if missing["units"] != 0 {
		t.Errorf("units missing = %d, want 0", missing["units"])
	}

	stats := result["summary_stats"].(map[string]interface{})
	units := stats["units"].(map[string]interface{})
	if units["mean"].(float64) != 14 {
		t.Errorf("units mean = %v, want 14", units["mean"])
	}
	if units["min"].(float64) != 10 || units["max"].(float64) != 18 {
		t.Errorf("units min/max = %v/%v, want 10/18", units["min"], units["max"])
	}
	if units["50%"].(float64) != 14 {
		t.Errorf("units median = %v, want 14", units["50%"])
	}
	if _, ok := stats["region"]; ok {
		t.Error("summary_stats should not include non-numeric columns")
	}
}

func TestDataAnalysisCorrelation(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	// units と price は完全相関
	data := `[
		{"units": 1, "price": 10},
		{"units": 2, "price": 20},
		{"units": 3, "price": 30},
		{"units": 4, "price": 40}
	]`
	result := asMap(t, execTool(t, da, map[string]interface{}{
		"data":          data,
		"analysis_type": "correlation",
	}))

	matrix := result["correlation_matrix"].(map[string]map[string]float64)
	if math.Abs(matrix["units"]["price"]-1) > 1e-9 {
		t.Errorf("correlation = %v, want 1", matrix["units"]["price"])
	}
	if matrix["units"]["units"] != 1 {
		t.Errorf("self correlation = %v, want 1", matrix["units"]["units"])
	}

	pairs, ok := result["high_correlations"].([]CorrelationPair)
	if !ok || len(pairs) != 1 {
		t.Fatalf("high_correlations = %#v, want one pair", result["high_correlations"])
	}
	if pairs[0].Column1 != "price" || pairs[0].Column2 != "units" {
		t.Errorf("high correlation pair = %s/%s", pairs[0].Column1, pairs[0].Column2)
	}
}

func TestDataAnalysisCorrelationNoNumericColumns(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	args, err := tool.ValidateArguments(da.Parameters(), map[string]interface{}{
		"data":          `[{"name": "a"}, {"name": "b"}]`,
		"analysis_type": "correlation",
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if _, err := da.Execute(context.Background(), args); err == nil {
		t.Error("expected error for correlation without numeric columns")
	}
}

func TestDataAnalysisDistribution(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	result := asMap(t, execTool(t, da, map[string]interface{}{
		"data":          salesData,
		"analysis_type": "distribution",
	}))

	distributions := result["distributions"].(map[string]interface{})
	units := distributions["units"].(map[string]interface{})
	if units["mean"].(float64) != 14 {
		t.Errorf("units mean = %v, want 14", units["mean"])
	}
	if units["median"].(float64) != 14 {
		t.Errorf("units median = %v, want 14", units["median"])
	}

	region := distributions["region"].(map[string]interface{})
	if region["unique_values"].(int) != 2 {
		t.Errorf("region unique_values = %v, want 2", region["unique_values"])
	}
	most := region["most_common"].(map[string]int)
	if most["west"] != 3 || most["east"] != 2 {
		t.Errorf("region most_common = %v", most)
	}
}

func TestDataAnalysisOutliers(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	data := `[
		{"v": 10}, {"v": 11}, {"v": 12}, {"v": 11},
		{"v": 10}, {"v": 12}, {"v": 11}, {"v": 500}
	]`
	result := asMap(t, execTool(t, da, map[string]interface{}{
		"data":          data,
		"analysis_type": "outliers",
	}))

	outliers := result["outliers"].(map[string]interface{})
	report := outliers["v"].(map[string]interface{})
	if report["outlier_count"].(int) != 1 {
		t.Errorf("outlier_count = %v, want 1", report["outlier_count"])
	}
	indices := report["outlier_indices"].([]int)
	if len(indices) != 1 || indices[0] != 7 {
		t.Errorf("outlier_indices = %v, want [7]", indices)
	}
	if pct := report["outlier_percentage"].(float64); pct != 12.5 {
		t.Errorf("outlier_percentage = %v, want 12.5", pct)
	}
}

func TestDataAnalysisTrends(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	data := `[{"v": 1}, {"v": 3}, {"v": 5}, {"v": 7}]`
	result := asMap(t, execTool(t, da, map[string]interface{}{
		"data":          data,
		"analysis_type": "trends",
	}))

	trends := result["trends"].(map[string]interface{})
	v := trends["v"].(map[string]interface{})
	if v["trend_direction"] != "increasing" {
		t.Errorf("trend_direction = %v, want increasing", v["trend_direction"])
	}
	if slope := v["slope"].(float64); math.Abs(slope-2) > 1e-9 {
		t.Errorf("slope = %v, want 2", slope)
	}
}

func TestDataAnalysisColumnFilter(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	result := asMap(t, execTool(t, da, map[string]interface{}{
		"data":          salesData,
		"analysis_type": "summary",
		"columns":       []interface{}{"units"},
	}))

	columns := result["columns"].([]string)
	if len(columns) != 1 || columns[0] != "units" {
		t.Errorf("columns = %v, want [units]", columns)
	}

	// 存在しない列の指定はエラー
	args, err := tool.ValidateArguments(da.Parameters(), map[string]interface{}{
		"data":          salesData,
		"analysis_type": "summary",
		"columns":       []interface{}{"nope"},
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if _, err := da.Execute(context.Background(), args); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestDataAnalysisBadData(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	cases := []string{
		"not json",
		`{"a": 1}`,
		`[]`,
	}
	for _, data := range cases {
		args, err := tool.ValidateArguments(da.Parameters(), map[string]interface{}{
			"data":          data,
			"analysis_type": "summary",
		})
		if err != nil {
			t.Fatalf("validation failed: %v", err)
		}
		if _, err := da.Execute(context.Background(), args); err == nil {
			t.Errorf("expected error for data %q", data)
		}
	}
}

const salesCSV = `region,units,price
east,10,100
east,12,120
west,14,140
west,16,160
west,18,
`

func TestDataAnalysisCSVFormat(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	result := asMap(t, execTool(t, da, map[string]interface{}{
		"data":          salesCSV,
		"analysis_type": "summary",
		"data_format":   "csv",
	}))

	shape := result["shape"].([]int)
	if shape[0] != 5 || shape[1] != 3 {
		t.Errorf("shape = %v, want [5 3]", shape)
	}

	// 数値セルは数値型、空セルは欠損として扱われる
	dataTypes := result["data_types"].(map[string]string)
	if dataTypes["units"] != "number" || dataTypes["region"] != "string" {
		t.Errorf("data_types = %v", dataTypes)
	}
	missing := result["missing_values"].(map[string]int)
	if missing["price"] != 1 {
		t.Errorf("price missing count = %d, want 1", missing["price"])
	}
}

func TestDataAnalysisFilePathFormat(t *testing.T) {
	workspace := t.TempDir()
	files := NewFileTools(workspace, true)
	if err := os.WriteFile(filepath.Join(workspace, "sales.csv"), []byte(salesCSV), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, "sales.json"), []byte(salesData), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	da := NewDataAnalysisTool(files)
	for _, path := range []string{"sales.csv", "sales.json"} {
		result := asMap(t, execTool(t, da, map[string]interface{}{
			"data":          path,
			"analysis_type": "summary",
			"data_format":   "file_path",
		}))
		shape := result["shape"].([]int)
		if shape[0] != 5 || shape[1] != 3 {
			t.Errorf("%s: shape = %v, want [5 3]", path, shape)
		}
	}
}

func TestDataAnalysisFilePathErrors(t *testing.T) {
	workspace := t.TempDir()
	files := NewFileTools(workspace, true)
	if err := os.WriteFile(filepath.Join(workspace, "notes.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	da := NewDataAnalysisTool(files)
	cases := []struct {
		name string
		path string
	}{
		{"workspace escape", "../outside.csv"},
		{"unsupported extension", "notes.txt"},
		{"missing file", "absent.csv"},
	}
	for _, tc := range cases {
		args, err := tool.ValidateArguments(da.Parameters(), map[string]interface{}{
			"data":          tc.path,
			"analysis_type": "summary",
			"data_format":   "file_path",
		})
		if err != nil {
			t.Fatalf("%s: validation failed: %v", tc.name, err)
		}
		if _, err := da.Execute(context.Background(), args); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	// file_pathはFileToolsなしでは使えない
	disabled := NewDataAnalysisTool(nil)
	args, err := tool.ValidateArguments(disabled.Parameters(), map[string]interface{}{
		"data":          "sales.csv",
		"analysis_type": "summary",
		"data_format":   "file_path",
	})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if _, err := disabled.Execute(context.Background(), args); err == nil {
		t.Error("expected error when file input is disabled")
	}
}

func TestDataAnalysisRejectsUnknownDataFormat(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	_, err := tool.ValidateArguments(da.Parameters(), map[string]interface{}{
		"data":          salesData,
		"analysis_type": "summary",
		"data_format":   "xml",
	})
	if err == nil {
		t.Fatal("expected validation error for unknown data_format")
	}
	if !tool.IsKind(err, tool.KindValidation) {
		t.Errorf("error kind = %v, want ValidationError", tool.KindOf(err))
	}
}

func TestDataAnalysisRejectsUnknownAnalysisType(t *testing.T) {
	da := NewDataAnalysisTool(nil)
	// enumの宣言検証で弾かれる
	_, err := tool.ValidateArguments(da.Parameters(), map[string]interface{}{
		"data":          salesData,
		"analysis_type": "pivot",
	})
	if err == nil {
		t.Fatal("expected validation error for unknown analysis_type")
	}
	if !tool.IsKind(err, tool.KindValidation) {
		t.Errorf("error kind = %v, want ValidationError", tool.KindOf(err))
	}
}
