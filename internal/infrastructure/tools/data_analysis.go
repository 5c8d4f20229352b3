package tools

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
)

// highCorrelationThreshold は強い相関とみなす絶対値の下限
const highCorrelationThreshold = 0.7

// NewDataAnalysisTool はデータセットの基本分析ツールを作成する。
// filesが非nilの場合はdata_format=file_pathでファイル入力も受け付ける
func NewDataAnalysisTool(files *FileTools) tool.Tool {
	params := []tool.Parameter{
		{
			Name:        "data",
			Type:        tool.ParamString,
			Description: "Data to analyze (JSON records, CSV, or a file path)",
			Required:    true,
		},
		{
			Name:        "analysis_type",
			Type:        tool.ParamEnum,
			Description: "Type of analysis to perform",
			Required:    true,
			Enum:        []string{"summary", "correlation", "distribution", "outliers", "trends"},
		},
		{
			Name:        "data_format",
			Type:        tool.ParamEnum,
			Description: "Format of the input data",
			Required:    false,
			Default:     "json",
			Enum:        []string{"json", "csv", "file_path"},
		},
		{
			Name:        "columns",
			Type:        tool.ParamArray,
			Description: "Specific columns to analyze (optional)",
			Required:    false,
		},
	}

	return tool.New("data_analysis", "Perform basic data analysis on datasets",
		tool.TypeDataAnalysis, params,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return runDataAnalysis(files, args)
		})
}

func runDataAnalysis(files *FileTools, args map[string]interface{}) (interface{}, error) {
	data, _ := args["data"].(string)
	analysisType, _ := args["analysis_type"].(string)
	format, _ := args["data_format"].(string)

	ds, err := loadDataset(files, data, format)
	if err != nil {
		return nil, err
	}

	if raw, ok := args["columns"]; ok {
		columns, err := stringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("columns: %w", err)
		}
		if len(columns) > 0 {
			ds, err = ds.Select(columns)
			if err != nil {
				return nil, err
			}
		}
	}

	switch analysisType {
	case "summary":
		return summaryAnalysis(ds), nil
	case "correlation":
		return correlationAnalysis(ds)
	case "distribution":
		return distributionAnalysis(ds), nil
	case "outliers":
		return outlierAnalysis(ds), nil
	case "trends":
		return trendAnalysis(ds), nil
	default:
		return nil, fmt.Errorf("unsupported analysis type: %s", analysisType)
	}
}

// summaryAnalysis は形状・型・欠損・基本統計量をまとめる
func summaryAnalysis(ds *Dataset) map[string]interface{} {
	dataTypes := make(map[string]string, len(ds.Columns()))
	missing := make(map[string]int, len(ds.Columns()))
	stats := make(map[string]interface{})

	for _, col := range ds.Columns() {
		missing[col] = ds.MissingCount(col)
		if !ds.IsNumeric(col) {
			dataTypes[col] = "string"
			continue
		}
		dataTypes[col] = "number"

		values := ds.Numeric(col)
		stats[col] = map[string]interface{}{
			"count": len(values),
			"mean":  mean(values),
			"std":   nanToNil(stddev(values)),
			"min":   quantile(values, 0),
			"25%":   quantile(values, 0.25),
			"50%":   quantile(values, 0.5),
			"75%":   quantile(values, 0.75),
			"max":   quantile(values, 1),
		}
	}

	return map[string]interface{}{
		"shape":          []int{ds.Len(), len(ds.Columns())},
		"columns":        ds.Columns(),
		"data_types":     dataTypes,
		"missing_values": missing,
		"summary_stats":  stats,
	}
}

// CorrelationPair は強い相関を持つ列の組
type CorrelationPair struct {
	Column1     string  `json:"column1"`
	Column2     string  `json:"column2"`
	Correlation float64 `json:"correlation"`
}

// correlationAnalysis は数値列間の相関行列と強い相関ペアを返す
func correlationAnalysis(ds *Dataset) (map[string]interface{}, error) {
	numeric := numericColumns(ds)
	if len(numeric) == 0 {
		return nil, fmt.Errorf("no numeric columns found for correlation analysis")
	}

	matrix := make(map[string]map[string]float64, len(numeric))
	series := make(map[string][]float64, len(numeric))
	for _, col := range numeric {
		series[col] = ds.Numeric(col)
		matrix[col] = make(map[string]float64, len(numeric))
	}

	var high []CorrelationPair

	for i, c1 := range numeric {
		matrix[c1][c1] = 1
		for _, c2 := range numeric[i+1:] {
			r := pearson(series[c1], series[c2])
			matrix[c1][c2] = r
			matrix[c2][c1] = r
			if !math.IsNaN(r) && math.Abs(r) >= highCorrelationThreshold {
				high = append(high, CorrelationPair{Column1: c1, Column2: c2, Correlation: r})
			}
		}
	}

	sort.Slice(high, func(i, j int) bool {
		return math.Abs(high[i].Correlation) > math.Abs(high[j].Correlation)
	})

	return map[string]interface{}{
		"correlation_matrix": matrix,
		"high_correlations":  high,
	}, nil
}

// distributionAnalysis は列ごとの分布特性を返す。
// 数値列は代表値と形状、それ以外は出現頻度
func distributionAnalysis(ds *Dataset) map[string]interface{} {
	distributions := make(map[string]interface{}, len(ds.Columns()))

	for _, col := range ds.Columns() {
		if ds.IsNumeric(col) {
			values := ds.Numeric(col)
			distributions[col] = map[string]interface{}{
				"mean":     mean(values),
				"median":   quantile(values, 0.5),
				"std":      nanToNil(stddev(values)),
				"skewness": nanToNil(skewness(values)),
				"kurtosis": nanToNil(kurtosis(values)),
			}
			continue
		}

		values := ds.Values(col)
		counts := make(map[string]int)
		for _, v := range values {
			counts[v]++
		}
		distributions[col] = map[string]interface{}{
			"unique_values": len(counts),
			"most_common":   topCounts(counts, 5),
		}
	}

	return map[string]interface{}{"distributions": distributions}
}

// outlierAnalysis はIQR法で数値列の外れ値を検出する
func outlierAnalysis(ds *Dataset) map[string]interface{} {
	outliers := make(map[string]interface{})

	for _, col := range numericColumns(ds) {
		indices, values := ds.NumericAt(col)
		q1 := quantile(values, 0.25)
		q3 := quantile(values, 0.75)
		iqr := q3 - q1
		lower := q1 - 1.5*iqr
		upper := q3 + 1.5*iqr

		var found []int
		for i, v := range values {
			if v < lower || v > upper {
				found = append(found, indices[i])
			}
		}

		report := map[string]interface{}{
			"outlier_count":      len(found),
			"outlier_percentage": float64(len(found)) / float64(ds.Len()) * 100,
		}
		if len(found) > 10 {
			found = found[:10]
		}
		report["outlier_indices"] = found
		outliers[col] = report
	}

	return map[string]interface{}{"outliers": outliers}
}

// trendAnalysis は行順を時系列とみなした線形トレンドを返す
func trendAnalysis(ds *Dataset) map[string]interface{} {
	trends := make(map[string]interface{})

	for _, col := range numericColumns(ds) {
		values := ds.Numeric(col)
		if len(values) < 2 {
			continue
		}
		slope := linearSlope(values)
		direction := "decreasing"
		if slope > 0 {
			direction = "increasing"
		}
		trends[col] = map[string]interface{}{
			"trend_direction": direction,
			"trend_strength":  math.Abs(slope),
			"slope":           slope,
		}
	}

	return map[string]interface{}{"trends": trends}
}

// numericColumns は数値列の列名を列順で返す
func numericColumns(ds *Dataset) []string {
	var columns []string
	for _, col := range ds.Columns() {
		if ds.IsNumeric(col) {
			columns = append(columns, col)
		}
	}
	return columns
}

// topCounts は出現頻度の上位n件を返す
func topCounts(counts map[string]int, n int) map[string]int {
	type entry struct {
		value string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for v, c := range counts {
		entries = append(entries, entry{v, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].value < entries[j].value
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	top := make(map[string]int, len(entries))
	for _, e := range entries {
		top[e.value] = e.count
	}
	return top
}

// stringSlice は[]interface{}を文字列スライスに変換
func stringSlice(raw interface{}) ([]string, error) {
	items, ok := raw.([]interface{})
	if !ok {
		if s, ok := raw.([]string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected an array of strings, got %T", raw)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected an array of strings, got element %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// nanToNil はJSONで表現できないNaNをnullに落とす
func nanToNil(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
