package tools

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Dataset はレコード配列のJSONから読み込んだ表形式データ。
// 列順は決定的（名前順）
type Dataset struct {
	columns []string
	rows    []map[string]interface{}
}

// ParseDataset はJSON文字列からデータセットを構築する。
// 形式は [{"col": value, ...}, ...] のレコード配列
func ParseDataset(data string) (*Dataset, error) {
	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, fmt.Errorf("data must be a JSON array of records: %w", err)
	}
	return newDataset(rows)
}

// ParseDatasetCSV はヘッダ行付きCSVからデータセットを構築する。
// 数値として解釈できるセルは数値、空セルは欠損扱い
func ParseDatasetCSV(data string) (*Dataset, error) {
	records, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("data must be valid CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV data requires a header row and at least one data row")
	}

	header := records[0]
	rows := make([]map[string]interface{}, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]interface{}, len(header))
		for i, col := range header {
			if i >= len(record) || record[i] == "" {
				row[col] = nil
				continue
			}
			if v, err := strconv.ParseFloat(record[i], 64); err == nil {
				row[col] = v
			} else {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return newDataset(rows)
}

// newDataset は行の集合から決定的な列順のデータセットを構築
func newDataset(rows []map[string]interface{}) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("data contains no rows")
	}

	seen := make(map[string]bool)
	for _, row := range rows {
		for key := range row {
			seen[key] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)

	return &Dataset{columns: columns, rows: rows}, nil
}

// loadDataset はdata_formatに従ってデータセットを読み込む。
// file_pathはワークスペース制限を通して解決される
func loadDataset(files *FileTools, data, format string) (*Dataset, error) {
	switch format {
	case "", "json":
		return ParseDataset(data)
	case "csv":
		return ParseDatasetCSV(data)
	case "file_path":
		if files == nil {
			return nil, fmt.Errorf("file_path input is not enabled")
		}
		resolved, err := files.resolve(data)
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file: %w", err)
		}
		switch filepath.Ext(resolved) {
		case ".csv":
			return ParseDatasetCSV(string(content))
		case ".json":
			return ParseDataset(string(content))
		default:
			return nil, fmt.Errorf("unsupported file format: %s", data)
		}
	default:
		return nil, fmt.Errorf("unsupported data format: %s", format)
	}
}

// Columns は列名一覧を返す
func (d *Dataset) Columns() []string { return d.columns }

// Len は行数を返す
func (d *Dataset) Len() int { return len(d.rows) }

// Select は指定列のみのデータセットを返す
func (d *Dataset) Select(columns []string) (*Dataset, error) {
	known := make(map[string]bool, len(d.columns))
	for _, c := range d.columns {
		known[c] = true
	}
	for _, c := range columns {
		if !known[c] {
			return nil, fmt.Errorf("unknown column: %s", c)
		}
	}
	return &Dataset{columns: append([]string(nil), columns...), rows: d.rows}, nil
}

// IsNumeric は列の非欠損値がすべて数値かを判定
func (d *Dataset) IsNumeric(column string) bool {
	found := false
	for _, row := range d.rows {
		value, ok := row[column]
		if !ok || value == nil {
			continue
		}
		if _, ok := value.(float64); !ok {
			return false
		}
		found = true
	}
	return found
}

// Numeric は列の非欠損数値を行順で返す
func (d *Dataset) Numeric(column string) []float64 {
	values := make([]float64, 0, len(d.rows))
	for _, row := range d.rows {
		if v, ok := row[column].(float64); ok {
			values = append(values, v)
		}
	}
	return values
}

// NumericAt は行インデックス付きで非欠損数値を返す（外れ値の位置報告用）
func (d *Dataset) NumericAt(column string) ([]int, []float64) {
	indices := make([]int, 0, len(d.rows))
	values := make([]float64, 0, len(d.rows))
	for i, row := range d.rows {
		if v, ok := row[column].(float64); ok {
			indices = append(indices, i)
			values = append(values, v)
		}
	}
	return indices, values
}

// Values は列の非欠損値を文字列表現で返す
func (d *Dataset) Values(column string) []string {
	values := make([]string, 0, len(d.rows))
	for _, row := range d.rows {
		value, ok := row[column]
		if !ok || value == nil {
			continue
		}
		values = append(values, fmt.Sprintf("%v", value))
	}
	return values
}

// MissingCount は列の欠損値（null・キー欠落）の数を返す
func (d *Dataset) MissingCount(column string) int {
	count := 0
	for _, row := range d.rows {
		if value, ok := row[column]; !ok || value == nil {
			count++
		}
	}
	return count
}

// mean は算術平均
func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev は標本標準偏差（n-1）
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// quantile は線形補間による分位点（q は 0..1）
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// pearson はピアソン相関係数
func pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN()
	}
	mx, my := mean(x), mean(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// skewness はモーメント法による歪度
func skewness(values []float64) float64 {
	if len(values) < 3 {
		return math.NaN()
	}
	m := mean(values)
	var m2, m3 float64
	for _, v := range values {
		d := v - m
		m2 += d * d
		m3 += d * d * d
	}
	n := float64(len(values))
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

// kurtosis はモーメント法による超過尖度（正規分布で0）
func kurtosis(values []float64) float64 {
	if len(values) < 4 {
		return math.NaN()
	}
	m := mean(values)
	var m2, m4 float64
	for _, v := range values {
		d := v - m
		m2 += d * d
		m4 += d * d * d * d
	}
	n := float64(len(values))
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 0
	}
	return m4/(m2*m2) - 3
}

// linearSlope は最小二乗法による傾き（x は 0..n-1）
func linearSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return math.NaN()
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return math.NaN()
	}
	return (n*sumXY - sumX*sumY) / denom
}
