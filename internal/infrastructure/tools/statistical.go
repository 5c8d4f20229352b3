package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
)

// NewStatisticalAnalysisTool は仮説検定ツールを作成する。
// 検定統計量とp値を返し、有意判定はalphaに対して行う
func NewStatisticalAnalysisTool(files *FileTools) tool.Tool {
	params := []tool.Parameter{
		{
			Name:        "data",
			Type:        tool.ParamString,
			Description: "Data to analyze (JSON records, CSV, or a file path)",
			Required:    true,
		},
		{
			Name:        "test_type",
			Type:        tool.ParamEnum,
			Description: "Type of statistical test to perform",
			Required:    true,
			Enum:        []string{"t_test", "anova", "chi_square", "correlation_test", "normality_test"},
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
			Name:        "group_column",
			Type:        tool.ParamString,
			Description: "Column to use for grouping (for t-test, ANOVA, chi-square)",
			Required:    false,
		},
		{
			Name:        "value_column",
			Type:        tool.ParamString,
			Description: "Column containing values to test",
			Required:    false,
		},
		{
			Name:        "alpha",
			Type:        tool.ParamNumber,
			Description: "Significance level",
			Required:    false,
			Default:     0.05,
		},
	}

	return tool.New("statistical_analysis",
		"Perform statistical analysis including hypothesis testing",
		tool.TypeDataAnalysis, params,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return runStatisticalAnalysis(files, args)
		})
}

func runStatisticalAnalysis(files *FileTools, args map[string]interface{}) (interface{}, error) {
	data, _ := args["data"].(string)
	testType, _ := args["test_type"].(string)
	format, _ := args["data_format"].(string)
	groupColumn, _ := args["group_column"].(string)
	valueColumn, _ := args["value_column"].(string)
	alpha := 0.05
	if v, ok := args["alpha"].(float64); ok {
		alpha = v
	}

	ds, err := loadDataset(files, data, format)
	if err != nil {
		return nil, err
	}

	switch testType {
	case "t_test":
		return tTest(ds, groupColumn, valueColumn, alpha)
	case "anova":
		return anovaTest(ds, groupColumn, valueColumn, alpha)
	case "chi_square":
		return chiSquareTest(ds, groupColumn, valueColumn, alpha)
	case "correlation_test":
		return correlationTest(ds, alpha)
	case "normality_test":
		return normalityTest(ds, valueColumn, alpha)
	default:
		return nil, fmt.Errorf("unsupported test type: %s", testType)
	}
}

// tTest は2群の平均差の検定（等分散仮定・両側）
func tTest(ds *Dataset, groupColumn, valueColumn string, alpha float64) (map[string]interface{}, error) {
	if groupColumn == "" || valueColumn == "" {
		return nil, fmt.Errorf("t_test requires group_column and value_column")
	}

	groups := ds.Values(groupColumn)
	values := ds.Numeric(valueColumn)
	if len(groups) != len(values) {
		return nil, fmt.Errorf("column %q must be numeric with no missing values", valueColumn)
	}

	var labels []string
	byGroup := make(map[string][]float64)
	for i, g := range groups {
		if _, ok := byGroup[g]; !ok {
			labels = append(labels, g)
		}
		byGroup[g] = append(byGroup[g], values[i])
	}
	if len(labels) != 2 {
		return nil, fmt.Errorf("t_test requires exactly 2 groups, got %d", len(labels))
	}

	g1, g2 := byGroup[labels[0]], byGroup[labels[1]]
	n1, n2 := float64(len(g1)), float64(len(g2))
	if n1 < 2 || n2 < 2 {
		return nil, fmt.Errorf("t_test requires at least 2 observations per group")
	}

	m1, m2 := mean(g1), mean(g2)
	s1, s2 := stddev(g1), stddev(g2)

	// プールされた分散によるスチューデントのt検定
	df := n1 + n2 - 2
	pooled := ((n1-1)*s1*s1 + (n2-1)*s2*s2) / df
	t := (m1 - m2) / math.Sqrt(pooled*(1/n1+1/n2))
	p := tTestPValue(t, df)

	return map[string]interface{}{
		"test_type":   "t_test",
		"t_statistic": t,
		"p_value":     p,
		"significant": p < alpha,
		"group1":      labels[0],
		"group2":      labels[1],
		"group1_mean": m1,
		"group2_mean": m2,
	}, nil
}

// anovaTest は一元配置分散分析（群間平均差のF検定）
func anovaTest(ds *Dataset, groupColumn, valueColumn string, alpha float64) (map[string]interface{}, error) {
	if groupColumn == "" || valueColumn == "" {
		return nil, fmt.Errorf("anova requires group_column and value_column")
	}

	groups := ds.Values(groupColumn)
	values := ds.Numeric(valueColumn)
	if len(groups) != len(values) {
		return nil, fmt.Errorf("column %q must be numeric with no missing values", valueColumn)
	}

	var labels []string
	byGroup := make(map[string][]float64)
	for i, g := range groups {
		if _, ok := byGroup[g]; !ok {
			labels = append(labels, g)
		}
		byGroup[g] = append(byGroup[g], values[i])
	}
	if len(labels) < 2 {
		return nil, fmt.Errorf("anova requires at least 2 groups, got %d", len(labels))
	}
	for _, label := range labels {
		if len(byGroup[label]) < 2 {
			return nil, fmt.Errorf("anova requires at least 2 observations per group")
		}
	}

	grand := mean(values)
	var ssBetween, ssWithin float64
	groupMeans := make(map[string]float64, len(labels))
	for _, label := range labels {
		g := byGroup[label]
		m := mean(g)
		groupMeans[label] = m
		ssBetween += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			ssWithin += (v - m) * (v - m)
		}
	}

	df1 := float64(len(labels) - 1)
	df2 := float64(len(values) - len(labels))
	if ssWithin == 0 {
		return nil, fmt.Errorf("anova requires within-group variance")
	}
	f := (ssBetween / df1) / (ssWithin / df2)
	p := fPValue(f, df1, df2)

	return map[string]interface{}{
		"test_type":   "anova",
		"f_statistic": f,
		"p_value":     p,
		"significant": p < alpha,
		"groups":      labels,
		"group_means": groupMeans,
	}, nil
}

// chiSquareTest は2つのカテゴリ列の独立性検定
func chiSquareTest(ds *Dataset, groupColumn, valueColumn string, alpha float64) (map[string]interface{}, error) {
	if groupColumn == "" || valueColumn == "" {
		return nil, fmt.Errorf("chi_square requires group_column and value_column")
	}

	rows := ds.Values(groupColumn)
	cols := ds.Values(valueColumn)
	if len(rows) != len(cols) || len(rows) == 0 {
		return nil, fmt.Errorf("columns %q and %q must have the same non-missing values", groupColumn, valueColumn)
	}

	// 分割表（ラベルは出現順）
	var rowLabels, colLabels []string
	observed := make(map[string]map[string]float64)
	for i := range rows {
		r, c := rows[i], cols[i]
		if _, ok := observed[r]; !ok {
			rowLabels = append(rowLabels, r)
			observed[r] = make(map[string]float64)
		}
		if _, seen := observed[r][c]; !seen {
			found := false
			for _, label := range colLabels {
				if label == c {
					found = true
					break
				}
			}
			if !found {
				colLabels = append(colLabels, c)
			}
		}
		observed[r][c]++
	}
	if len(rowLabels) < 2 || len(colLabels) < 2 {
		return nil, fmt.Errorf("chi_square requires at least 2 categories in each column")
	}

	total := float64(len(rows))
	rowTotals := make(map[string]float64, len(rowLabels))
	colTotals := make(map[string]float64, len(colLabels))
	for _, r := range rowLabels {
		for _, c := range colLabels {
			rowTotals[r] += observed[r][c]
			colTotals[c] += observed[r][c]
		}
	}

	var chi2 float64
	for _, r := range rowLabels {
		for _, c := range colLabels {
			expected := rowTotals[r] * colTotals[c] / total
			d := observed[r][c] - expected
			chi2 += d * d / expected
		}
	}

	dof := float64((len(rowLabels) - 1) * (len(colLabels) - 1))
	p := chiSquarePValue(chi2, dof)

	table := make(map[string]map[string]int, len(rowLabels))
	for _, r := range rowLabels {
		table[r] = make(map[string]int, len(colLabels))
		for _, c := range colLabels {
			table[r][c] = int(observed[r][c])
		}
	}

	return map[string]interface{}{
		"test_type":          "chi_square",
		"chi2_statistic":     chi2,
		"p_value":            p,
		"degrees_of_freedom": int(dof),
		"significant":        p < alpha,
		"contingency_table":  table,
	}, nil
}

// correlationTest は数値列の全ペアに対する無相関検定
func correlationTest(ds *Dataset, alpha float64) (map[string]interface{}, error) {
	numeric := numericColumns(ds)
	if len(numeric) < 2 {
		return nil, fmt.Errorf("correlation_test requires at least 2 numeric columns")
	}

	correlations := make(map[string]interface{})
	for i, c1 := range numeric {
		for _, c2 := range numeric[i+1:] {
			x, y := ds.Numeric(c1), ds.Numeric(c2)
			r := pearson(x, y)
			n := float64(len(x))

			p := math.NaN()
			switch {
			case math.IsNaN(r) || n <= 2:
			case math.Abs(r) >= 1:
				p = 0
			default:
				t := r * math.Sqrt((n-2)/(1-r*r))
				p = tTestPValue(t, n-2)
			}

			correlations[c1+"_vs_"+c2] = map[string]interface{}{
				"correlation": nanToNil(r),
				"p_value":     nanToNil(p),
				"significant": !math.IsNaN(p) && p < alpha,
			}
		}
	}

	return map[string]interface{}{
		"test_type":    "correlation_test",
		"correlations": correlations,
	}, nil
}

// normalityTest は歪度・尖度に基づく正規性検定（Jarque–Bera）
func normalityTest(ds *Dataset, valueColumn string, alpha float64) (map[string]interface{}, error) {
	if valueColumn == "" {
		return nil, fmt.Errorf("normality_test requires value_column")
	}

	values := ds.Numeric(valueColumn)
	if len(values) < 8 {
		return nil, fmt.Errorf("normality_test requires at least 8 data points, got %d", len(values))
	}

	s := skewness(values)
	k := kurtosis(values)
	n := float64(len(values))
	jb := n / 6 * (s*s + k*k/4)
	// JBは自由度2のカイ二乗分布に従う
	p := math.Exp(-jb / 2)

	return map[string]interface{}{
		"test_type":   "normality_test",
		"statistic":   jb,
		"p_value":     p,
		"is_normal":   p > alpha,
		"skewness":    s,
		"kurtosis":    k,
		"sample_size": len(values),
	}, nil
}

// tTestPValue は両側p値。
// P(|T| > |t|) = I_x(df/2, 1/2), x = df/(df + t^2)
func tTestPValue(t, df float64) float64 {
	if math.IsNaN(t) || df <= 0 {
		return math.NaN()
	}
	x := df / (df + t*t)
	return incompleteBeta(df/2, 0.5, x)
}

// fPValue は上側p値 P(F' > f)。
// P(F' > f) = I_x(df2/2, df1/2), x = df2/(df2 + df1*f)
func fPValue(f, df1, df2 float64) float64 {
	if math.IsNaN(f) || f < 0 || df1 <= 0 || df2 <= 0 {
		return math.NaN()
	}
	x := df2 / (df2 + df1*f)
	return incompleteBeta(df2/2, df1/2, x)
}

// chiSquarePValue は上側p値 P(X² > chi2) = Q(df/2, chi2/2)
func chiSquarePValue(chi2, df float64) float64 {
	if math.IsNaN(chi2) || chi2 < 0 || df <= 0 {
		return math.NaN()
	}
	return upperIncompleteGamma(df/2, chi2/2)
}

// upperIncompleteGamma は正則化上側不完全ガンマ関数 Q(a, x)。
// x < a+1 では級数展開でPを求めて補い、それ以外は連分数で直接評価
func upperIncompleteGamma(a, x float64) float64 {
	if x <= 0 {
		return 1
	}
	if x < a+1 {
		return 1 - gammaSeries(a, x)
	}
	return gammaContinuedFraction(a, x)
}

// gammaSeries は級数展開による P(a, x)
func gammaSeries(a, x float64) float64 {
	const (
		maxIterations = 200
		epsilon       = 1e-14
	)

	lg, _ := math.Lgamma(a)
	ap := a
	term := 1 / a
	sum := term
	for i := 0; i < maxIterations; i++ {
		ap++
		term *= x / ap
		sum += term
		if math.Abs(term) < math.Abs(sum)*epsilon {
			break
		}
	}
	return sum * math.Exp(-x+a*math.Log(x)-lg)
}

// gammaContinuedFraction はLentz法による Q(a, x)
func gammaContinuedFraction(a, x float64) float64 {
	const (
		maxIterations = 200
		epsilon       = 1e-14
		tiny          = 1e-30
	)

	lg, _ := math.Lgamma(a)
	b := x + 1 - a
	c := 1 / tiny
	d := 1 / b
	result := d
	for i := 1; i <= maxIterations; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = b + an/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		delta := d * c
		result *= delta
		if math.Abs(delta-1) < epsilon {
			break
		}
	}
	return result * math.Exp(-x+a*math.Log(x)-lg)
}

// incompleteBeta は正則化不完全ベータ関数 I_x(a, b)
func incompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lg1, _ := math.Lgamma(a + b)
	lg2, _ := math.Lgamma(a)
	lg3, _ := math.Lgamma(b)
	front := math.Exp(lg1 - lg2 - lg3 + a*math.Log(x) + b*math.Log(1-x))

	// 連分数は x < (a+1)/(a+b+2) で収束が良い
	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(a, b, x) / a
	}
	return 1 - front*betaContinuedFraction(b, a, 1-x)/b
}

// betaContinuedFraction はLentz法による連分数評価
func betaContinuedFraction(a, b, x float64) float64 {
	const (
		maxIterations = 200
		epsilon       = 1e-14
		tiny          = 1e-30
	)

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	result := d

	for m := 1; m <= maxIterations; m++ {
		fm := float64(m)
		m2 := 2 * fm

		num := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + num*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + num/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		result *= d * c

		num = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + num*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + num/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		delta := d * c
		result *= delta

		if math.Abs(delta-1) < epsilon {
			break
		}
	}
	return result
}
