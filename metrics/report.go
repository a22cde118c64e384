package metrics

import (
	"fmt"
	"strconv"
	"strings"
)

// ClassMetrics holds precision, recall, F1 and support for one class or one
// average row.
type ClassMetrics struct {
	Name      string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a per-class classification report with macro and
// support-weighted averages.
type Report struct {
	Classes     []ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
	Total       int
}

// ClassificationReport computes per-class metrics for labels (nil means
// Labels(yTrue, yPred)). A ratio whose denominator is zero is 0.
func ClassificationReport(yTrue, yPred []int, labels []int) (*Report, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	k := len(labels)
	rep := &Report{Classes: make([]ClassMetrics, k), Accuracy: acc, Total: len(yTrue)}
	supportSum := 0
	for i := 0; i < k; i++ {
		tp := cm.At(i, i)
		predicted, actual := 0.0, 0.0
		for j := 0; j < k; j++ {
			predicted += cm.At(j, i)
			actual += cm.At(i, j)
		}
		c := ClassMetrics{
			Name:      strconv.Itoa(labels[i]),
			Precision: safeDiv(tp, predicted),
			Recall:    safeDiv(tp, actual),
			Support:   int(actual),
		}
		c.F1 = safeDiv(2*c.Precision*c.Recall, c.Precision+c.Recall)
		rep.Classes[i] = c
		supportSum += c.Support
	}

	rep.MacroAvg = ClassMetrics{Name: "macro avg", Support: supportSum}
	rep.WeightedAvg = ClassMetrics{Name: "weighted avg", Support: supportSum}
	for _, c := range rep.Classes {
		rep.MacroAvg.Precision += c.Precision / float64(k)
		rep.MacroAvg.Recall += c.Recall / float64(k)
		rep.MacroAvg.F1 += c.F1 / float64(k)

		w := safeDiv(float64(c.Support), float64(supportSum))
		rep.WeightedAvg.Precision += c.Precision * w
		rep.WeightedAvg.Recall += c.Recall * w
		rep.WeightedAvg.F1 += c.F1 * w
	}
	return rep, nil
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// String renders the report in the classic fixed-width text layout.
func (r *Report) String() string {
	const width = 12
	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Total)
	for _, c := range []ClassMetrics{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	return b.String()
}
