package engine

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"text/template"

	"github.com/shopspring/decimal"

	"github.com/user/credit-sentinel/pkg/covenant"
)

var explanationTemplates = map[covenant.Status]*template.Template{
	covenant.StatusCompliant: template.Must(template.New("compliant").Parse(
		`{{.Name}} is compliant: the current value of {{.Value}} meets the requirement of {{.Operator}} {{.Threshold}}.`)),
	covenant.StatusWarning: template.Must(template.New("warning").Parse(
		`{{.Name}} is approaching its limit: the current value of {{.Value}} is ` +
			`{{if .Distance}}{{.Distance}}% away from{{else}}within the warning band of{{end}} ` +
			`the threshold of {{.Operator}} {{.Threshold}}. Monitor closely before the next reporting period.`)),
	covenant.StatusBreach: template.Must(template.New("breach").Parse(
		`{{.Name}} is in breach: the current value of {{.Value}} violates the requirement of {{.Operator}} {{.Threshold}}. Immediate attention is required.`)),
}

type explanationVars struct {
	Name      string
	Value     string
	Operator  covenant.Operator
	Threshold string
	Distance  string
}

// Explain renders a one-sentence explanation of an evaluation result. It is
// total: a zero threshold omits the distance percentage instead of dividing
// by zero.
func Explain(def covenant.Definition, res covenant.Result) string {
	tmpl, ok := explanationTemplates[res.Status]
	if !ok {
		return fmt.Sprintf("%s: status %s (current value %s, threshold %s %s).",
			def.Name, res.Status, formatNumber(res.CurrentValue), def.Operator, formatNumber(res.Threshold))
	}

	vars := explanationVars{
		Name:      def.Name,
		Value:     formatNumber(res.CurrentValue),
		Operator:  def.Operator,
		Threshold: formatNumber(res.Threshold),
	}
	if res.Status == covenant.StatusWarning {
		if d, ok := DistanceToThreshold(res.CurrentValue, res.Threshold); ok {
			vars.Distance = d
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return fmt.Sprintf("%s: %s", def.Name, res.Status)
	}
	return buf.String()
}

// DistanceToThreshold returns |v - t| / |t| * 100 formatted to one decimal
// place. ok is false when t is zero.
func DistanceToThreshold(v, t float64) (string, bool) {
	if t == 0 {
		return "", false
	}
	pct := math.Abs(v-t) / math.Abs(t) * 100
	return decimal.NewFromFloat(pct).StringFixed(1), true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
