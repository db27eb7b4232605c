package utils

import (
	"fmt"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

// BandExpressions holds parsed per-pixel expressions over named bands.
// The pixel coordinates are exposed to expressions as the variables x and y.
type BandExpressions struct {
	ExprText    []string
	Expressions []*goeval.EvaluableExpression
	VarList     []string
	ExprVarRef  [][]string
}

func ParseBandExpressions(bands []string) (*BandExpressions, error) {
	bandExpr := &BandExpressions{}
	varFound := make(map[string]struct{})
	for _, bandRaw := range bands {
		band := strings.TrimSpace(bandRaw)
		if len(band) == 0 {
			return nil, fmt.Errorf("expression is empty")
		}
		expr, err := goeval.NewEvaluableExpression(band)
		if err != nil {
			return nil, fmt.Errorf("parsing error in expression '%v': %v", band, err)
		}
		bandExpr.Expressions = append(bandExpr.Expressions, expr)
		bandExpr.ExprText = append(bandExpr.ExprText, band)

		varRef := make(map[string]struct{})
		for _, token := range expr.Tokens() {
			if token.Kind != goeval.VARIABLE {
				continue
			}
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := varRef[varName]; !found {
				varRef[varName] = struct{}{}
			}
			if _, found := varFound[varName]; !found {
				varFound[varName] = struct{}{}
				bandExpr.VarList = append(bandExpr.VarList, varName)
			}
		}

		varRefList := make([]string, 0, len(varRef))
		for v := range varRef {
			varRefList = append(varRefList, v)
		}
		bandExpr.ExprVarRef = append(bandExpr.ExprVarRef, varRefList)
	}
	return bandExpr, nil
}
