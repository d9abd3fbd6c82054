// Package pricing turns a mesh volume into a quote using a linear cost model.
package pricing

import (
	"math"

	"stlquote/internal/domain"
)

// Model holds the per-deployment pricing constants.
type Model struct {
	MaterialCostPerCM3 float64
	BaseFee            float64
}

// Quote prices volumeCM3. Volume and price are rounded independently; the
// price is computed from the unrounded volume.
func (m Model) Quote(volumeCM3 float64) domain.Quote {
	price := volumeCM3*m.MaterialCostPerCM3 + m.BaseFee
	return domain.Quote{
		VolumeCM3: Round2(volumeCM3),
		Price:     Round2(price),
	}
}

// Round2 rounds x to two decimals, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
