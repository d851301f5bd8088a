package analytics

import "math"

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev divides by n, not n-1.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// line is an ordinary least-squares fit of values against their index.
type line struct {
	slope     float64
	intercept float64
}

func (l line) at(x float64) float64 {
	return l.intercept + l.slope*x
}

func fitLine(values []float64) line {
	n := len(values)
	if n == 0 {
		return line{}
	}
	xMean := float64(n-1) / 2
	yMean := mean(values)

	var num, den float64
	for i, y := range values {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return line{intercept: yMean}
	}
	slope := num / den
	return line{slope: slope, intercept: yMean - slope*xMean}
}

// pearson returns 0 for fewer than minPairs points or when either side has no
// variance.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n < minPairs || n != len(y) {
		return 0
	}
	xMean, yMean := mean(x), mean(y)

	var num, dx2, dy2 float64
	for i := range x {
		dx, dy := x[i]-xMean, y[i]-yMean
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}
	den := math.Sqrt(dx2) * math.Sqrt(dy2)
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	r := num / den
	if math.IsNaN(r) {
		return 0
	}
	return clamp(r, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
