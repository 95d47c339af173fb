package retrieval

// maxRecencyBoost is the largest multiplier bonus given to the most recent document.
const maxRecencyBoost = 0.1

// TimeDecay converts a document's order into a mild relevance multiplier in
// [1.0, 1.1]: 1 + 0.1 * order/maxOrder. It returns 1.0 when maxOrder <= 1.
// Orders outside [0, maxOrder] are clamped, so the result is monotonically
// non-decreasing in order.
func TimeDecay(order, maxOrder int) float64 {
	if maxOrder <= 1 {
		return 1.0
	}
	if order < 0 {
		order = 0
	}
	if order > maxOrder {
		order = maxOrder
	}
	return 1 + maxRecencyBoost*(float64(order)/float64(maxOrder))
}
