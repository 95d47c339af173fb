package retrieval

// DynamicTopK decides how many candidates to retrieve for a token budget:
// floor(tokenBudget/avgChunkTokens) clamped into [minK, maxK]. When minK
// exceeds maxK the floor wins, so at least minK candidates are requested.
// A non-positive avgChunkTokens yields maxK.
func DynamicTopK(tokenBudget, avgChunkTokens, minK, maxK int) int {
	estimate := maxK
	if avgChunkTokens > 0 {
		estimate = tokenBudget / avgChunkTokens
	}
	if estimate > maxK {
		estimate = maxK
	}
	if estimate < minK {
		estimate = minK
	}
	return estimate
}
