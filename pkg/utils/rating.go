package utils

import "math"

// K-factor for quiz battle rating updates.
const kFactor = 32.0

// Expected score function
func ExpectedScore(r1, r2 float64) float64 {
	return 1 / (1 + math.Pow(10, (r2-r1)/400))
}

// UpdateElo returns the new rating after a battle.
// result is 1 for a win, 0.5 for a draw and 0 for a loss.
func UpdateElo(rating, opponent float64, result float64) float64 {
	return rating + kFactor*(result-ExpectedScore(rating, opponent))
}

// EloChange returns only the delta, rounded the way the ranking views display it.
func EloChange(rating, opponent float64, result float64) int {
	return int(math.Round(kFactor * (result - ExpectedScore(rating, opponent))))
}

// TierForElo maps a rating to its named skill bracket.
func TierForElo(elo float64) string {
	switch {
	case elo < 1000:
		return "BRONZE"
	case elo < 1200:
		return "SILVER"
	case elo < 1400:
		return "GOLD"
	case elo < 1600:
		return "PLATINUM"
	case elo < 1800:
		return "DIAMOND"
	default:
		return "MASTER"
	}
}
