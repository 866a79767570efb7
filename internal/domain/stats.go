package domain

// ReviewStats summarizes the reviews an identity has received.
type ReviewStats struct {
	Count         int64
	AverageRating float64
	Distribution  map[int]int64
}

// ProfileStats extends ReviewStats with the number of reviews written.
type ProfileStats struct {
	ReviewStats
	Written int64
}

// EmptyDistribution returns a distribution with every rating key set to 0.
func EmptyDistribution() map[int]int64 {
	dist := make(map[int]int64, MaxRating)
	for rating := MinRating; rating <= MaxRating; rating++ {
		dist[rating] = 0
	}
	return dist
}
