// Package rating derives the displayed rating of a product from its raw ratings.
package rating

import (
	"github.com/safar/hive-store/internal/models"
	"github.com/shopspring/decimal"
)

type Summary struct {
	AverageRating float64 `json:"averageRating"`
	RatingCount   int     `json:"ratingCount"`
	UserRating    *int    `json:"userRating"`
}

// Summarize rounds the mean half-up to one decimal place. UserRating is set
// only when viewerID is non-empty and that user has rated the product.
func Summarize(ratings []models.Rating, viewerID string) Summary {
	var s Summary
	var sum int64

	for _, r := range ratings {
		sum += int64(r.Rating)
		if viewerID != "" && r.UserID == viewerID {
			v := r.Rating
			s.UserRating = &v
		}
	}

	s.RatingCount = len(ratings)
	if s.RatingCount == 0 {
		return s
	}

	mean := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(s.RatingCount)))
	s.AverageRating = mean.Round(1).InexactFloat64()
	return s
}
