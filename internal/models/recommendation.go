package models

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// MetadataStatus describes the enrichment outcome of one recommendation.
type MetadataStatus string

const (
	MetadataOK          MetadataStatus = "ok"
	MetadataNotFound    MetadataStatus = "not_found"
	MetadataUnavailable MetadataStatus = "unavailable"
	MetadataInvalid     MetadataStatus = "invalid"
	MetadataSkipped     MetadataStatus = "skipped"
)

// RecommendRequest asks for the K items most similar to Title.
type RecommendRequest struct {
	Title  string `json:"title"`
	K      int    `json:"k,omitempty"`
	Enrich *bool  `json:"enrich,omitempty"`
}

// Validate checks the request and normalizes K: zero or negative K becomes
// defaultK and K is capped at maxK.
func (r *RecommendRequest) Validate(defaultK, maxK int) error {
	if r.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidRequest)
	}
	if r.K <= 0 {
		r.K = defaultK
	}
	if maxK > 0 && r.K > maxK {
		r.K = maxK
	}
	return nil
}

// EnrichOrDefault returns whether metadata should be fetched; defaults to def when unset.
func (r *RecommendRequest) EnrichOrDefault(def bool) bool {
	if r.Enrich != nil {
		return *r.Enrich
	}
	return def
}

// Recommendation is one ranked neighbor of the query item.
type Recommendation struct {
	Rank       int            `json:"rank"`
	Row        int            `json:"row"`
	ID         int64          `json:"id"`
	Title      string         `json:"title"`
	Score      float64        `json:"score"`
	Status     MetadataStatus `json:"metadata_status"`
	Error      string         `json:"metadata_error,omitempty"`
	Details    *MovieDetails  `json:"details,omitempty"`
	TrailerURL string         `json:"trailer_url,omitempty"`
	SearchURL  string         `json:"search_url"`
}

type recommendationJSON Recommendation

// MarshalJSON encodes a NaN or infinite score as null, since JSON has no
// representation for either.
func (r Recommendation) MarshalJSON() ([]byte, error) {
	out := struct {
		recommendationJSON
		Score *float64 `json:"score"`
	}{recommendationJSON: recommendationJSON(r)}
	if !math.IsNaN(r.Score) && !math.IsInf(r.Score, 0) {
		score := r.Score
		out.Score = &score
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null score as NaN.
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	var in struct {
		recommendationJSON
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Recommendation(in.recommendationJSON)
	r.Score = math.NaN()
	if in.Score != nil {
		r.Score = *in.Score
	}
	return nil
}

// RecommendResponse is the response for a recommendation request.
type RecommendResponse struct {
	RequestID       string            `json:"request_id"`
	Query           CatalogItem       `json:"query"`
	Recommendations []*Recommendation `json:"recommendations"`
	Total           int               `json:"total"`
	QueryTime       int64             `json:"query_time_ms"`
}
