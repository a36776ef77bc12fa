package score

import (
	"fmt"

	"github.com/warmline/internal/thread"
)

// Band boundaries are a design convention of the warmth model; the orchestrator
// derives the stored band from the numeric total rather than trusting the
// engine's band field.
const (
	BandCold   = "cold"    // 0-20
	BandCool   = "cool"    // 21-40
	BandWarm   = "warm"    // 41-60
	BandHot    = "hot"     // 61-80
	BandOnFire = "on-fire" // 81-100
)

// QualifyThreshold is the default score at which a thread counts as qualified.
const QualifyThreshold = 61

// BandFor maps a 0-100 total to its qualitative band.
func BandFor(total int) string {
	switch {
	case total <= 20:
		return BandCold
	case total <= 40:
		return BandCool
	case total <= 60:
		return BandWarm
	case total <= 80:
		return BandHot
	default:
		return BandOnFire
	}
}

type layerResponse struct {
	Subtotal int            `json:"subtotal"`
	Signals  map[string]int `json:"signals"`
}

// engineScore is the strict response contract of the scoring engine: a
// three-layer additive model summing to 0-100.
type engineScore struct {
	Total             int           `json:"total"`
	Band              string        `json:"band"`
	SuggestedBusiness string        `json:"suggestedBusiness"`
	Layer1            layerResponse `json:"layer1"`
	Layer2            layerResponse `json:"layer2"`
	Layer3            layerResponse `json:"layer3"`
	Summary           string        `json:"summary"`
	MessagingGuidance string        `json:"messagingGuidance"`
}

func (e *engineScore) validate() error {
	if e.Total < 0 || e.Total > 100 {
		return fmt.Errorf("total %d out of range", e.Total)
	}
	for i, l := range []layerResponse{e.Layer1, e.Layer2, e.Layer3} {
		if l.Subtotal < 0 {
			return fmt.Errorf("layer%d subtotal %d is negative", i+1, l.Subtotal)
		}
	}
	return nil
}

func (e *engineScore) breakdown() thread.ScoreBreakdown {
	return thread.ScoreBreakdown{
		Total:             e.Total,
		Band:              BandFor(e.Total),
		SuggestedBusiness: e.SuggestedBusiness,
		Layer1:            thread.ScoreLayer{Subtotal: e.Layer1.Subtotal, Signals: e.Layer1.Signals},
		Layer2:            thread.ScoreLayer{Subtotal: e.Layer2.Subtotal, Signals: e.Layer2.Signals},
		Layer3:            thread.ScoreLayer{Subtotal: e.Layer3.Subtotal, Signals: e.Layer3.Signals},
		Summary:           e.Summary,
		MessagingGuidance: e.MessagingGuidance,
	}
}
