package service

import "github.com/StudyingHUYANG/VisionMark/internal/model"

const (
	silverPoints   = 100
	goldPoints     = 500
	platinumPoints = 1000
)

// TierFor maps total points to a contribution tier:
//
//	bronze < 100 <= silver < 500 <= gold < 1000 <= platinum
func TierFor(points int) model.Tier {
	switch {
	case points >= platinumPoints:
		return model.TierPlatinum
	case points >= goldPoints:
		return model.TierGold
	case points >= silverPoints:
		return model.TierSilver
	default:
		return model.TierBronze
	}
}
