package ports

import "github.com/ghalamif/SlopeGuard/internal/domain"

type Scorer interface {
	Score(*domain.Frame) (*domain.ScoredFrame, error)
	Version() uint16
}
