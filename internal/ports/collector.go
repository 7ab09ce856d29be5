package ports

import "github.com/ghalamif/SlopeGuard/internal/domain"

type Collector interface {
	Start(out chan<- *domain.Frame) error
	Stop() error
}
