// Package location восстанавливает иерархические пути локаций QA-системы
// и выделяет из них ключ башни.
package location

import (
	"log/slog"
	"strings"
)

const (
	// DefaultRootName общий синтетический корень всех путей
	DefaultRootName = "Quality"
	// DefaultUnknownPath путь-заглушка, когда восстановить путь не удалось
	DefaultUnknownPath = "Unknown"
	// DefaultMaxDepth ограничение числа переходов к родителю (защита от циклов)
	DefaultMaxDepth = 10
	// PathSeparator разделитель сегментов пути
	PathSeparator = "/"
)

// Node узел леса локаций. ParentID только слабая ссылка на родителя.
type Node struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Name     string `json:"name"`
}

// ResolverOptions параметры восстановления путей
type ResolverOptions struct {
	RootName    string
	UnknownPath string
	MaxDepth    int
}

// Resolver восстанавливает путь от корня до локации по карте узлов.
// Карта неизменна в течение прогона, методы не имеют побочных эффектов кроме логирования.
type Resolver struct {
	nodes  map[string]Node
	opts   ResolverOptions
	logger *slog.Logger
}

// NewResolver создает резолвер путей для набора узлов
func NewResolver(nodes []Node, opts ResolverOptions) *Resolver {
	if opts.RootName == "" {
		opts.RootName = DefaultRootName
	}
	if opts.UnknownPath == "" {
		opts.UnknownPath = DefaultUnknownPath
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	index := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		index[n.ID] = n
	}

	return &Resolver{
		nodes:  index,
		opts:   opts,
		logger: slog.Default().With("component", "location_resolver"),
	}
}

// Path возвращает путь локации, имена соединены через "/" начиная с корня.
// Если путь построить нельзя, возвращается "Unknown".
func (r *Resolver) Path(locationID string) string {
	return strings.Join(r.Segments(locationID), PathSeparator)
}

// Segments возвращает сегменты пути от самого дальнего предка до самой локации.
// Длина результата не меньше 1.
func (r *Resolver) Segments(locationID string) []string {
	var segments []string
	current := locationID

	for hops := 0; ; hops++ {
		if hops >= r.opts.MaxDepth {
			r.logger.Warn("Location depth guard reached, possible cycle",
				"location_id", locationID,
				"max_depth", r.opts.MaxDepth)
			break
		}

		node, ok := r.nodes[current]
		if !ok {
			if hops == 0 {
				r.logger.Debug("Location not found", "location_id", locationID)
			}
			break
		}

		segments = append(segments, node.Name)

		if node.ParentID == "" {
			// Корень достигнут
			if node.Name != r.opts.RootName {
				segments = append(segments, r.opts.RootName)
			}
			break
		}

		if _, ok := r.nodes[node.ParentID]; !ok {
			r.logger.Debug("Parent location missing",
				"location_id", locationID,
				"parent_id", node.ParentID)
			break
		}
		current = node.ParentID
	}

	if len(segments) == 0 {
		return []string{r.opts.UnknownPath}
	}

	// Собирали от листа к корню
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return segments
}
