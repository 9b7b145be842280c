// Package store persists feature records locally. The local store is the
// source of truth; GeoServer only mirrors it.
package store

import (
	"context"
	"errors"

	"github.com/mohammed-shakir/geosync/internal/core/model"
)

var ErrNotFound = errors.New("feature not found")

type Store interface {
	ListFactories(ctx context.Context) ([]model.Factory, error)
	ListFactoriesByIndustry(ctx context.Context, industryType string) ([]model.Factory, error)
	GetFactory(ctx context.Context, id int64) (model.Factory, error)
	CreateFactory(ctx context.Context, f model.Factory) (model.Factory, error)
	UpdateFactory(ctx context.Context, f model.Factory) (model.Factory, error)
	DeleteFactory(ctx context.Context, id int64) error

	ListRoads(ctx context.Context) ([]model.Road, error)
	ListRoadsByType(ctx context.Context, roadType string) ([]model.Road, error)
	GetRoad(ctx context.Context, id int64) (model.Road, error)
	CreateRoad(ctx context.Context, r model.Road) (model.Road, error)
	UpdateRoad(ctx context.Context, r model.Road) (model.Road, error)
	DeleteRoad(ctx context.Context, id int64) error

	ListForests(ctx context.Context) ([]model.Forest, error)
	ListForestsByType(ctx context.Context, forestType string) ([]model.Forest, error)
	GetForest(ctx context.Context, id int64) (model.Forest, error)
	CreateForest(ctx context.Context, f model.Forest) (model.Forest, error)
	UpdateForest(ctx context.Context, f model.Forest) (model.Forest, error)
	DeleteForest(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close() error
}
