package store

import (
	"context"
	"fmt"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
	"github.com/mohammed-shakir/geosync/internal/core/model"
)

const factoryCols = `id, name, industry_type, capacity, established_year, status, lon, lat`

type scanner interface {
	Scan(dest ...any) error
}

func scanFactory(sc scanner) (model.Factory, error) {
	var f model.Factory
	var lon, lat float64
	if err := sc.Scan(&f.ID, &f.Name, &f.IndustryType, &f.Capacity, &f.EstablishedYear, &f.Status, &lon, &lat); err != nil {
		return model.Factory{}, err
	}
	f.Location = geom.Point{X: lon, Y: lat}
	return f, nil
}

func (s *SQLite) queryFactories(ctx context.Context, q string, args ...any) ([]model.Factory, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query factories: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.Factory
	for rows.Next() {
		f, err := scanFactory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan factory: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLite) ListFactories(ctx context.Context) ([]model.Factory, error) {
	return s.queryFactories(ctx, `SELECT `+factoryCols+` FROM factories ORDER BY id`)
}

func (s *SQLite) ListFactoriesByIndustry(ctx context.Context, industryType string) ([]model.Factory, error) {
	return s.queryFactories(ctx, `SELECT `+factoryCols+` FROM factories WHERE industry_type = ? ORDER BY id`, industryType)
}

func (s *SQLite) GetFactory(ctx context.Context, id int64) (model.Factory, error) {
	f, err := scanFactory(s.db.QueryRowContext(ctx, `SELECT `+factoryCols+` FROM factories WHERE id = ?`, id))
	if err != nil {
		return model.Factory{}, notFound(err, "get factory", id)
	}
	return f, nil
}

func (s *SQLite) CreateFactory(ctx context.Context, f model.Factory) (model.Factory, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO factories(name, industry_type, capacity, established_year, status, lon, lat) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.IndustryType, f.Capacity, f.EstablishedYear, f.Status, f.Location.X, f.Location.Y)
	if err != nil {
		return model.Factory{}, fmt.Errorf("insert factory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Factory{}, fmt.Errorf("insert factory id: %w", err)
	}
	f.ID = id
	return f, nil
}

func (s *SQLite) UpdateFactory(ctx context.Context, f model.Factory) (model.Factory, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE factories SET name = ?, industry_type = ?, capacity = ?, established_year = ?, status = ?, lon = ?, lat = ? WHERE id = ?`,
		f.Name, f.IndustryType, f.Capacity, f.EstablishedYear, f.Status, f.Location.X, f.Location.Y, f.ID)
	if err != nil {
		return model.Factory{}, fmt.Errorf("update factory %d: %w", f.ID, err)
	}
	if err := rowsAffected(res, "update factory", f.ID); err != nil {
		return model.Factory{}, err
	}
	return f, nil
}

func (s *SQLite) DeleteFactory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM factories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete factory %d: %w", id, err)
	}
	return rowsAffected(res, "delete factory", id)
}

