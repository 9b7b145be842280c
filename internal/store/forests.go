package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
	"github.com/mohammed-shakir/geosync/internal/core/model"
)

const forestCols = `id, name, forest_type, area_hectares, density, protection_status, center_lon, center_lat, ring`

func scanForest(sc scanner) (model.Forest, error) {
	var f model.Forest
	var lon, lat sql.NullFloat64
	var ring sql.NullString
	if err := sc.Scan(&f.ID, &f.Name, &f.ForestType, &f.AreaHectares, &f.Density, &f.ProtectionStatus, &lon, &lat, &ring); err != nil {
		return model.Forest{}, err
	}
	if lon.Valid && lat.Valid {
		f.Center = &geom.Point{X: lon.Float64, Y: lat.Float64}
	}
	if ring.Valid && ring.String != "" {
		pts, err := decodePoints(ring.String)
		if err != nil {
			return model.Forest{}, fmt.Errorf("forest %d ring: %w", f.ID, err)
		}
		poly, err := geom.NewPolygon(pts)
		if err != nil {
			return model.Forest{}, fmt.Errorf("forest %d ring: %w", f.ID, err)
		}
		f.Ring = &poly
	}
	return f, nil
}

func forestArgs(f model.Forest) ([]any, error) {
	var lon, lat sql.NullFloat64
	if f.Center != nil {
		lon = sql.NullFloat64{Float64: f.Center.X, Valid: true}
		lat = sql.NullFloat64{Float64: f.Center.Y, Valid: true}
	}
	var ring sql.NullString
	if f.Ring != nil {
		raw, err := encodePoints(f.Ring.Ring())
		if err != nil {
			return nil, fmt.Errorf("encode forest ring: %w", err)
		}
		ring = sql.NullString{String: raw, Valid: true}
	}
	return []any{f.Name, f.ForestType, f.AreaHectares, f.Density, f.ProtectionStatus, lon, lat, ring}, nil
}

func (s *SQLite) queryForests(ctx context.Context, q string, args ...any) ([]model.Forest, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query forests: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.Forest
	for rows.Next() {
		f, err := scanForest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan forest: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLite) ListForests(ctx context.Context) ([]model.Forest, error) {
	return s.queryForests(ctx, `SELECT `+forestCols+` FROM forests ORDER BY id`)
}

func (s *SQLite) ListForestsByType(ctx context.Context, forestType string) ([]model.Forest, error) {
	return s.queryForests(ctx, `SELECT `+forestCols+` FROM forests WHERE forest_type = ? ORDER BY id`, forestType)
}

func (s *SQLite) GetForest(ctx context.Context, id int64) (model.Forest, error) {
	f, err := scanForest(s.db.QueryRowContext(ctx, `SELECT `+forestCols+` FROM forests WHERE id = ?`, id))
	if err != nil {
		return model.Forest{}, notFound(err, "get forest", id)
	}
	return f, nil
}

func (s *SQLite) CreateForest(ctx context.Context, f model.Forest) (model.Forest, error) {
	args, err := forestArgs(f)
	if err != nil {
		return model.Forest{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO forests(name, forest_type, area_hectares, density, protection_status, center_lon, center_lat, ring) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		args...)
	if err != nil {
		return model.Forest{}, fmt.Errorf("insert forest: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Forest{}, fmt.Errorf("insert forest id: %w", err)
	}
	f.ID = id
	return f, nil
}

func (s *SQLite) UpdateForest(ctx context.Context, f model.Forest) (model.Forest, error) {
	args, err := forestArgs(f)
	if err != nil {
		return model.Forest{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE forests SET name = ?, forest_type = ?, area_hectares = ?, density = ?, protection_status = ?, center_lon = ?, center_lat = ?, ring = ? WHERE id = ?`,
		append(args, f.ID)...)
	if err != nil {
		return model.Forest{}, fmt.Errorf("update forest %d: %w", f.ID, err)
	}
	if err := rowsAffected(res, "update forest", f.ID); err != nil {
		return model.Forest{}, err
	}
	return f, nil
}

func (s *SQLite) DeleteForest(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete forest %d: %w", id, err)
	}
	return rowsAffected(res, "delete forest", id)
}
