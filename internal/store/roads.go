package store

import (
	"context"
	"fmt"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
	"github.com/mohammed-shakir/geosync/internal/core/model"
)

const roadCols = `id, name, road_type, length_km, surface_type, max_speed, path`

func scanRoad(sc scanner) (model.Road, error) {
	var r model.Road
	var path string
	if err := sc.Scan(&r.ID, &r.Name, &r.RoadType, &r.LengthKm, &r.SurfaceType, &r.MaxSpeed, &path); err != nil {
		return model.Road{}, err
	}
	pts, err := decodePoints(path)
	if err != nil {
		return model.Road{}, fmt.Errorf("road %d path: %w", r.ID, err)
	}
	if len(pts) > 0 {
		if r.Path, err = geom.NewLineString(pts); err != nil {
			return model.Road{}, fmt.Errorf("road %d path: %w", r.ID, err)
		}
	}
	return r, nil
}

func (s *SQLite) queryRoads(ctx context.Context, q string, args ...any) ([]model.Road, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query roads: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.Road
	for rows.Next() {
		r, err := scanRoad(rows)
		if err != nil {
			return nil, fmt.Errorf("scan road: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) ListRoads(ctx context.Context) ([]model.Road, error) {
	return s.queryRoads(ctx, `SELECT `+roadCols+` FROM roads ORDER BY id`)
}

func (s *SQLite) ListRoadsByType(ctx context.Context, roadType string) ([]model.Road, error) {
	return s.queryRoads(ctx, `SELECT `+roadCols+` FROM roads WHERE road_type = ? ORDER BY id`, roadType)
}

func (s *SQLite) GetRoad(ctx context.Context, id int64) (model.Road, error) {
	r, err := scanRoad(s.db.QueryRowContext(ctx, `SELECT `+roadCols+` FROM roads WHERE id = ?`, id))
	if err != nil {
		return model.Road{}, notFound(err, "get road", id)
	}
	return r, nil
}

func (s *SQLite) CreateRoad(ctx context.Context, r model.Road) (model.Road, error) {
	path, err := encodePoints(r.Path.Points())
	if err != nil {
		return model.Road{}, fmt.Errorf("encode road path: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO roads(name, road_type, length_km, surface_type, max_speed, path) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name, r.RoadType, r.LengthKm, r.SurfaceType, r.MaxSpeed, path)
	if err != nil {
		return model.Road{}, fmt.Errorf("insert road: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Road{}, fmt.Errorf("insert road id: %w", err)
	}
	r.ID = id
	return r, nil
}

func (s *SQLite) UpdateRoad(ctx context.Context, r model.Road) (model.Road, error) {
	path, err := encodePoints(r.Path.Points())
	if err != nil {
		return model.Road{}, fmt.Errorf("encode road path: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE roads SET name = ?, road_type = ?, length_km = ?, surface_type = ?, max_speed = ?, path = ? WHERE id = ?`,
		r.Name, r.RoadType, r.LengthKm, r.SurfaceType, r.MaxSpeed, path, r.ID)
	if err != nil {
		return model.Road{}, fmt.Errorf("update road %d: %w", r.ID, err)
	}
	if err := rowsAffected(res, "update road", r.ID); err != nil {
		return model.Road{}, err
	}
	return r, nil
}

func (s *SQLite) DeleteRoad(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM roads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete road %d: %w", id, err)
	}
	return rowsAffected(res, "delete road", id)
}
