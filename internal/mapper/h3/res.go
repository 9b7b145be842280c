package h3mapper

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"
)

func (m *Mapper) ToParent(cell string, parentRes int) (string, error) {
	if err := validateRes(parentRes); err != nil {
		return "", err
	}
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil {
		return "", fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return "", fmt.Errorf("invalid h3 cell %q", cell)
	}
	cur := c.Resolution()
	if parentRes > cur {
		return "", fmt.Errorf("parentRes %d must be <= cell resolution %d", parentRes, cur)
	}
	if parentRes == cur {
		return cell, nil
	}
	p, err := c.Parent(parentRes)
	if err != nil {
		return "", fmt.Errorf("h3 parent: %w", err)
	}
	return p.String(), nil
}

// Coarsen replaces cells with their parents one resolution at a time until at
// most limit remain or resolution 0 is reached. It returns the resolution the
// result is expressed at.
func (m *Mapper) Coarsen(cells []string, res, limit int) ([]string, int, error) {
	if limit <= 0 || len(cells) <= limit {
		return cells, res, nil
	}
	for len(cells) > limit && res > 0 {
		res--
		set := make(map[string]struct{}, len(cells))
		for _, c := range cells {
			p, err := m.ToParent(c, res)
			if err != nil {
				return nil, 0, err
			}
			set[p] = struct{}{}
		}
		cells = sorted(set)
	}
	return cells, res, nil
}
