package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"restaurant-pos/internal/models"
)

// Seed is the fixture file format used to populate a Memory store.
type Seed struct {
	Halls    []models.Hall    `yaml:"halls"`
	Tables   []models.Table   `yaml:"tables"`
	Products []models.Product `yaml:"products"`
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for _, t := range seed.Tables {
		if t.ID == "" || t.HallID == "" {
			return nil, fmt.Errorf("seed table %d: id and hall_id are required", t.Number)
		}
	}
	return &seed, nil
}

// Apply loads the seed into the store.
func (s *Seed) Apply(m *Memory) {
	for _, h := range s.Halls {
		m.AddHall(h)
	}
	for _, t := range s.Tables {
		m.AddTable(t)
	}
	for _, p := range s.Products {
		m.AddProduct(p)
	}
}
