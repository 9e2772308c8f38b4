package db

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/buketp/UrbanFeed/internal/news"
)

//go:embed seed/cities.yaml
var citiesSeedYAML []byte

type citySeedFile struct {
	Cities []struct {
		Name string `yaml:"name"`
		Code int16  `yaml:"code"`
	} `yaml:"cities"`
}

// SeedCityList returns the embedded province list used to populate an empty
// cities table.
func SeedCityList() ([]news.City, error) {
	var file citySeedFile
	if err := yaml.Unmarshal(citiesSeedYAML, &file); err != nil {
		return nil, fmt.Errorf("parse cities seed: %w", err)
	}

	cities := make([]news.City, 0, len(file.Cities))
	seen := make(map[string]struct{}, len(file.Cities))
	for i, entry := range file.Cities {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("cities seed entry %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("cities seed lists %q twice", name)
		}
		seen[name] = struct{}{}

		city := news.City{Name: name, IsActive: true}
		if entry.Code > 0 {
			code := entry.Code
			city.Code = &code
		}
		cities = append(cities, city)
	}
	return cities, nil
}
