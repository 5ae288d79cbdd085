package devstub

import (
	"fmt"
	"strings"

	"github.com/erauner12/gamesdb/internal/catalog"
)

var regions = []catalog.Region{
	catalog.RegionWorldwide, catalog.RegionNorthAmerica, catalog.RegionEurope, catalog.RegionJapan,
}

var genres = []catalog.Genre{
	{ID: 5, Name: "Shooter"}, {ID: 12, Name: "Role-playing (RPG)"}, {ID: 31, Name: "Adventure"}, {ID: 32, Name: "Indie"},
}

// fixtures are deterministic catalog records. Every list holds one extra
// record that the default filters exclude.
type fixtures struct {
	games     []catalog.Game
	companies []catalog.Company
	engines   []catalog.GameEngine
}

func newFixtures(games, companies, engines int) fixtures {
	var f fixtures

	for i := 1; i <= games; i++ {
		rating := 60 + float64(i%40)
		count := 10 + i
		date := int64(1262304000 + i*86400*30)
		f.games = append(f.games, catalog.Game{
			ID:      i,
			Name:    fmt.Sprintf("Game %03d", i),
			Cover:   &catalog.ImageResource{ID: 1000 + i, ImageID: fmt.Sprintf("co%04d", i)},
			Genres:  []catalog.Genre{genres[i%len(genres)]},
			Summary: fmt.Sprintf("Summary of game %d.", i),
			Platforms: []catalog.Platform{{
				ID: 6, Name: "PC (Microsoft Windows)",
				PlatformLogo: &catalog.ImageResource{ID: 203, ImageID: "plim"},
			}},
			ReleaseDates: []catalog.ReleaseDate{{
				ID:            2000 + i,
				Date:          &date,
				Human:         fmt.Sprintf("Release %d", i),
				ReleaseRegion: catalog.ReleaseRegion{ID: 8, Region: regions[i%len(regions)]},
			}},
			Videos:       []catalog.Video{{ID: 3000 + i, VideoID: fmt.Sprintf("vid%05d", i)}},
			SimilarGames: []int{(i % games) + 1},
			Rating:       &rating,
			RatingCount:  &count,
			AgeRatings: []catalog.AgeRating{{
				ID: 4000 + i,
				RatingCategory: catalog.RatingCategory{
					ID: 4, Rating: "T", Organization: catalog.Genre{ID: 1, Name: "ESRB"},
				},
			}},
		})
	}
	lowCount := 2
	f.games = append(f.games, catalog.Game{ID: games + 1, Name: "Unrated Prototype", RatingCount: &lowCount})

	for i := 1; i <= companies; i++ {
		f.companies = append(f.companies, catalog.Company{
			ID:        i,
			Name:      fmt.Sprintf("Company %03d", i),
			Logo:      &catalog.ImageResource{ID: 5000 + i, ImageID: fmt.Sprintf("cl%04d", i)},
			Developed: []int{i},
			Published: []int{i, i + 1},
		})
	}
	f.companies = append(f.companies, catalog.Company{ID: companies + 1, Name: "Logoless Studio"})

	for i := 1; i <= engines; i++ {
		f.engines = append(f.engines, catalog.GameEngine{
			ID:          i,
			Name:        fmt.Sprintf("Engine %03d", i),
			Description: fmt.Sprintf("Engine number %d.", i),
			Logo:        &catalog.ImageResource{ID: 6000 + i, ImageID: fmt.Sprintf("el%04d", i)},
			CompanyIDs:  []int{i},
		})
	}
	f.engines = append(f.engines, catalog.GameEngine{ID: engines + 1, Name: "Homebrew Engine"})

	return f
}

// record is what filtering needs to know about any fixture
type record struct {
	id          int
	name        string
	ratingCount int
	hasLogo     bool
	hasCover    bool
}

func gameRecord(g catalog.Game) record {
	r := record{id: g.ID, name: g.Name, hasCover: g.Cover != nil}
	if g.RatingCount != nil {
		r.ratingCount = *g.RatingCount
	}
	return r
}

func companyRecord(c catalog.Company) record {
	return record{id: c.ID, name: c.Name, hasLogo: c.Logo != nil}
}

func engineRecord(e catalog.GameEngine) record {
	return record{id: e.ID, name: e.Name, hasLogo: e.Logo != nil}
}

func (r record) matches(q parsedQuery) (bool, error) {
	if q.Search != "" && !strings.Contains(strings.ToLower(r.name), strings.ToLower(q.Search)) {
		return false, nil
	}
	if q.Where == nil {
		return true, nil
	}

	c := *q.Where
	switch c.Field {
	case "id":
		return c.matchNumber(r.id)
	case "rating_count":
		return c.matchNumber(r.ratingCount)
	case "logo":
		return c.matchPresence(r.hasLogo)
	case "cover":
		return c.matchPresence(r.hasCover)
	default:
		return false, fmt.Errorf("unsupported filter field %q", c.Field)
	}
}

// selectPage filters items and applies offset and limit
func selectPage[T any](items []T, rec func(T) record, q parsedQuery) ([]T, error) {
	matched := make([]T, 0, len(items))
	for _, it := range items {
		ok, err := rec(it).matches(q)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, it)
		}
	}

	if q.Offset >= len(matched) {
		return []T{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], nil
}
