package catalog

import "fmt"

// Entity describes one queryable endpoint of the catalog API
type Entity struct {
	Name          string   // name used in routes and logs
	Path          string   // endpoint path below the API base URL
	Fields        []string // field projection, in request order
	DefaultFilter string   // filter clause used by list views
}

var (
	Games = Entity{
		Name: "games",
		Path: "/games",
		Fields: []string{
			"name",
			"cover.image_id",
			"platforms.name",
			"platforms.platform_logo.image_id",
			"summary",
			"similar_games",
			"genres.name",
			"release_dates.date",
			"release_dates.human",
			"release_dates.release_region.region",
			"rating",
			"rating_count",
			"age_ratings.rating_category.rating",
			"age_ratings.rating_category.organization.name",
			"videos.video_id",
		},
		DefaultFilter: "where rating_count > 5",
	}

	Companies = Entity{
		Name: "companies",
		Path: "/companies",
		Fields: []string{
			"name",
			"published",
			"developed",
			"logo.image_id",
		},
		DefaultFilter: "where logo != null",
	}

	GameEngines = Entity{
		Name: "game_engines",
		Path: "/game_engines",
		Fields: []string{
			"companies",
			"description",
			"logo.image_id",
			"name",
		},
		DefaultFilter: "where logo != null",
	}
)

// Entities lists every queryable entity
var Entities = []Entity{Games, Companies, GameEngines}

// EntityByName looks an entity up by its route name
func EntityByName(name string) (Entity, error) {
	for _, e := range Entities {
		if e.Name == name {
			return e, nil
		}
	}
	return Entity{}, fmt.Errorf("unknown entity %q", name)
}

// ImageSize is the size token in an image CDN path (t_<size>)
type ImageSize string

const (
	CoverSmall       ImageSize = "cover_small_2x"
	ScreenshotMedium ImageSize = "screenshot_med_2x"
	CoverBig         ImageSize = "cover_big_2x"
	LogoMedium       ImageSize = "logo_med_2x"
	ScreenshotBig    ImageSize = "screenshot_big_2x"
	ScreenshotHuge   ImageSize = "screenshot_huge_2x"
	Thumb            ImageSize = "thumb_2x"
	Micro            ImageSize = "micro_2x"
	HD               ImageSize = "720p"
	FullHD           ImageSize = "1080p"
)

var imageSizes = map[ImageSize]struct{}{
	CoverSmall: {}, ScreenshotMedium: {}, CoverBig: {}, LogoMedium: {}, ScreenshotBig: {},
	ScreenshotHuge: {}, Thumb: {}, Micro: {}, HD: {}, FullHD: {},
}

// Valid reports whether s is a size the CDN serves
func (s ImageSize) Valid() bool {
	_, ok := imageSizes[s]
	return ok
}
