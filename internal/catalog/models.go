// Package catalog defines the IGDB entities the app reads and the field
// projections requested for each of them.
package catalog

// ImageResource references an image on the IGDB CDN (covers, logos)
type ImageResource struct {
	ID      int    `json:"id"`
	ImageID string `json:"image_id"`
}

// Named is implemented by entities shown as an icon with a name
type Named interface {
	EntityID() int
	DisplayName() string
	LogoImage() *ImageResource
}

// Company is a developer or publisher
type Company struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	Logo      *ImageResource `json:"logo,omitempty"`
	Developed []int          `json:"developed,omitempty"`
	Published []int          `json:"published,omitempty"`
}

func (c Company) EntityID() int             { return c.ID }
func (c Company) DisplayName() string       { return c.Name }
func (c Company) LogoImage() *ImageResource { return c.Logo }

// GameEngine is an engine and the companies using it
type GameEngine struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Logo        *ImageResource `json:"logo,omitempty"`
	CompanyIDs  []int          `json:"companies,omitempty"`
}

func (e GameEngine) EntityID() int             { return e.ID }
func (e GameEngine) DisplayName() string       { return e.Name }
func (e GameEngine) LogoImage() *ImageResource { return e.Logo }

// Game is a catalog title with the nested records the detail view shows
type Game struct {
	ID           int            `json:"id"`
	Name         string         `json:"name"`
	Cover        *ImageResource `json:"cover,omitempty"`
	Genres       []Genre        `json:"genres,omitempty"`
	Platforms    []Platform     `json:"platforms,omitempty"`
	ReleaseDates []ReleaseDate  `json:"release_dates,omitempty"`
	Summary      string         `json:"summary,omitempty"`
	Videos       []Video        `json:"videos,omitempty"`
	SimilarGames []int          `json:"similar_games,omitempty"`
	Rating       *float64       `json:"rating,omitempty"`
	RatingCount  *int           `json:"rating_count,omitempty"`
	AgeRatings   []AgeRating    `json:"age_ratings,omitempty"`
}

// Genre is also used for rating organizations, which share its shape
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Platform struct {
	ID           int            `json:"id"`
	Name         string         `json:"name"`
	PlatformLogo *ImageResource `json:"platform_logo,omitempty"`
}

type ReleaseDate struct {
	ID            int           `json:"id"`
	Human         string        `json:"human"`
	Date          *int64        `json:"date,omitempty"` // unix seconds
	ReleaseRegion ReleaseRegion `json:"release_region"`
}

type ReleaseRegion struct {
	ID     int    `json:"id"`
	Region Region `json:"region"`
}

// Region is the market a release date applies to
type Region string

const (
	RegionAsia         Region = "asia"
	RegionAustralia    Region = "australia"
	RegionBrazil       Region = "brazil"
	RegionChina        Region = "china"
	RegionEurope       Region = "europe"
	RegionJapan        Region = "japan"
	RegionNorthAmerica Region = "north_america"
	RegionWorldwide    Region = "worldwide"
)

type Video struct {
	ID      int    `json:"id"`
	VideoID string `json:"video_id"` // YouTube id
}

type AgeRating struct {
	ID             int            `json:"id"`
	RatingCategory RatingCategory `json:"rating_category"`
}

type RatingCategory struct {
	ID           int    `json:"id"`
	Rating       string `json:"rating"`
	Organization Genre  `json:"organization"`
}
