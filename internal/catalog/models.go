package catalog

import "cdn-sim/internal/playback"

// Video is one catalog entry with its two renditions.
type Video struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	HQSrc       string `yaml:"hq_src" json:"hq_src"`
	LQSrc       string `yaml:"lq_src" json:"lq_src,omitempty"`
	Poster      string `yaml:"poster" json:"poster,omitempty"`
}

// Source returns the rendition pair handed to the playback controllers.
func (v Video) Source() playback.MediaSource {
	return playback.MediaSource{HighQualityURL: v.HQSrc, LowQualityURL: v.LQSrc}
}

// Default returns the built-in sample catalog.
func Default() []Video {
	const bucket = "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/"
	const poster = "https://placehold.co/600x338.png"
	return []Video{
		{
			ID:          "big-buck-bunny",
			Title:       "Big Buck Bunny",
			Description: "A classic open-source animated short film.",
			HQSrc:       bucket + "BigBuckBunny.mp4",
			LQSrc:       bucket + "ForBiggerBlazes.mp4",
			Poster:      poster,
		},
		{
			ID:          "sintel",
			Title:       "Sintel",
			Description: "Another beautiful open-source animated film by Blender Foundation.",
			HQSrc:       bucket + "Sintel.mp4",
			LQSrc:       bucket + "ForBiggerEscapes.mp4",
			Poster:      poster,
		},
		{
			ID:          "elephants-dream",
			Title:       "Elephants Dream",
			Description: "The first open movie, created with Blender.",
			HQSrc:       bucket + "ElephantsDream.mp4",
			LQSrc:       bucket + "ForBiggerFun.mp4",
			Poster:      poster,
		},
	}
}
