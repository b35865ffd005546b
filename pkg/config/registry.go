package config

// Persistent state keys (Registry)
const (
	KeyBufferDistance = "buffer_distance"
	KeyLastLineYear   = "last_line_year"
	KeyLastPointYear  = "last_point_year"
	KeyBasemap        = "basemap"
	KeyPaletteIndex   = "palette_index"
	KeyShowBaseLayer  = "show_base_layer"
)
