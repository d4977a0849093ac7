package geo

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"gopkg.in/yaml.v3"
)

// LayerMode identifies one of the switchable map backgrounds.
type LayerMode string

const (
	Street    LayerMode = "street"
	Satellite LayerMode = "satellite"
)

// MaxZoom is the deepest zoom either background serves.
const MaxZoom = 18

// ParseLayerMode validates a mode coming from a request or a config file.
func ParseLayerMode(s string) (LayerMode, error) {
	switch LayerMode(strings.ToLower(strings.TrimSpace(s))) {
	case Street:
		return Street, nil
	case Satellite:
		return Satellite, nil
	default:
		return "", fmt.Errorf("unknown tile layer %q", s)
	}
}

// TileLayer describes a raster tile source the page attaches to the map.
type TileLayer struct {
	Mode        LayerMode `yaml:"mode" json:"mode"`
	Name        string    `yaml:"name" json:"name"`
	URLTemplate string    `yaml:"url" json:"url"`
	Attribution string    `yaml:"attribution" json:"attribution"`
	Subdomains  []string  `yaml:"subdomains,omitempty" json:"subdomains,omitempty"`
}

// TileURL expands the {s}/{z}/{x}/{y} template for the tile covering p.
func (l TileLayer) TileURL(p orb.Point, zoom int) string {
	if zoom < 0 {
		zoom = 0
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	t := maptile.At(p, maptile.Zoom(zoom))

	sub := ""
	if len(l.Subdomains) > 0 {
		sub = l.Subdomains[int(t.X+t.Y)%len(l.Subdomains)]
	}

	return strings.NewReplacer(
		"{s}", sub,
		"{z}", strconv.Itoa(int(t.Z)),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
	).Replace(l.URLTemplate)
}

// Catalog maps each mode to the layer rendered for it.
type Catalog map[LayerMode]TileLayer

// DefaultCatalog returns the OpenStreetMap street layer and the Esri World
// Imagery satellite layer.
func DefaultCatalog() Catalog {
	return Catalog{
		Street: {
			Mode:        Street,
			Name:        "OpenStreetMap",
			URLTemplate: "https://{s}.tile.openstreetmap.jp/{z}/{x}/{y}.png",
			Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
			Subdomains:  []string{"a", "b", "c"},
		},
		Satellite: {
			Mode:        Satellite,
			Name:        "Esri World Imagery",
			URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Attribution: "Tiles &copy; Esri &mdash; Source: Esri, i-cubed, USDA, USGS, AEX, GeoEye, Getmapping, Aerogrid, IGN, IGP, UPR-EGP, and the GIS User Community",
		},
	}
}

// Layer returns the layer for mode, falling back to the default catalogue.
func (c Catalog) Layer(mode LayerMode) TileLayer {
	if l, ok := c[mode]; ok {
		return l
	}
	return DefaultCatalog()[mode]
}

// LoadCatalog reads a YAML list of layers and overlays it on the defaults.
// An empty path returns the defaults.
//
//	- mode: street
//	  name: Carto Voyager
//	  url: https://{s}.basemaps.cartocdn.com/rastertiles/voyager/{z}/{x}/{y}.png
//	  subdomains: [a, b, c, d]
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tile layers: %w", err)
	}

	var layers []TileLayer
	if err := yaml.Unmarshal(data, &layers); err != nil {
		return nil, fmt.Errorf("parse tile layers: %w", err)
	}

	for _, l := range layers {
		mode, err := ParseLayerMode(string(l.Mode))
		if err != nil {
			return nil, err
		}
		if l.URLTemplate == "" {
			return nil, fmt.Errorf("tile layer %q has no url", mode)
		}
		l.Mode = mode
		cat[mode] = l
	}

	return cat, nil
}
