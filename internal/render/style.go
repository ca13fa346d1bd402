package render

import (
	"tripviz/internal/model"
	"tripviz/internal/view"
	"tripviz/internal/viz"
)

type RouteStyle struct {
	Color     string  `json:"color"`
	Weight    int     `json:"weight"`
	Opacity   float64 `json:"opacity"`
	DashArray string  `json:"dash_array,omitempty"`
}

type StyledRoute struct {
	viz.Route
	Style RouteStyle `json:"style"`
}

type StyledDriver struct {
	viz.DriverPosition
	MarkerColor string `json:"marker_color"`
}

// StyledFrame is a Frame with drawing hints attached to routes and drivers.
type StyledFrame struct {
	*view.Frame
	Routes  []StyledRoute  `json:"routes"`
	Drivers []StyledDriver `json:"drivers"`
}

func Styled(f *view.Frame) StyledFrame {
	out := StyledFrame{
		Frame:   f,
		Routes:  make([]StyledRoute, 0, len(f.Routes)),
		Drivers: make([]StyledDriver, 0, len(f.Drivers)),
	}
	for _, r := range f.Routes {
		out.Routes = append(out.Routes, StyledRoute{Route: r, Style: RouteStyleFor(r.Status)})
	}
	for _, d := range f.Drivers {
		out.Drivers = append(out.Drivers, StyledDriver{DriverPosition: d, MarkerColor: MarkerColor(d.Status)})
	}
	return out
}

func RouteStyleFor(s model.Status) RouteStyle {
	switch s {
	case model.StatusActive:
		return RouteStyle{Color: "#28a745", Weight: 6, Opacity: 0.8}
	case model.StatusScheduled:
		return RouteStyle{Color: "#ffc107", Weight: 5, Opacity: 0.8, DashArray: "10, 5"}
	default:
		return RouteStyle{Color: "#6c757d", Weight: 5, Opacity: 0.8}
	}
}

func MarkerColor(s model.Status) string {
	switch s {
	case model.StatusActive:
		return "green"
	case model.StatusCompleted:
		return "gray"
	default:
		return "red"
	}
}
