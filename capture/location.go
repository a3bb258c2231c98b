// ABOUTME: Location capture for the interaction location field
// ABOUTME: A static position from configuration stands in for a live geolocation source
package capture

import (
	"context"
	"fmt"

	"github.com/harperreed/touchpoint/config"
)

type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Label     string
}

// String renders a value suitable for the location field.
func (p Position) String() string {
	coords := fmt.Sprintf("%.5f, %.5f", p.Latitude, p.Longitude)
	if p.Label != "" {
		return fmt.Sprintf("%s (%s)", p.Label, coords)
	}
	return coords
}

type Locator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// StaticLocator reports the configured position, or ErrUnsupported when
// none is configured.
type StaticLocator struct {
	pos *Position
}

func NewStaticLocator(loc *config.Location) StaticLocator {
	if loc == nil {
		return StaticLocator{}
	}
	return StaticLocator{pos: &Position{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Accuracy:  loc.Accuracy,
		Label:     loc.Label,
	}}
}

func (s StaticLocator) CurrentPosition(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	if s.pos == nil {
		return Position{}, ErrUnsupported
	}
	return *s.pos, nil
}

// FillLocation resolves the current position for the location field. On
// failure it returns an empty value and a message explaining why.
func FillLocation(ctx context.Context, l Locator) (value, message string) {
	if l == nil {
		return "", Explain(ErrUnsupported)
	}
	pos, err := l.CurrentPosition(ctx)
	if err != nil {
		return "", Explain(err)
	}
	return pos.String(), ""
}
