package services

import (
	"math"

	"reqgraph/domain/config"
	"reqgraph/domain/core/valueobjects"
)

// LayoutEngine computes default canvas positions for new nodes. Positions
// are cosmetic; users may drag nodes afterwards, so placement is not
// collision-aware.
type LayoutEngine struct {
	nodeWidth  float64
	nodeHeight float64
	gap        float64
}

// NewLayoutEngine creates a layout engine from the domain configuration
func NewLayoutEngine(cfg *config.DomainConfig) *LayoutEngine {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &LayoutEngine{
		nodeWidth:  cfg.NodeWidth,
		nodeHeight: cfg.NodeHeight,
		gap:        cfg.NodeGap,
	}
}

// Radius is the distance between an anchor and its radially placed children
func (l *LayoutEngine) Radius() float64 {
	return l.nodeWidth + l.gap
}

// RadialPosition places the Nth child of anchor on a circle of fixed radius
// at angle (N*90) mod 360 degrees. From the fifth child on the angles repeat.
func (l *LayoutEngine) RadialPosition(anchor valueobjects.Position, existingChildCount int) valueobjects.Position {
	if existingChildCount < 0 {
		existingChildCount = 0
	}
	degrees := float64((existingChildCount * 90) % 360)
	radians := degrees * math.Pi / 180
	r := l.Radius()

	return valueobjects.Position{
		X: roundCoord(anchor.X + r*math.Cos(radians)),
		Y: roundCoord(anchor.Y + r*math.Sin(radians)),
	}
}

// DirectionalPosition places a node next to origin along the compass
// direction the user picked. The offset clears one node footprint plus gap.
func (l *LayoutEngine) DirectionalPosition(origin valueobjects.Position, direction valueobjects.Handle) valueobjects.Position {
	dx := l.nodeWidth + l.gap
	dy := l.nodeHeight + l.gap

	switch direction {
	case valueobjects.HandleTop:
		return origin.Offset(0, -dy)
	case valueobjects.HandleBottom:
		return origin.Offset(0, dy)
	case valueobjects.HandleLeft:
		return origin.Offset(-dx, 0)
	case valueobjects.HandleRight:
		return origin.Offset(dx, 0)
	}
	return origin
}

// roundCoord trims floating noise such as cos(90deg) = 6e-17
func roundCoord(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
}
