// Package monitor renders diagnostic plots of prepared samples: PNG/SVG
// heat maps of pooled grids and interactive HTML scatters of aligned
// frame stacks.
package monitor
