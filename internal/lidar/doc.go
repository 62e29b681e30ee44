// Package lidar holds the leaf types shared by every stage of the scan
// preparation pipeline: point clouds, axis ranges, rigid transforms and the
// error taxonomy.
//
// Stage packages build on these types:
//
//	calib   calibration and pose parsing
//	filter  axis-aligned range filtering and label sub-selection
//	augment randomized geometric augmentation
//	quant   Cartesian, spherical, cylindrical and polar quantization
//	stack   multi-frame temporal alignment
//	pool    floor + scatter-max projection into fixed grids
//	sample  fixed-length training samples assembled from the above
//
// Dependency rule: this package imports no other package under
// internal/lidar.
package lidar
