// Package performance benchmarks the measure transforms and the transform
// endpoints under concurrent load.
package performance
