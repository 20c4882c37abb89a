// Package files discovers the cohort extraction outputs a pipeline run
// consumes: measure_<id>.csv tables and the input_practice_count*.csv files
// listing the practices of the study population.
//
//	discovery := files.NewDiscovery(paths.BaseDir)
//	measureFiles, err := discovery.FindMeasureFiles(paths.InputDir)
//	counts, err := discovery.FindPracticeCountFiles(paths.InputDir)
//	practices, err := files.UniquePractices(counts)
package files
