package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Fixture periods used by every measure file
var FixturePeriods = []string{"2021-01-01", "2021-02-01", "2021-03-01"}

// FixtureCodelist is the codelist written by WriteMeasureFixtures
const FixtureCodelist = "code,term\n" +
	"1001,Blood pressure recording\n" +
	"1002,Cholesterol level\n" +
	"1003,HbA1c level\n" +
	"1004,Medication review\n" +
	"1005,Smoking status\n" +
	"1006,Asthma review\n"

// WriteMeasureFixtures writes a small but complete input directory: the
// event code, practice, sex and imd measures, a codelist and a practice
// count file. It returns the codelist path.
func WriteMeasureFixtures(t *testing.T, dir string) string {
	t.Helper()

	var eventCode, practice, sex, imd strings.Builder
	eventCode.WriteString("event_code,event,population,value,date\n")
	practice.WriteString("practice,event,population,value,date\n")
	sex.WriteString("sex,event,population,value,date\n")
	imd.WriteString("imd,event,population,value,date\n")

	for p, period := range FixturePeriods {
		for c := 0; c < 6; c++ {
			events := (c + 1) * 40 * (p + 1)
			fmt.Fprintf(&eventCode, "%d,%d,%d,%g,%s\n", 1001+c, events, 10000, float64(events)/10000, period)
		}
		for pr := 1; pr <= 4; pr++ {
			events := pr * 10
			if pr == 4 {
				events = 0
			}
			fmt.Fprintf(&practice, "%d,%d,%d,%g,%s\n", pr, events, 500, float64(events)/500, period)
		}
		fmt.Fprintf(&sex, "F,%d,1000,%g,%s\n", 50+p, float64(50+p)/1000, period)
		fmt.Fprintf(&sex, "M,%d,900,%g,%s\n", 40+p, float64(40+p)/900, period)
		fmt.Fprintf(&sex, "missing,%d,10,%g,%s\n", 3, 0.3, period)
		for rank := 1; rank <= 10; rank++ {
			events := rank * 3
			fmt.Fprintf(&imd, "%d,%d,200,%g,%s\n", rank*3000, events, float64(events)/200, period)
		}
	}

	files := map[string]string{
		"measure_event_code_rate.csv": eventCode.String(),
		"measure_practice_rate.csv":   practice.String(),
		"measure_sex_rate.csv":        sex.String(),
		"measure_imd_rate.csv":        imd.String(),
		"codelist.csv":                FixtureCodelist,
		"input_practice_count.csv":    "practice\n1\n2\n3\n4\n5\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write fixture %s: %v", name, err)
		}
	}
	return filepath.Join(dir, "codelist.csv")
}
