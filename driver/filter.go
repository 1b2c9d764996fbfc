package driver

import (
	"bytes"
	"regexp"
)

// lineFilter drops volatile lines from captured configuration so that
// two captures of an unchanged config compare equal.
type lineFilter struct {
	re1 *regexp.Regexp
	re2 *regexp.Regexp
	re3 *regexp.Regexp
	re4 *regexp.Regexp
}

/*
Thu Feb 11 15:45:43.545 BRST
Building configuration...
!! Last configuration change at Tue Jan 26 16:40:46 2016 by user
asr9010 uptime is 9 years, 2 weeks, 5 days, 20 hours, 3 minutes
*/
func newLineFilter() *lineFilter {
	return &lineFilter{
		re1: regexp.MustCompile(`^\w{3}\s\w{3}\s\d{1,2}\s`),
		re2: regexp.MustCompile(`^Building`),
		re3: regexp.MustCompile(`^!! Last`),
		re4: regexp.MustCompile(`^\w+ uptime is `),
	}
}

func (f *lineFilter) drop(line []byte) bool {
	return f.re1.Match(line) || f.re2.Match(line) || f.re3.Match(line) || f.re4.Match(line)
}

// apply filters buf line by line, keeping line order and terminators.
func (f *lineFilter) apply(logger hasPrintf, debug bool, buf []byte) []byte {
	var out []byte
	for _, line := range bytes.SplitAfter(buf, []byte("\n")) {
		if f.drop(bytes.TrimRight(line, "\r\n")) {
			if debug {
				logger.Printf("lineFilter: drop: [%s]", bytes.TrimRight(line, "\r\n"))
			}
			continue
		}
		out = append(out, line...)
	}
	return out
}
