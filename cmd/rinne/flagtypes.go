package main

import "strings"

// stringList collects repeated occurrences of a flag, implementing
// flag.Value so it can be passed repeatedly on one command line.
type stringList struct {
	values []string
}

func (s *stringList) String() string { return strings.Join(s.values, ",") }

func (s *stringList) Set(v string) error {
	s.values = append(s.values, v)
	return nil
}
