package application

import "time"

// Clock abstracts time.Now supaya GeneratedAt gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock is the production implementation.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
