package actions

import "os"

// OSEnv reads environment variables via os.LookupEnv. No third-party
// library in the example corpus offers a cross-platform alternative worth
// displacing the standard library for this one lookup.
type OSEnv struct{}

func (OSEnv) Get(key string) (string, bool) { return os.LookupEnv(key) }
