// Package config loads snapfeed.yaml for the snapfeed commands.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${VAR} and ${VAR:-default}. A leading "$" escapes the
// reference: "$${VAR}" is left as the literal "${VAR}".
var envRef = regexp.MustCompile(`\$?\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in a config file so the
// account key can stay out of it:
//
//	account:
//	  username: ${AIO_USERNAME}
//	  key: ${AIO_KEY}
//
// A set, non-empty variable wins; otherwise the default after ":-" is used,
// otherwise the reference expands to nothing. An empty key is caught when
// the run command checks transport credentials.
func ExpandEnv(data []byte) []byte {
	return expand(data, os.LookupEnv)
}

func expand(data []byte, lookup func(string) (string, bool)) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		if len(ref) > 1 && ref[0] == '$' && ref[1] == '$' {
			return ref[1:]
		}
		m := envRef.FindSubmatch(ref)
		if v, ok := lookup(string(m[1])); ok && v != "" {
			return []byte(v)
		}
		return m[2]
	})
}
