// Package flagx lets several config loaders share one command line: each
// loader picks out only the flags it owns before handing them to its own
// flag.FlagSet.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnvVar names the environment variable consulted by ConfigPath when
// no -c/-config flag is given.
const ConfigEnvVar = "PARTFINDER_CONFIG"

// FilterArgs keeps only the flags named in allowed (without leading dashes)
// and their values. Both "-name" and "--name" spellings match, and a value is
// taken either from "-name=value" or from the following argument when that
// argument does not itself look like a flag.
func FilterArgs(args []string, allowed ...string) []string {
	names := make(map[string]struct{}, len(allowed))
	for _, n := range allowed {
		names[strings.TrimLeft(n, "-")] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		name, hasValue, ok := flagName(args[i])
		if !ok {
			continue
		}
		if _, keep := names[name]; !keep {
			continue
		}
		filtered = append(filtered, args[i])
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// flagName splits "-name", "--name" or "--name=value" into its bare name.
func flagName(arg string) (name string, inlineValue bool, ok bool) {
	if !strings.HasPrefix(arg, "-") {
		return "", false, false
	}
	trimmed := strings.TrimLeft(arg, "-")
	if trimmed == "" {
		return "", false, false
	}
	if before, _, found := strings.Cut(trimmed, "="); found {
		return before, true, true
	}
	return trimmed, false, true
}

// ConfigPath returns the JSON config file named by -c/-config in args, or the
// value of ConfigEnvVar, or "" when neither is set.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(args, "c", "config"))

	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	return path
}
