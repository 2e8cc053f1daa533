package envconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	// Set via GBNF_DEBUG in the environment. No package of this module
	// reads it: whether logutil.Trace output appears depends only on
	// whether the default slog logger is enabled at logutil.LevelTrace.
	Debug bool
	// Set via GBNF_MAX_STACKS in the environment. A session aborts with
	// a stack-explosion error once its stack set would grow past this
	// size, rather than growing unboundedly.
	MaxStacks int
	// Set via GBNF_MAX_TRIGGER_BUFFER in the environment. Caps the size
	// of the buffer a dormant trigger accumulates before it is
	// considered stuck and the session reports a parse-progress error.
	MaxTriggerBuffer int
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"GBNF_DEBUG":              {"GBNF_DEBUG", Debug, "Show additional trace information (e.g. GBNF_DEBUG=1)"},
		"GBNF_MAX_STACKS":         {"GBNF_MAX_STACKS", MaxStacks, "Maximum number of parse stacks a session may hold at once (default 4096)"},
		"GBNF_MAX_TRIGGER_BUFFER": {"GBNF_MAX_TRIGGER_BUFFER", MaxTriggerBuffer, "Maximum bytes a dormant trigger buffer may accumulate (default 65536)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// clean trims quotes and spaces from the value of an environment variable.
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	MaxStacks = 4096
	MaxTriggerBuffer = 65536

	LoadConfig()
}

func LoadConfig() {
	if debug := clean("GBNF_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	if ms := clean("GBNF_MAX_STACKS"); ms != "" {
		v, err := strconv.Atoi(ms)
		if err == nil && v > 0 {
			MaxStacks = v
		}
	}

	if mtb := clean("GBNF_MAX_TRIGGER_BUFFER"); mtb != "" {
		v, err := strconv.Atoi(mtb)
		if err == nil && v > 0 {
			MaxTriggerBuffer = v
		}
	}
}
