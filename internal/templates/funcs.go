package templates

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

// allow sprig functions except dates, random, crypto, os, network and filepath.
var allowedFuncNames = map[string]struct{}{
	// Strings
	"abbrev":     {},
	"trunc":      {},
	"trim":       {},
	"upper":      {},
	"lower":      {},
	"title":      {},
	"substr":     {},
	"repeat":     {},
	"trimAll":    {},
	"trimSuffix": {},
	"trimPrefix": {},
	"nospace":    {},
	"snakecase":  {},
	"camelcase":  {},
	"kebabcase":  {},
	"wrap":       {},
	"contains":   {},
	"hasPrefix":  {},
	"hasSuffix":  {},
	"quote":      {},
	"squote":     {},
	"cat":        {},
	"indent":     {},
	"nindent":    {},
	"replace":    {},
	"sha1sum":    {},
	"sha256sum":  {},
	"toString":   {},

	// Conversions
	"atoi":      {},
	"int64":     {},
	"int":       {},
	"float64":   {},
	"seq":       {},
	"toStrings": {},

	// Split
	"split":     {},
	"splitList": {},

	// Arithmetic
	"add1": {},
	"add":  {},
	"sub":  {},
	"div":  {},
	"mod":  {},
	"mul":  {},
	"max":  {},
	"min":  {},

	// Join
	"join":      {},
	"sortAlpha": {},

	// Defaults
	"default":      {},
	"empty":        {},
	"coalesce":     {},
	"compact":      {},
	"toJson":       {},
	"toPrettyJson": {},
	"ternary":      {},

	// Reflection
	"kindOf": {},
	"kindIs": {},

	// Encoding
	"b64enc": {},
	"b64dec": {},

	// Data Structures
	"list":   {},
	"dict":   {},
	"get":    {},
	"hasKey": {},
	"keys":   {},
	"pick":   {},
	"omit":   {},
	"merge":  {},
	"values": {},
	"append": {},
	"first":  {},
	"last":   {},
	"uniq":   {},
	"has":    {},
	"dig":    {},

	// Flow Control
	"fail": {},

	// Regex
	"regexMatch":      {},
	"regexReplaceAll": {},
}

func sprigFuncs() template.FuncMap {
	allowed := template.FuncMap{}
	for key, value := range sprig.TxtFuncMap() {
		if _, ok := allowedFuncNames[key]; ok {
			allowed[key] = value
		}
	}
	allowed["toYAML"] = toYAML
	allowed["required"] = required
	return allowed
}

func toYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

// required fails rendering when val is nil or an empty string.
func required(msg string, val any) (any, error) {
	switch v := val.(type) {
	case nil:
		return nil, fmt.Errorf("%s", msg)
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s", msg)
		}
	}
	return val, nil
}
