package account

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// ParseBool turns a boolean-like value from a config file, script or flag
// into a strict bool. Accepted spellings follow the usual playbook ones:
// yes/no, on/off, true/false, y/n, t/f and 1/0.
func ParseBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int:
		return intBool(int64(v), raw)
	case int64:
		return intBool(v, raw)
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case json.Number:
		return parseBoolString(v.String(), raw)
	case string:
		return parseBoolString(v, raw)
	}
	return false, errors.NewNotValid(nil, fmt.Sprintf("%v is not a valid boolean", raw))
}

func intBool(v int64, raw any) (bool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errors.NewNotValid(nil, fmt.Sprintf("%v is not a valid boolean", raw))
}

func parseBoolString(s string, raw any) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "on", "true", "t", "1":
		return true, nil
	case "no", "n", "off", "false", "f", "0":
		return false, nil
	}
	return false, errors.NewNotValid(nil, fmt.Sprintf("%q is not a valid boolean", raw))
}
