package osc

import (
	"fmt"
	"strconv"
)

// Int reads argument i as an integer. Floats are truncated and strings
// parsed, since control surfaces disagree on what they send.
func Int(args []any, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrBadArgs, i)
	}
	switch v := args[i].(type) {
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float32:
		return int(v), nil
	case float64:
		return int(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: argument %d: %w", ErrBadArgs, i, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: argument %d has type %T", ErrBadArgs, i, args[i])
}

// Bool reads argument i as a flag, defaulting to def when absent.
func Bool(args []any, i int, def bool) (bool, error) {
	if i >= len(args) {
		return def, nil
	}
	if b, ok := args[i].(bool); ok {
		return b, nil
	}
	n, err := Int(args, i)
	return n != 0, err
}

// Ident reads argument i as a source identifier: strings as given, numbers
// formatted as an index.
func Ident(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrBadArgs, i)
	}
	if s, ok := args[i].(string); ok {
		return s, nil
	}
	n, err := Int(args, i)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(n), nil
}
