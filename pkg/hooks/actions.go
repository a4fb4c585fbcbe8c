package hooks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cuemby/addonkit/pkg/events"
	"github.com/cuemby/addonkit/pkg/log"
	"github.com/cuemby/addonkit/pkg/services"
)

// ErrUnknownAction is returned when a declared hook names an action that is
// not in the action table
var ErrUnknownAction = errors.New("unknown hook action")

// Declaration is a hook described by configuration instead of code
type Declaration struct {
	Name    string
	Channel string
	Action  string
	Once    bool
	When    string
	Args    map[string]any
}

// Action builds a handler for a declaration
type Action func(host services.Host, d Declaration) (events.Handler, error)

var actions = map[string]Action{
	"log":        logAction,
	"set_option": setOptionAction,
	"merge":      mergeAction,
	"increment":  incrementAction,
}

// Actions returns the names of the built-in actions, sorted
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declare builds the handler for d from the action table and queues it
func (s *Service) Declare(d Declaration) error {
	action, ok := actions[d.Action]
	if !ok {
		return fmt.Errorf("%w: %q (hook %s, known: %s)", ErrUnknownAction, d.Action, d.Name, strings.Join(Actions(), ", "))
	}
	handler, err := action(s.host, d)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidHook, d.Name, err)
	}
	return s.Queue(Hook{
		Name:    d.Name,
		Channel: d.Channel,
		Once:    d.Once,
		When:    d.When,
		Handler: handler,
	})
}

// logAction logs the payload and passes it through
func logAction(host services.Host, d Declaration) (events.Handler, error) {
	logger := log.WithChannel(host.Logger(), d.Channel).With().Str("hook", d.Name).Logger()
	message, _ := d.Args["message"].(string)
	if message == "" {
		message = "Hook fired"
	}
	return func(_ context.Context, payload any, _ ...any) (any, error) {
		logger.Info().Interface("payload", payload).Msg(message)
		return payload, nil
	}, nil
}

// setOptionAction stores the payload under args.key and passes it through
func setOptionAction(host services.Host, d Declaration) (events.Handler, error) {
	key, _ := d.Args["key"].(string)
	if key == "" {
		return nil, errors.New("set_option requires args.key")
	}
	if host.Options() == nil {
		return nil, errors.New("set_option requires an options store")
	}
	return func(_ context.Context, payload any, _ ...any) (any, error) {
		if !host.Options().Set(key, payload) {
			return payload, fmt.Errorf("option %s rejected the payload", key)
		}
		return payload, nil
	}, nil
}

// mergeAction merges args into a map payload. A nil payload starts empty.
func mergeAction(_ services.Host, d Declaration) (events.Handler, error) {
	return func(_ context.Context, payload any, _ ...any) (any, error) {
		var base map[string]any
		switch p := payload.(type) {
		case nil:
		case map[string]any:
			base = p
		default:
			return payload, fmt.Errorf("merge needs a map payload, got %T", payload)
		}
		out := make(map[string]any, len(base)+len(d.Args))
		for k, v := range base {
			out[k] = v
		}
		for k, v := range d.Args {
			out[k] = v
		}
		return out, nil
	}, nil
}

// incrementAction adds args.by (default 1) to a numeric payload, keeping the
// payload's type. A nil payload counts as 0. Integer payloads need an
// integral args.by and a result that fits the type; otherwise the handler
// fails and the payload is left unchanged.
func incrementAction(_ services.Host, d Declaration) (events.Handler, error) {
	by := 1.0
	if raw, ok := d.Args["by"]; ok {
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("increment args.by must be numeric, got %T", raw)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("increment args.by must be finite, got %v", f)
		}
		by = f
	}
	return func(_ context.Context, payload any, _ ...any) (any, error) {
		switch p := payload.(type) {
		case nil:
			if by == math.Trunc(by) && math.Abs(by) < 1<<53 {
				return int(by), nil
			}
			return by, nil
		case int:
			n, err := addInt(int64(p), by, math.MinInt, math.MaxInt)
			if err != nil {
				return payload, err
			}
			return int(n), nil
		case int32:
			n, err := addInt(int64(p), by, math.MinInt32, math.MaxInt32)
			if err != nil {
				return payload, err
			}
			return int32(n), nil
		case int64:
			n, err := addInt(p, by, math.MinInt64, math.MaxInt64)
			if err != nil {
				return payload, err
			}
			return n, nil
		case uint:
			n, err := addUint(uint64(p), by, math.MaxUint)
			if err != nil {
				return payload, err
			}
			return uint(n), nil
		case uint64:
			n, err := addUint(p, by, math.MaxUint64)
			if err != nil {
				return payload, err
			}
			return n, nil
		case float32:
			return p + float32(by), nil
		case float64:
			return p + by, nil
		}
		return payload, fmt.Errorf("increment needs a numeric payload, got %T", payload)
	}, nil
}

// integralDelta converts by to an int64 step when it is a whole number in range
func integralDelta(by float64) (int64, error) {
	if by != math.Trunc(by) {
		return 0, fmt.Errorf("increment by %v on an integer payload", by)
	}
	if by >= math.MaxInt64 || by < math.MinInt64 {
		return 0, fmt.Errorf("increment by %v overflows", by)
	}
	return int64(by), nil
}

func addInt(p int64, by float64, minimum, maximum int64) (int64, error) {
	delta, err := integralDelta(by)
	if err != nil {
		return 0, err
	}
	if (delta > 0 && p > maximum-delta) || (delta < 0 && p < minimum-delta) {
		return 0, fmt.Errorf("increment %d by %d overflows", p, delta)
	}
	return p + delta, nil
}

func addUint(p uint64, by float64, maximum uint64) (uint64, error) {
	delta, err := integralDelta(by)
	if err != nil {
		return 0, err
	}
	if delta < 0 {
		down := uint64(-delta)
		if down > p {
			return 0, fmt.Errorf("increment %d by %d goes below zero", p, delta)
		}
		return p - down, nil
	}
	if uint64(delta) > maximum-p {
		return 0, fmt.Errorf("increment %d by %d overflows", p, delta)
	}
	return p + uint64(delta), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
