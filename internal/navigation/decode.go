package navigation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyConsumed is returned when a destination mounts twice for one
	// transition.
	ErrAlreadyConsumed = errors.New("navigation request already consumed")

	// ErrNoRequest is returned by Mount before any navigation happened.
	ErrNoRequest = errors.New("no navigation request")

	// ErrUnknownScreen means the target has no declared schema.
	ErrUnknownScreen = errors.New("unknown screen")

	// ErrWrongScreen means a request was decoded as another screen's route.
	ErrWrongScreen = errors.New("request targets a different screen")
)

// Request is one transition: created by the navigating screen, consumed once
// by the destination.
type Request struct {
	Target Screen
	Params Params
}

// NewRequest builds the request for a typed route.
func NewRequest(r Route) Request {
	return Request{Target: r.Screen(), Params: r.Params()}
}

// MissingParamsError lists required parameters the navigating screen did not
// supply.
type MissingParamsError struct {
	Screen  Screen
	Missing []string
}

func (e *MissingParamsError) Error() string {
	return fmt.Sprintf("screen %s: missing required parameters: %s", e.Screen, strings.Join(e.Missing, ", "))
}

// UserMessage is shown in place of the screen.
func (e *MissingParamsError) UserMessage() string {
	return fmt.Sprintf("%s could not be opened: missing %s.", e.Screen.Title(), strings.Join(e.Missing, ", "))
}

// ParamTypeError reports a parameter whose value has the wrong type.
type ParamTypeError struct {
	Screen Screen
	Param  string
	Want   Kind
	Got    any
}

func (e *ParamTypeError) Error() string {
	return fmt.Sprintf("screen %s: parameter %s must be %s, got %T", e.Screen, e.Param, e.Want, e.Got)
}

// UserMessage is shown in place of the screen.
func (e *ParamTypeError) UserMessage() string {
	return fmt.Sprintf("%s could not be opened: invalid %s.", e.Screen.Title(), e.Param)
}

// Validate checks params against the schema of screen. Missing parameters
// are reported before mistyped ones.
func Validate(screen Screen, params Params) error {
	schema, ok := schemas[screen]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScreen, screen)
	}

	var missing []string
	for _, f := range schema.Required {
		if !present(params[f.Name]) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return &MissingParamsError{Screen: screen, Missing: missing}
	}

	for _, group := range [][]Field{schema.Required, schema.Optional} {
		for _, f := range group {
			v, ok := params[f.Name]
			if !ok || v == nil {
				continue
			}
			if !matches(f.Kind, v) {
				return &ParamTypeError{Screen: screen, Param: f.Name, Want: f.Kind, Got: v}
			}
		}
	}
	return nil
}

type loader[T any] interface {
	*T
	Route
	load(Params)
}

// Decode validates req and fills the route struct for T:
//
//	detail, err := navigation.Decode[navigation.TaskDetail](req)
func Decode[T any, PT loader[T]](req Request) (T, error) {
	var out T
	want := PT(&out).Screen()
	if req.Target != want {
		return out, fmt.Errorf("%w: have %s, decoding %s", ErrWrongScreen, req.Target, want)
	}
	if err := Validate(req.Target, req.Params); err != nil {
		return out, err
	}
	PT(&out).load(req.Params)
	return out, nil
}

// MountState is what a destination renders after mounting: either its
// decoded parameters are usable or it shows Message instead of crashing.
type MountState struct {
	Screen  Screen
	Err     error
	Message string
}

// Failed reports whether the destination must render its error state.
func (m MountState) Failed() bool { return m.Err != nil }

func failedMount(screen Screen, err error) MountState {
	msg := "This screen could not be opened."
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		msg = um.UserMessage()
	}
	return MountState{Screen: screen, Err: err, Message: msg}
}

// MountAs consumes the navigator's pending request and decodes it as T. It
// never panics: every failure comes back as a failed MountState.
func MountAs[T any, PT loader[T]](n *Navigator) (T, MountState) {
	var zero T
	screen := PT(&zero).Screen()

	req, err := n.Mount()
	if err != nil {
		return zero, failedMount(screen, err)
	}
	route, err := Decode[T, PT](req)
	if err != nil {
		n.logger.Warn("screen mount failed",
			"screen", string(req.Target),
			"params", req.Params,
			"error", err,
		)
		return zero, failedMount(req.Target, err)
	}
	return route, MountState{Screen: req.Target}
}
