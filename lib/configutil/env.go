package configutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EnvBinding maps an environment variable onto a config field.
type EnvBinding struct {
	Name  string
	Apply func(value string) error
}

// ApplyEnv overlays environment variables onto a config that has already been read from disk,
// `lookup` is usually os.LookupEnv.
func ApplyEnv(lookup func(string) (string, bool), bindings []EnvBinding) error {
	var errs []error
	for _, b := range bindings {
		value, ok := lookup(b.Name)
		if !ok {
			continue
		}
		err := b.Apply(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("environment variable '%s': %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}

func String(dst *string) func(string) error {
	return func(value string) error {
		*dst = value
		return nil
	}
}

func Int(dst *int) func(string) error {
	return func(value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func Bool(dst *bool) func(string) error {
	return func(value string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

// List splits a comma separated value, dropping blank items.
func List(dst *[]string) func(string) error {
	return func(value string) error {
		*dst = SplitList(value)
		return nil
	}
}

func SplitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

type MissingKeyError struct {
	Key string
}

func (e MissingKeyError) Error() string {
	return fmt.Sprintf("missing required config value '%s'", e.Key)
}

// Requirement names a config key and whether a value was provided for it.
type Requirement struct {
	Key     string
	Present bool
}

func Present(key, value string) Requirement {
	return Requirement{Key: key, Present: strings.TrimSpace(value) != ""}
}

func PresentList(key string, values []string) Requirement {
	return Requirement{Key: key, Present: len(values) > 0}
}

// Require returns a MissingKeyError for every requirement that is not present.
func Require(reqs ...Requirement) error {
	var errs []error
	for _, r := range reqs {
		if !r.Present {
			errs = append(errs, MissingKeyError{Key: r.Key})
		}
	}
	return errors.Join(errs...)
}

// OptionalBool is Bool for fields where unset and false have to be told apart.
func OptionalBool(dst **bool) func(string) error {
	return func(value string) error {
		var b bool
		err := Bool(&b)(value)
		if err != nil {
			return err
		}
		*dst = &b
		return nil
	}
}
