// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package registry

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Arguments is the validated argument mapping passed to a Handler. JSON
// numbers arrive as float64.
type Arguments map[string]interface{}

// Has reports whether the caller supplied name.
func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Float returns a numeric argument.
func (a Arguments) Float(name string) (float64, error) {
	switch v := a[name].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, errors.Wrapf(err, "argument %s", name)
		}
		return f, nil
	case nil:
		return 0, errors.Newf("argument %s is missing", name)
	default:
		return 0, errors.Newf("argument %s is %T, not a number", name, v)
	}
}

// Int returns an integer argument.
func (a Arguments) Int(name string) (int64, error) {
	f, err := a.Float(name)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, errors.Newf("argument %s is not an integer", name)
	}
	return int64(f), nil
}

// String returns a string argument.
func (a Arguments) String(name string) (string, error) {
	s, ok := a[name].(string)
	if !ok {
		return "", errors.Newf("argument %s is not a string", name)
	}
	return s, nil
}

// Bool returns a boolean argument.
func (a Arguments) Bool(name string) (bool, error) {
	b, ok := a[name].(bool)
	if !ok {
		return false, errors.Newf("argument %s is not a boolean", name)
	}
	return b, nil
}
