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
package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	original := Version
	t.Cleanup(func() { Version = original })

	Version = "v2.3.4"
	assert.Equal(t, "v2.3.4", Get())
	assert.Equal(t, "toolbridge/v2.3.4", UserAgent("toolbridge"))

	Version = ""
	assert.Equal(t, "dev", Get())
}
