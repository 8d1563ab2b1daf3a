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

package protocol

import (
	"github.com/cockroachdb/errors"
)

// ValidateRequest validates a JSON-RPC request
func ValidateRequest(req *Request) error {
	if req.JSONRPC != JSONRPCVersion {
		return errors.Newf("invalid jsonrpc version: %s (expected %s)", req.JSONRPC, JSONRPCVersion)
	}

	if req.Method == "" {
		return errors.New("method is required")
	}

	return nil
}

// ValidateResponse validates a JSON-RPC response
func ValidateResponse(resp *Response) error {
	if resp.JSONRPC != JSONRPCVersion {
		return errors.Newf("invalid jsonrpc version: %s (expected %s)", resp.JSONRPC, JSONRPCVersion)
	}

	if resp.ID == nil {
		return errors.New("response ID is required")
	}

	// Exactly one of Result or Error must be present
	hasResult := len(resp.Result) > 0
	hasError := resp.Error != nil

	if hasResult == hasError {
		return errors.New("response must have exactly one of result or error")
	}

	return nil
}

// NegotiateVersion picks the version both sides agree on. An empty request
// selects the newest supported version.
func NegotiateVersion(requested string, supported []string) (string, error) {
	if len(supported) == 0 {
		supported = SupportedVersions
	}
	if requested == "" {
		return supported[0], nil
	}
	for _, v := range supported {
		if v == requested {
			return v, nil
		}
	}
	return "", UnsupportedVersionError(requested, supported)
}
