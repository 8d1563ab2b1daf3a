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
package transport

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// defaultPostTimeout bounds a single POST from the client transports.
const defaultPostTimeout = 10 * time.Second

// readJSONBody enforces the JSON content type and the body size limit.
// It writes the HTTP error itself and returns ok=false on failure.
func readJSONBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger) ([]byte, bool) {
	defer r.Body.Close()

	// Accept "application/json" with optional params like charset.
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ := mime.ParseMediaType(ct)
		if mediaType != "application/json" {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return nil, false
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		logger.Error("failed to read request body", zap.Error(err))
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if len(body) > maxBodySize {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	if len(body) == 0 {
		http.Error(w, "Empty request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// checkHTTPStatus maps a response status onto a transport error.
func checkHTTPStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrSessionExpired
	case http.StatusMethodNotAllowed:
		return errors.New("method not allowed (405): server doesn't support this operation")
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Newf("HTTP error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// sendDelete asks the server to end a session. Servers that refuse with
// 405 are treated as success.
func sendDelete(ctx context.Context, client *http.Client, endpoint string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "create DELETE request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "DELETE request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		return nil
	}
	return checkHTTPStatus(resp)
}

// WarnIfNotLocalhost logs a warning if the given listen address appears to bind
// to a non-localhost interface. The server has no authentication, so binding
// to 0.0.0.0 or a public IP exposes all tools without access control.
//
// Call this before starting the HTTP server:
//
//	transport.WarnIfNotLocalhost(logger, listenAddr)
//	http.ListenAndServe(listenAddr, handler)
func WarnIfNotLocalhost(logger *zap.Logger, addr string) {
	if logger == nil {
		return
	}
	host := addr
	// Strip port if present.
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		host = addr[:idx]
	}
	// Strip brackets for IPv6.
	host = strings.Trim(host, "[]")

	switch host {
	case "", "0.0.0.0", "::":
		logger.Warn("tool server binding to all interfaces - this is INSECURE",
			zap.String("addr", addr),
			zap.String("recommendation", "bind to 127.0.0.1 or ::1 for localhost-only access"),
		)
	case "127.0.0.1", "::1", "localhost":
		// Safe - localhost only.
	default:
		logger.Warn("tool server binding to non-localhost address - this is INSECURE",
			zap.String("addr", addr),
			zap.String("recommendation", "bind to 127.0.0.1 or ::1 for localhost-only access"),
		)
	}
}
