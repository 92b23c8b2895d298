// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/AleutianAI/AleutianDesk/services/orchestrator/middleware"
)

const (
	DefaultDeskdHost = "localhost"
	DefaultDeskdPort = 12310
)

var adminClient = &http.Client{Timeout: 15 * time.Second}

func getDeskdBaseURL() string {
	// 1. Priority: Environment Variable (Used by Tests & Docker overrides)
	if url := os.Getenv("DESKD_URL"); url != "" {
		return url
	}
	// 2. Default: Standard Host/Port
	return fmt.Sprintf("http://%s:%d", DefaultDeskdHost, DefaultDeskdPort)
}

// adminRequest builds a request against the admin API, attaching the API key
// header when DESKD_ADMIN_API_KEY is set.
func adminRequest(method, path string, body io.Reader) (*http.Request, error) {
	url := getDeskdBaseURL() + path
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request for %s: %w", method, url, err)
	}
	if key := os.Getenv("DESKD_ADMIN_API_KEY"); key != "" {
		req.Header.Set(middleware.APIKeyHeader, key)
	}
	return req, nil
}

// adminGet performs a GET against the admin API and decodes the JSON body
// into out. When the --json flag is set the raw body is printed instead and
// out is left untouched (decoded=false).
func adminGet(path string, out any) (decoded bool, err error) {
	req, err := adminRequest(http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	resp, err := adminClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach the orchestrator at %s: %w", getDeskdBaseURL(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, fmt.Errorf("the orchestrator rejected the request: set DESKD_ADMIN_API_KEY to the server's admin key")
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("the orchestrator returned an error: %s", resp.Status)
	}

	if outputJSON {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return false, fmt.Errorf("failed to read response body: %w", err)
		}
		fmt.Println(string(raw))
		return false, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to parse response from the orchestrator: %w", err)
	}
	return true, nil
}
