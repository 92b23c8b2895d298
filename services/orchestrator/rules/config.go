// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries the keyword lists and static answer content the concrete
// handlers match against. Defaults are compiled in; deployments override
// individual fields via a YAML file without rebuilding.
type Config struct {
	ResolutionKeywords  []string `yaml:"resolution_keywords"`
	NotResolvedKeywords []string `yaml:"not_resolved_keywords"`
	AgentKeywords       []string `yaml:"agent_keywords"`
	PasswordKeywords    []string `yaml:"password_keywords"`
	UpdateKeywords      []string `yaml:"update_keywords"`
	AppNames            []string `yaml:"app_names"`
	ContactKeywords     []string `yaml:"contact_keywords"`

	// ContactCard is the static reply for contact info requests.
	ContactCard string `yaml:"contact_card"`

	// SelfCarePortalURL is offered in the password reset sub-dialogue.
	SelfCarePortalURL string `yaml:"selfcare_portal_url"`
}

// DefaultConfig returns the compiled-in keyword inventory.
func DefaultConfig() Config {
	return Config{
		ResolutionKeywords: []string{
			"resolved", "fixed", "solved", "that worked", "it works",
			"working now", "all good", "problem solved", "sorted",
		},
		NotResolvedKeywords: []string{
			"not resolved", "not fixed", "didn't work", "did not work",
			"still broken", "still not working", "no luck", "same problem",
			"same issue", "still happening",
		},
		AgentKeywords: []string{
			"speak to a human", "talk to a human", "human agent",
			"real person", "speak to an agent", "talk to an agent",
			"speak to someone", "customer service", "representative",
			"live agent",
		},
		PasswordKeywords: []string{
			"password reset", "reset my password", "forgot my password",
			"forgot password", "change my password", "password expired",
		},
		UpdateKeywords: []string{"update", "upgrade", "latest version", "new version"},
		AppNames: []string{
			"quickbooks", "outlook", "excel", "word", "teams", "chrome",
		},
		ContactKeywords: []string{
			"contact number", "phone number", "support number",
			"email address", "support email", "how do i contact",
			"contact support", "opening hours", "support hours",
		},
		ContactCard: "You can reach our support team:\n" +
			"• Phone: 1-800-555-0137 (Mon-Fri 8am-8pm ET)\n" +
			"• Email: support@aleutiandesk.example.com\n" +
			"We usually respond to email within one business day.",
		SelfCarePortalURL: "https://selfcare.aleutiandesk.example.com",
	}
}

// LoadConfig reads a YAML overrides file on top of the defaults. Fields
// absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read rules config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse rules config %s: %w", path, err)
	}
	return cfg, nil
}
