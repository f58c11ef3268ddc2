// Package platform holds the closed set of supported chat surfaces and the
// locators used to find their input box, send button and rendered user
// messages.
package platform

import (
	"net/url"
	"strings"
)

// Name identifies one supported chat surface.
type Name string

// Supported surfaces.
const (
	ChatGPT Name = "chatgpt"
	Claude  Name = "claude"
	Gemini  Name = "gemini"
	Copilot Name = "copilot"
)

// Profile describes one chat surface. Locators are CSS selectors.
type Profile struct {
	Name           Name   `json:"name"`
	Domain         string `json:"domain"`
	InputLocator   string `json:"inputLocator"`
	SubmitLocator  string `json:"submitLocator"`
	MessageLocator string `json:"messageLocator"`
}

// profiles is fixed at build time and never mutated.
var profiles = [...]Profile{
	{
		Name:           ChatGPT,
		Domain:         "chat.openai.com",
		InputLocator:   "#prompt-textarea",
		SubmitLocator:  `button[data-testid="send-button"]`,
		MessageLocator: `[data-message-author-role="user"]`,
	},
	{
		Name:           Claude,
		Domain:         "claude.ai",
		InputLocator:   `div[contenteditable="true"][data-placeholder]`,
		SubmitLocator:  `button[aria-label="Send Message"]`,
		MessageLocator: `div[class*="font-user-message"]`,
	},
	{
		Name:           Gemini,
		Domain:         "gemini.google.com",
		InputLocator:   `rich-textarea[aria-label*="Enter"]`,
		SubmitLocator:  `button[aria-label*="Send"]`,
		MessageLocator: `message-content[author="user"]`,
	},
	{
		Name:           Copilot,
		Domain:         "copilot.microsoft.com",
		InputLocator:   `textarea[aria-label="Ask me anything"]`,
		SubmitLocator:  `button[aria-label="Submit"]`,
		MessageLocator: ".user-message",
	},
}

// All returns a copy of every supported profile.
func All() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles[:])
	return out
}

// Match returns the profile whose domain equals host or is a parent domain of
// it. A port, if present, is ignored. Matching is case-insensitive.
func Match(host string) (Profile, bool) {
	host = strings.ToLower(strings.TrimSuffix(stripPort(host), "."))
	if host == "" {
		return Profile{}, false
	}
	for _, p := range profiles {
		if host == p.Domain || strings.HasSuffix(host, "."+p.Domain) {
			return p, true
		}
	}
	return Profile{}, false
}

// MatchURL parses rawURL and matches its host.
func MatchURL(rawURL string) (Profile, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Profile{}, false
	}
	return Match(u.Host)
}

// Lookup returns the profile with the given name.
func Lookup(name Name) (Profile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
