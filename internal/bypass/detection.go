// Package bypass recognises bot-protection challenge pages so a blocked
// fetch is reported as blocked instead of being analyzed as content.
package bypass

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
)

// Sample is the part of an HTTP response the detectors look at.
type Sample struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Signature describes how one vendor's challenge looks. A response matches
// when its status is listed and any one marker is present.
type Signature struct {
	Vendor   string
	Statuses []int
	// Server substrings, matched case-insensitively against the Server header.
	Server []string
	// Headers whose mere presence is a marker.
	Headers []string
	// Body substrings, matched case-sensitively.
	Body []string
}

func (s Signature) matches(smp Sample) bool {
	if !slices.Contains(s.Statuses, smp.StatusCode) {
		return false
	}
	server := strings.ToLower(smp.Header.Get("Server"))
	for _, m := range s.Server {
		if server != "" && strings.Contains(server, m) {
			return true
		}
	}
	for _, h := range s.Headers {
		if smp.Header.Get(h) != "" {
			return true
		}
	}
	for _, b := range s.Body {
		if bytes.Contains(smp.Body, []byte(b)) {
			return true
		}
	}
	return false
}

// DefaultSignatures covers the protection vendors commonly met on company
// marketing sites.
func DefaultSignatures() []Signature {
	forbidden := []int{http.StatusForbidden}
	return []Signature{
		{
			Vendor:   "Cloudflare",
			Statuses: []int{http.StatusForbidden, http.StatusServiceUnavailable},
			Server:   []string{"cloudflare"},
			Body: []string{
				"cf-browser-verification",
				"cloudflare-nginx",
				"cf-turnstile",
				"Attention Required! | Cloudflare",
				"<title>Just a moment...</title>",
			},
		},
		{
			Vendor:   "Akamai",
			Statuses: forbidden,
			Server:   []string{"akamai"},
			Body:     []string{"Reference #18.", "errors.edgesuite.net"},
		},
		{
			Vendor:   "DataDome",
			Statuses: forbidden,
			Server:   []string{"datadome"},
			Headers:  []string{"X-DataDome", "X-DataDome-Response"},
			Body:     []string{"geo.captcha-delivery.com", "datadome"},
		},
		{
			Vendor:   "PerimeterX",
			Statuses: forbidden,
			Headers:  []string{"X-Px-Captcha"},
			Body:     []string{"client.perimeterx.net", "px-captcha", "_pxBlock"},
		},
		{
			Vendor:   "Imperva",
			Statuses: forbidden,
			Headers:  []string{"X-Iinfo"},
			Body:     []string{"_Incapsula_Resource", "Incapsula incident ID"},
		},
		{
			Vendor:   "Sucuri",
			Statuses: forbidden,
			Server:   []string{"sucuri"},
			Headers:  []string{"X-Sucuri-Id"},
			Body:     []string{"Sucuri WebSite Firewall"},
		},
	}
}

// Detector matches samples against an ordered list of signatures.
type Detector struct {
	signatures []Signature
}

// NewDetector builds a detector over sigs, or DefaultSignatures when none
// are given.
func NewDetector(sigs ...Signature) *Detector {
	if len(sigs) == 0 {
		sigs = DefaultSignatures()
	}
	return &Detector{signatures: sigs}
}

// Detect returns the vendor of the first matching signature.
func (d *Detector) Detect(s Sample) (vendor string, ok bool) {
	for _, sig := range d.signatures {
		if sig.matches(s) {
			return sig.Vendor, true
		}
	}
	return "", false
}
