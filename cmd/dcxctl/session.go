package main

import (
	"net/http"

	"github.com/adobe/dcxsync/dcxconfig"
	"github.com/adobe/dcxsync/transport"
)

// newSession builds the reference HTTP transport from cfg. Auth-token
// injection and retry are left to rt (nil uses http.DefaultTransport),
// same division of responsibility as transport.NewHTTPSession documents.
func newSession(cfg *dcxconfig.Config, rt http.RoundTripper) transport.Session {
	opts, err := cfg.HTTPOptions()
	if err != nil {
		fatalf("transport options: %v", err)
	}
	return transport.NewHTTPSession(opts, rt)
}
